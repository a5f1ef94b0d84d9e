package handler

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"tqbridge/internal/bus"
	"tqbridge/internal/core"
	"tqbridge/internal/mock"
	"tqbridge/internal/model"
	apperrors "tqbridge/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ackRecorder captures the acknowledgement decision for one delivery.
type ackRecorder struct {
	acked    bool
	nacked   bool
	requeued bool
}

func (a *ackRecorder) delivery(body []byte) bus.Delivery {
	return bus.Delivery{
		Body: body,
		Ack:  func() error { a.acked = true; return nil },
		Nack: func(requeue bool) error {
			a.nacked = true
			a.requeued = requeue
			return nil
		},
	}
}

func TestSettleAcksOnSuccess(t *testing.T) {
	r := NewRunner(nil, nil, mock.NewLogger())
	rec := &ackRecorder{}
	r.settle(rec.delivery(nil), nil)
	assert.True(t, rec.acked)
	assert.False(t, rec.nacked)
}

func TestSettleDropsMalformedMessages(t *testing.T) {
	r := NewRunner(nil, nil, mock.NewLogger())
	rec := &ackRecorder{}
	r.settle(rec.delivery(nil), errors.Join(apperrors.ErrDecodeFailure, errors.New("bad json")))
	assert.True(t, rec.nacked)
	assert.False(t, rec.requeued)
}

func TestSettleRequeuesSinkFailures(t *testing.T) {
	r := NewRunner(nil, nil, mock.NewLogger())
	rec := &ackRecorder{}
	r.settle(rec.delivery(nil), apperrors.ErrPersistenceFailure)
	assert.True(t, rec.nacked)
	assert.True(t, rec.requeued)
}

func orderUpdateBody(t *testing.T, upd *model.OrderUpdate) []byte {
	t.Helper()
	body, err := json.Marshal(upd)
	require.NoError(t, err)
	return body
}

func TestOrderHandlerPersistsUpdateTradesAndEvent(t *testing.T) {
	store := mock.NewOrderStore()
	h := NewOrderHandler(store, mock.NewLogger())

	upd := model.NewOrderUpdate("P1")
	upd.OrderID = "ord-1"
	upd.Status = "PARTIALLY_FILLED"
	upd.EventType = model.EventPartialFill
	upd.FilledQuantity = 1
	upd.Trades = []model.Trade{{TradeID: "T1", OrderID: "ord-1", Price: 17355, Volume: 1}}

	require.NoError(t, h.Handle(t.Context(), orderUpdateBody(t, upd)))

	require.Len(t, store.Updates, 1)
	assert.Equal(t, "ord-1", store.Updates[0].OrderID)
	assert.Contains(t, store.Trades, "T1")
	require.Len(t, store.Events, 1)
	assert.Equal(t, model.EventPartialFill, store.Events[0].EventType)
}

func TestOrderHandlerReplayIsIdempotent(t *testing.T) {
	store := mock.NewOrderStore()
	h := NewOrderHandler(store, mock.NewLogger())

	upd := model.NewOrderUpdate("P1")
	upd.OrderID = "ord-1"
	upd.EventType = model.EventCompleteFill
	upd.Trades = []model.Trade{{TradeID: "T1", OrderID: "ord-1", Volume: 2}}

	body := orderUpdateBody(t, upd)
	require.NoError(t, h.Handle(t.Context(), body))
	require.NoError(t, h.Handle(t.Context(), body))

	// Trades dedup by trade_id; row updates and audit events replay safely.
	assert.Len(t, store.Trades, 1)
	assert.Len(t, store.Updates, 2)
}

func TestOrderHandlerRejectsMalformedBody(t *testing.T) {
	h := NewOrderHandler(mock.NewOrderStore(), mock.NewLogger())

	err := h.Handle(t.Context(), []byte("{not json"))
	assert.ErrorIs(t, err, apperrors.ErrDecodeFailure)

	err = h.Handle(t.Context(), []byte(`{"type":"ORDER_UPDATE"}`))
	assert.ErrorIs(t, err, apperrors.ErrDecodeFailure)
}

func TestOrderHandlerSurfacesPersistenceFailure(t *testing.T) {
	store := mock.NewOrderStore()
	store.UpdateErr = errors.Join(apperrors.ErrPersistenceFailure, errors.New("disk full"))
	h := NewOrderHandler(store, mock.NewLogger())

	upd := model.NewOrderUpdate("P1")
	upd.OrderID = "ord-1"

	err := h.Handle(t.Context(), orderUpdateBody(t, upd))
	assert.ErrorIs(t, err, apperrors.ErrPersistenceFailure)
}

func TestPositionHandlerCachesSnapshot(t *testing.T) {
	cache := mock.NewPositionCache()
	h := NewPositionHandler(cache, core.PositionTTL, mock.NewLogger())

	pos := model.FullPosition{PosLong: 3, Pos: 3, PosLongToday: 3}
	body, err := json.Marshal(model.NewPositionUpdate("P1", "SHFE.rb2505", &pos))
	require.NoError(t, err)

	require.NoError(t, h.Handle(t.Context(), body))

	cached, err := cache.GetPosition(t.Context(), "P1", "SHFE.rb2505")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, pos, *cached)
	assert.Equal(t, 15*time.Second, cache.TTL("P1", "SHFE.rb2505"))
}

func TestPositionHandlerNilPositionWritesZero(t *testing.T) {
	cache := mock.NewPositionCache()
	h := NewPositionHandler(cache, core.PositionTTL, mock.NewLogger())

	body, err := json.Marshal(model.NewPositionUpdate("P1", "SHFE.rb2505", nil))
	require.NoError(t, err)
	require.NoError(t, h.Handle(t.Context(), body))

	cached, err := cache.GetPosition(t.Context(), "P1", "SHFE.rb2505")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.True(t, cached.IsZero())
}

func TestAccountHandlerCachesSnapshotWithLongTTL(t *testing.T) {
	cache := mock.NewPositionCache()
	h := NewAccountHandler(cache, core.AccountTTL, mock.NewLogger())

	acc := model.Account{Balance: 100000, Available: 80000, Margin: 20000}
	body, err := json.Marshal(model.NewAccountUpdate("P1", acc))
	require.NoError(t, err)

	require.NoError(t, h.Handle(t.Context(), body))

	stored, ok := cache.Account("P1")
	require.True(t, ok)
	assert.Equal(t, acc, stored)
	assert.Equal(t, time.Hour, cache.AccountTTLs["P1"])
}

func TestAccountHandlerSurfacesCacheFailure(t *testing.T) {
	cache := mock.NewPositionCache()
	cache.SetErr = assert.AnError
	h := NewAccountHandler(cache, core.AccountTTL, mock.NewLogger())

	body, err := json.Marshal(model.NewAccountUpdate("P1", model.Account{Balance: 1}))
	require.NoError(t, err)

	err = h.Handle(t.Context(), body)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrDecodeFailure)
}
