package canceller

import (
	"encoding/json"
	"testing"
	"time"

	"tqbridge/internal/core"
	"tqbridge/internal/mock"
	"tqbridge/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(t *testing.T, session *mock.BrokerSession) (*Worker, *mock.Logger) {
	t.Helper()
	logger := mock.NewLogger()
	w := New("P1", core.CancelPerOrderTimeout, logger)
	require.NoError(t, w.InitWorker(session))
	return w, logger
}

func cancelBody(t *testing.T, req *model.OrderRequest) []byte {
	t.Helper()
	req.Action = model.ActionCancel
	body, err := json.Marshal(req)
	require.NoError(t, err)
	return body
}

func aliveOrder(orderID, instrumentID string) *model.Order {
	return &model.Order{
		OrderID:      orderID,
		InstrumentID: instrumentID,
		VolumeOrign:  2,
		VolumeLeft:   2,
		Status:       model.StatusAlive,
	}
}

func TestCancelByOrderID(t *testing.T) {
	session := mock.NewBrokerSession()
	order := aliveOrder("ord-1", "rb2505")
	session.SetOrder(order)
	// The gateway reports the cancel on the next drain.
	session.DrainHook = func(int) { order.Status = model.StatusFinished }

	w, _ := newTestWorker(t, session)
	ok := w.ProcessMessage(cancelBody(t, &model.OrderRequest{Type: model.CancelByOrderID, OrderID: "ord-1"}))

	assert.True(t, ok)
	assert.Equal(t, []string{"ord-1"}, session.Canceled)
	assert.False(t, order.Alive())
}

func TestCancelUnknownOrderAcks(t *testing.T) {
	session := mock.NewBrokerSession()
	w, logger := newTestWorker(t, session)

	ok := w.ProcessMessage(cancelBody(t, &model.OrderRequest{Type: model.CancelByOrderID, OrderID: "missing"}))

	assert.True(t, ok)
	assert.Empty(t, session.Canceled)
	assert.True(t, logger.Contains("not found"))
}

func TestCancelFinishedOrderAcksWithoutBrokerCall(t *testing.T) {
	session := mock.NewBrokerSession()
	order := aliveOrder("ord-1", "rb2505")
	order.Status = model.StatusFinished
	session.SetOrder(order)

	w, _ := newTestWorker(t, session)
	ok := w.ProcessMessage(cancelBody(t, &model.OrderRequest{Type: model.CancelByOrderID, OrderID: "ord-1"}))

	assert.True(t, ok)
	assert.Empty(t, session.Canceled)
}

func TestCancelBrokerFailureNacks(t *testing.T) {
	session := mock.NewBrokerSession()
	session.SetOrder(aliveOrder("ord-1", "rb2505"))
	session.CancelErr = assert.AnError

	w, _ := newTestWorker(t, session)
	ok := w.ProcessMessage(cancelBody(t, &model.OrderRequest{Type: model.CancelByOrderID, OrderID: "ord-1"}))

	assert.False(t, ok)
}

func TestCancelByContractCodeMatchesNormalizedSymbol(t *testing.T) {
	session := mock.NewBrokerSession()
	a := aliveOrder("ord-1", "rb2505")
	b := aliveOrder("ord-2", "rb2505")
	other := aliveOrder("ord-3", "sc2506")
	session.SetOrder(a)
	session.SetOrder(b)
	session.SetOrder(other)
	session.DrainHook = func(int) {
		a.Status = model.StatusFinished
		b.Status = model.StatusFinished
	}

	w, _ := newTestWorker(t, session)
	ok := w.ProcessMessage(cancelBody(t, &model.OrderRequest{
		Type:         model.CancelByContractCode,
		ContractCode: "SHFE.rb2505",
	}))

	assert.True(t, ok)
	assert.ElementsMatch(t, []string{"ord-1", "ord-2"}, session.Canceled)
	assert.True(t, other.Alive())
}

func TestCancelAllSucceedsDespiteStuckOrder(t *testing.T) {
	session := mock.NewBrokerSession()
	stuck := aliveOrder("ord-1", "rb2505")
	session.SetOrder(stuck)

	w, logger := newTestWorker(t, session)
	// Advance a second per clock read so the per-order window expires
	// without real waiting.
	base := time.Now()
	calls := 0
	w.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}

	ok := w.ProcessMessage(cancelBody(t, &model.OrderRequest{Type: model.CancelAll}))

	assert.True(t, ok)
	assert.Equal(t, []string{"ord-1"}, session.Canceled)
	assert.True(t, logger.Contains("still alive"))
}

func TestCancelUnknownSelectorNacks(t *testing.T) {
	session := mock.NewBrokerSession()
	w, _ := newTestWorker(t, session)

	ok := w.ProcessMessage(cancelBody(t, &model.OrderRequest{Type: "portfolio"}))
	assert.False(t, ok)
}

func TestCancelIgnoresSubmitCommands(t *testing.T) {
	session := mock.NewBrokerSession()
	w, _ := newTestWorker(t, session)

	body, err := json.Marshal(&model.OrderRequest{Action: model.ActionSubmit, OrderID: "ord-1"})
	require.NoError(t, err)

	assert.True(t, w.ProcessMessage(body))
	assert.Empty(t, session.Canceled)
}
