package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tqbridge/internal/core"
	"tqbridge/internal/model"
	apperrors "tqbridge/pkg/errors"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// OrderHandler persists order updates: the monotonic row update, the trade
// rows of any attached fills, and the append-only audit event. Store writes
// are retried briefly before the message is handed back to the bus.
type OrderHandler struct {
	store    core.IOrderStore
	executor failsafe.Executor[any]
	logger   core.ILogger
}

// NewOrderHandler builds the order update sink.
func NewOrderHandler(store core.IOrderStore, logger core.ILogger) *OrderHandler {
	retryPolicy := retrypolicy.NewBuilder[any]().
		HandleErrors(apperrors.ErrPersistenceFailure).
		WithBackoff(100*time.Millisecond, time.Second).
		WithMaxRetries(3).
		Build()

	return &OrderHandler{
		store:    store,
		executor: failsafe.With[any](retryPolicy),
		logger:   logger.WithField("component", "order_handler"),
	}
}

func (h *OrderHandler) Handle(ctx context.Context, body []byte) error {
	var upd model.OrderUpdate
	if err := json.Unmarshal(body, &upd); err != nil {
		return errors.Join(apperrors.ErrDecodeFailure, err)
	}
	if upd.OrderID == "" {
		return errors.Join(apperrors.ErrDecodeFailure, errors.New("order update without order_id"))
	}

	err := h.executor.Run(func() error {
		if err := h.store.ApplyOrderUpdate(ctx, &upd); err != nil {
			return err
		}
		for i := range upd.Trades {
			if err := h.store.InsertTrade(ctx, &upd.Trades[i]); err != nil {
				return err
			}
		}
		return h.store.AppendOrderEvent(ctx, &upd)
	})
	if err != nil {
		return err
	}

	h.logger.Debug("order update persisted",
		"order_id", upd.OrderID,
		"event_type", upd.EventType,
		"trades", len(upd.Trades))
	return nil
}
