// Package canceller implements the cancel command worker: cancel one order
// by id, every alive order on a contract, or everything.
package canceller

import (
	"context"
	"encoding/json"
	"time"

	"tqbridge/internal/core"
	"tqbridge/internal/model"
	"tqbridge/pkg/telemetry"
)

const (
	// cancelWait bounds how long a targeted cancel drains for the order to
	// leave ALIVE before giving up with a warning.
	cancelWait = 5 * time.Second
	drainStep  = 100 * time.Millisecond
)

// Worker processes CANCEL commands from the cancel queue.
type Worker struct {
	portfolioID     string
	perOrderTimeout time.Duration
	logger          core.ILogger

	session core.IBrokerSession
	now     func() time.Time
}

// New builds the canceller worker.
func New(portfolioID string, perOrderTimeout time.Duration, logger core.ILogger) *Worker {
	return &Worker{
		portfolioID:     portfolioID,
		perOrderTimeout: perOrderTimeout,
		logger:          logger.WithField("component", "canceller"),
		now:             time.Now,
	}
}

func (w *Worker) InitWorker(session core.IBrokerSession) error {
	w.session = session
	w.logger.Info("canceller started", "portfolio_id", w.portfolioID)
	return nil
}

func (w *Worker) OnDrain(bool) {}

func (w *Worker) CleanupWorker() {
	w.logger.Info("canceller stopped")
}

// ProcessMessage dispatches on the cancel selector type. The return value
// drives the deferred acknowledgement.
func (w *Worker) ProcessMessage(body []byte) bool {
	var req model.OrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		w.logger.Error("cancel request decode failed", "error", err)
		return false
	}
	if !req.IsCancel() {
		w.logger.Warn("submit command on cancel queue, ignoring", "order_id", req.OrderID)
		return true
	}

	switch req.Type {
	case model.CancelByOrderID:
		return w.cancelByID(req.OrderID)
	case model.CancelByContractCode:
		return w.cancelByContract(req.ContractCode)
	case model.CancelAll:
		return w.cancelAll()
	default:
		w.logger.Warn("unknown cancel selector", "type", req.Type)
		return false
	}
}

func (w *Worker) cancelByID(orderID string) bool {
	order, ok := w.session.Orders()[orderID]
	if !ok {
		w.logger.Warn("cancel target not found at broker", "order_id", orderID)
		return true
	}
	if !order.Alive() {
		w.logger.Info("cancel target already finished", "order_id", orderID)
		return true
	}

	if err := w.session.CancelOrder(orderID); err != nil {
		w.logger.Error("broker cancel failed", "order_id", orderID, "error", err)
		return false
	}
	telemetry.GetGlobalMetrics().OrdersCanceledTotal.Add(context.Background(), 1)

	w.drainUntilDead(order, w.now().Add(cancelWait))
	return true
}

func (w *Worker) cancelByContract(contractCode string) bool {
	target := model.NormalizeInstrumentID(contractCode)

	var victims []*model.Order
	for _, order := range w.session.Orders() {
		if order.Alive() && model.NormalizeInstrumentID(order.InstrumentID) == target {
			victims = append(victims, order)
		}
	}
	if len(victims) == 0 {
		w.logger.Info("no alive orders on contract", "contract_code", contractCode)
		return true
	}

	allOK := true
	for _, order := range victims {
		if err := w.session.CancelOrder(order.OrderID); err != nil {
			w.logger.Error("broker cancel failed", "order_id", order.OrderID, "error", err)
			allOK = false
			continue
		}
		telemetry.GetGlobalMetrics().OrdersCanceledTotal.Add(context.Background(), 1)
	}

	deadline := w.now().Add(cancelWait)
	for _, order := range victims {
		w.drainUntilDead(order, deadline)
	}
	return allOK
}

// cancelAll cancels every alive order with a per-order drain budget. The
// command always acks; failures are logged, not retried.
func (w *Worker) cancelAll() bool {
	for _, order := range w.session.Orders() {
		if !order.Alive() {
			continue
		}
		if err := w.session.CancelOrder(order.OrderID); err != nil {
			w.logger.Error("broker cancel failed", "order_id", order.OrderID, "error", err)
			continue
		}
		telemetry.GetGlobalMetrics().OrdersCanceledTotal.Add(context.Background(), 1)
		w.drainUntilDead(order, w.now().Add(w.perOrderTimeout))
	}
	return true
}

// drainUntilDead pumps the session until the order leaves ALIVE or the
// deadline passes.
func (w *Worker) drainUntilDead(order *model.Order, deadline time.Time) {
	for order.Alive() && w.now().Before(deadline) {
		w.session.Drain(w.now().Add(drainStep))
	}
	if order.Alive() {
		w.logger.Warn("order still alive after cancel window", "order_id", order.OrderID)
	}
}
