package submitter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tqbridge/internal/core"
	"tqbridge/internal/model"
	"tqbridge/internal/tradinghours"
	apperrors "tqbridge/pkg/errors"
	"tqbridge/pkg/telemetry"
)

const (
	cacheReadTimeout = 3 * time.Second
	submitDrainGrace = 100 * time.Millisecond
)

// Worker processes SUBMIT commands. A request that fails any pipeline stage
// is rejected without a broker call; a broker failure after persistence is
// also a reject because a duplicate submission is worse than a dropped one.
type Worker struct {
	portfolioID    string
	cache          core.IPositionCache
	store          core.IOrderStore
	calendar       *tradinghours.Calendar
	endBuffer      time.Duration
	expireAllowMax time.Duration
	logger         core.ILogger

	session core.IBrokerSession
	now     func() time.Time
}

// New builds the submitter worker.
func New(portfolioID string, cache core.IPositionCache, store core.IOrderStore, calendar *tradinghours.Calendar, endBuffer, expireAllowMax time.Duration, logger core.ILogger) *Worker {
	return &Worker{
		portfolioID:    portfolioID,
		cache:          cache,
		store:          store,
		calendar:       calendar,
		endBuffer:      endBuffer,
		expireAllowMax: expireAllowMax,
		logger:         logger.WithField("component", "submitter"),
		now:            time.Now,
	}
}

func (w *Worker) InitWorker(session core.IBrokerSession) error {
	w.session = session
	w.logger.Info("submitter started", "portfolio_id", w.portfolioID)
	return nil
}

func (w *Worker) OnDrain(bool) {}

func (w *Worker) CleanupWorker() {
	w.logger.Info("submitter stopped")
}

// ProcessMessage runs the submit pipeline. The return value drives the
// deferred acknowledgement: false rejects the message without requeue.
func (w *Worker) ProcessMessage(body []byte) bool {
	var req model.OrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		w.logger.Error("submit request decode failed", "error", err)
		return false
	}
	if req.IsCancel() {
		// Cancels belong on the cancel queue; drop silently with an ack.
		w.logger.Warn("cancel command on submit queue, ignoring", "order_id", req.OrderID)
		return true
	}

	log := w.logger.WithField("order_id", req.OrderID)

	if err := w.checkRequest(&req); err != nil {
		log.Warn("submit rejected", "symbol", req.Symbol, "error", err)
		w.reject()
		return false
	}

	children := w.split(&req)

	now := w.now()
	for _, child := range children {
		if err := w.insertRecord(model.NewOrderRecord(child, now)); err != nil {
			log.Error("order insert failed, no broker call made",
				"child_order_id", child.OrderID, "error", err)
			w.reject()
			return false
		}
	}

	// The DB insert may have consumed the age budget under load.
	if err := w.checkRequest(&req); err != nil {
		log.Warn("submit rejected after persistence", "error", err)
		w.reject()
		return false
	}

	for _, child := range children {
		w.session.Drain(w.now().Add(submitDrainGrace))
		if _, err := w.session.InsertOrder(child); err != nil {
			log.Error("broker insert failed",
				"child_order_id", child.OrderID,
				"error", errors.Join(apperrors.ErrBrokerCallFailure, err))
			w.reject()
			return false
		}
		w.session.Drain(w.now().Add(submitDrainGrace))
		telemetry.GetGlobalMetrics().OrdersSubmittedTotal.Add(context.Background(), 1)
		log.Info("order submitted",
			"child_order_id", child.OrderID,
			"offset", child.Offset,
			"volume", child.Volume)
	}
	return true
}

// checkRequest runs the pre-broker gate: field validation, age, trading
// session.
func (w *Worker) checkRequest(req *model.OrderRequest) error {
	if err := req.ValidateSubmit(); err != nil {
		return errors.Join(apperrors.ErrValidationReject, err)
	}

	if req.Timestamp == 0 {
		return errors.Join(apperrors.ErrOrderExpired, errors.New("missing origin timestamp"))
	}
	if age := req.Age(w.now()); age > w.expireAllowMax {
		return errors.Join(apperrors.ErrOrderExpired,
			errors.New("order expired, age "+age.Truncate(time.Millisecond).String()))
	}

	if !w.calendar.CanSubmit(w.now(), w.endBuffer) {
		return apperrors.ErrOutsideTradingHours
	}
	return nil
}

// split applies the close-today split using the cached position breakdown.
func (w *Worker) split(req *model.OrderRequest) []*model.OrderRequest {
	if req.Offset != model.OffsetClose || !core.CloseTodayExchanges[req.ExchangeID()] {
		return []*model.OrderRequest{req}
	}

	pos, err := w.cachedPosition(req.Symbol)
	if err != nil {
		w.logger.Error("position cache read failed, submitting unsplit",
			"symbol", req.Symbol, "error", err)
		return []*model.OrderRequest{req}
	}
	return SplitCloseOrder(req, pos)
}

func (w *Worker) insertRecord(rec *model.OrderRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), cacheReadTimeout)
	defer cancel()
	return w.store.InsertOrder(ctx, rec)
}

func (w *Worker) cachedPosition(symbol string) (*model.FullPosition, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheReadTimeout)
	defer cancel()
	return w.cache.GetPosition(ctx, w.portfolioID, symbol)
}

func (w *Worker) reject() {
	telemetry.GetGlobalMetrics().OrdersRejectedTotal.Add(context.Background(), 1)
}
