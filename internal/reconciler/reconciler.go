// Package reconciler keeps the position cache aligned with the broker's live
// view. It bypasses the bus and writes the cache directly; it is the
// authoritative source for cache state.
package reconciler

import (
	"context"
	"time"

	"tqbridge/internal/core"
	"tqbridge/internal/model"
	"tqbridge/internal/universe"
	"tqbridge/pkg/telemetry"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Reconciler is the worker for the position reconciler service. It runs a
// reconciliation cycle at most once per interval; between cycles the skeleton
// keeps draining to hold the session alive.
type Reconciler struct {
	portfolioID string
	cache       core.IPositionCache
	universe    *universe.Loader
	interval    time.Duration
	positionTTL time.Duration
	logger      core.ILogger

	session         core.IBrokerSession
	lastCycle       time.Time
	mismatchLimiter *rate.Limiter

	now func() time.Time
}

// New builds the reconciler worker.
func New(portfolioID string, cache core.IPositionCache, loader *universe.Loader, interval, positionTTL time.Duration, logger core.ILogger) *Reconciler {
	return &Reconciler{
		portfolioID:     portfolioID,
		cache:           cache,
		universe:        loader,
		interval:        interval,
		positionTTL:     positionTTL,
		logger:          logger.WithField("component", "reconciler"),
		mismatchLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
		now:             time.Now,
	}
}

func (r *Reconciler) InitWorker(session core.IBrokerSession) error {
	r.session = session
	r.logger.Info("reconciler started",
		"portfolio_id", r.portfolioID,
		"interval", r.interval,
		"position_ttl", r.positionTTL)
	return nil
}

// ProcessMessage is unused; the reconciler consumes no queue.
func (r *Reconciler) ProcessMessage([]byte) bool { return true }

func (r *Reconciler) CleanupWorker() {
	r.logger.Info("reconciler stopped")
}

// OnDrain runs a cycle when the interval has elapsed since the last cycle
// started. A timed-out drain does not skip the cycle: outside trading hours
// drains time out routinely and TTLs still have to be refreshed.
func (r *Reconciler) OnDrain(bool) {
	now := r.now()
	if !r.lastCycle.IsZero() && now.Sub(r.lastCycle) < r.interval {
		return
	}
	r.lastCycle = now
	r.runCycle()
}

func (r *Reconciler) runCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	cycleID := uuid.NewString()
	log := r.logger.WithField("cycle_id", cycleID)

	symbols := r.universe.Load(ctx)
	positions := r.session.Positions()

	for symbol, pos := range positions {
		r.reconcileSymbol(ctx, log, symbol, *pos)
	}

	// Universe symbols the broker holds nothing in still get a zero entry so
	// downstream consumers can tell "flat" from "bridge down".
	for _, symbol := range symbols {
		if _, held := positions[symbol]; held {
			continue
		}
		r.ensureZeroEntry(ctx, log, symbol)
	}

	telemetry.GetGlobalMetrics().ReconcileCyclesTotal.Add(ctx, 1)
	log.Debug("reconcile cycle complete",
		"broker_symbols", len(positions), "universe_symbols", len(symbols))
}

func (r *Reconciler) reconcileSymbol(ctx context.Context, log core.ILogger, symbol string, pos model.FullPosition) {
	cached, err := r.cache.GetPosition(ctx, r.portfolioID, symbol)
	if err != nil {
		log.Error("position cache read failed", "symbol", symbol, "error", err)
		return
	}

	switch {
	case cached == nil:
		r.write(ctx, log, symbol, pos)
	case cached.Equal(pos):
		r.refresh(ctx, log, symbol)
	default:
		telemetry.GetGlobalMetrics().ReconcileMismatches.Add(ctx, 1)
		if r.mismatchLimiter.Allow() {
			log.Warn("position mismatch, overwriting cache with broker value",
				"symbol", symbol,
				"cached_pos", cached.Pos,
				"broker_pos", pos.Pos)
		}
		r.write(ctx, log, symbol, pos)
	}
}

func (r *Reconciler) ensureZeroEntry(ctx context.Context, log core.ILogger, symbol string) {
	cached, err := r.cache.GetPosition(ctx, r.portfolioID, symbol)
	if err != nil {
		log.Error("position cache read failed", "symbol", symbol, "error", err)
		return
	}
	if cached == nil {
		r.write(ctx, log, symbol, model.ZeroPosition())
		return
	}
	r.refresh(ctx, log, symbol)
}

func (r *Reconciler) write(ctx context.Context, log core.ILogger, symbol string, pos model.FullPosition) {
	if err := r.cache.SetPosition(ctx, r.portfolioID, symbol, pos, r.positionTTL); err != nil {
		log.Error("position cache write failed", "symbol", symbol, "error", err)
	}
}

func (r *Reconciler) refresh(ctx context.Context, log core.ILogger, symbol string) {
	ok, err := r.cache.RefreshPosition(ctx, r.portfolioID, symbol, r.positionTTL)
	if err != nil {
		log.Error("position ttl refresh failed", "symbol", symbol, "error", err)
		return
	}
	if !ok {
		// Entry expired between read and refresh; rewrite it next cycle.
		log.Warn("position entry vanished before refresh", "symbol", symbol)
	}
}
