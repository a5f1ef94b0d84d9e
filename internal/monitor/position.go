package monitor

import (
	"context"
	"time"

	"tqbridge/internal/core"
	"tqbridge/internal/model"
)

const cacheWriteTimeout = 3 * time.Second

// PositionMonitor publishes POSITION_UPDATE events when a symbol's net
// position changes, and emits a zero event when a position disappears from
// the broker view. It also writes the breakdown to cache for the close-today
// splitter; the reconciler remains authoritative for cache state.
type PositionMonitor struct {
	portfolioID string
	publisher   *EventPublisher
	cache       core.IPositionCache
	positionTTL time.Duration
	logger      core.ILogger

	session  core.IBrokerSession
	previous map[string]model.FullPosition
}

// NewPositionMonitor builds the worker for the position monitor service.
func NewPositionMonitor(portfolioID string, publisher *EventPublisher, cache core.IPositionCache, positionTTL time.Duration, logger core.ILogger) *PositionMonitor {
	return &PositionMonitor{
		portfolioID: portfolioID,
		publisher:   publisher,
		cache:       cache,
		positionTTL: positionTTL,
		logger:      logger.WithField("component", "position_monitor"),
		previous:    make(map[string]model.FullPosition),
	}
}

func (m *PositionMonitor) InitWorker(session core.IBrokerSession) error {
	m.session = session
	m.logger.Info("position monitor started", "portfolio_id", m.portfolioID)
	return nil
}

// ProcessMessage is unused; the position monitor consumes no queue.
func (m *PositionMonitor) ProcessMessage([]byte) bool { return true }

func (m *PositionMonitor) CleanupWorker() {
	m.publisher.Stop()
	m.logger.Info("position monitor stopped")
}

// OnDrain diffs the live position view after every successful drain.
func (m *PositionMonitor) OnDrain(ok bool) {
	if !ok {
		return
	}

	positions := m.session.Positions()
	current := make(map[string]model.FullPosition, len(positions))

	for symbol, pos := range positions {
		snap := *pos
		current[symbol] = snap

		prev, seen := m.previous[symbol]
		if seen && prev.Equal(snap) {
			continue
		}

		m.writeCache(symbol, snap)
		m.logger.Info("position update", "symbol", symbol, "pos", snap.Pos)
		m.publisher.PublishAsync(core.RoutingKeyPositionUpdates,
			model.NewPositionUpdate(m.portfolioID, symbol, &snap))
	}

	// Symbols that left the live view closed out entirely.
	for symbol, prev := range m.previous {
		if _, still := current[symbol]; still || prev.IsZero() {
			continue
		}
		zero := model.ZeroPosition()
		m.writeCache(symbol, zero)
		m.logger.Info("position closed", "symbol", symbol)
		m.publisher.PublishAsync(core.RoutingKeyPositionUpdates,
			model.NewPositionUpdate(m.portfolioID, symbol, &zero))
	}

	m.previous = current
}

func (m *PositionMonitor) writeCache(symbol string, pos model.FullPosition) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
	defer cancel()
	if err := m.cache.SetPosition(ctx, m.portfolioID, symbol, pos, m.positionTTL); err != nil {
		m.logger.Error("position cache write failed", "symbol", symbol, "error", err)
	}
}
