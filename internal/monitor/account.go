package monitor

import (
	"tqbridge/internal/core"
	"tqbridge/internal/model"

	"github.com/shopspring/decimal"
)

// accountChangeThreshold filters float noise: a field must move by more
// than one cent to count as a change.
var accountChangeThreshold = decimal.NewFromFloat(0.01)

// AccountMonitor publishes ACCOUNT_UPDATE events when the account snapshot
// moves beyond the change threshold on any tracked field.
type AccountMonitor struct {
	portfolioID string
	publisher   *EventPublisher
	logger      core.ILogger

	session  core.IBrokerSession
	previous *model.Account
}

// NewAccountMonitor builds the worker for the account monitor service.
func NewAccountMonitor(portfolioID string, publisher *EventPublisher, logger core.ILogger) *AccountMonitor {
	return &AccountMonitor{
		portfolioID: portfolioID,
		publisher:   publisher,
		logger:      logger.WithField("component", "account_monitor"),
	}
}

func (m *AccountMonitor) InitWorker(session core.IBrokerSession) error {
	m.session = session
	m.logger.Info("account monitor started", "portfolio_id", m.portfolioID)
	return nil
}

// ProcessMessage is unused; the account monitor consumes no queue.
func (m *AccountMonitor) ProcessMessage([]byte) bool { return true }

func (m *AccountMonitor) CleanupWorker() {
	m.publisher.Stop()
	m.logger.Info("account monitor stopped")
}

// OnDrain compares the account snapshot after every successful drain.
func (m *AccountMonitor) OnDrain(ok bool) {
	if !ok {
		return
	}

	current := m.session.Account()
	if m.previous != nil && !accountChanged(*m.previous, current) {
		return
	}

	m.logger.Info("account update", "balance", current.Balance, "available", current.Available)
	m.publisher.PublishAsync(core.RoutingKeyAccountUpdates,
		model.NewAccountUpdate(m.portfolioID, current))
	m.previous = &current
}

// accountChanged reports whether any tracked field moved beyond the cent
// threshold. risk_ratio is derived from balance and margin, so it is not
// compared directly.
func accountChanged(prev, curr model.Account) bool {
	pairs := [][2]float64{
		{prev.Balance, curr.Balance},
		{prev.Available, curr.Available},
		{prev.Margin, curr.Margin},
		{prev.PositionProfit, curr.PositionProfit},
	}
	for _, pair := range pairs {
		diff := decimal.NewFromFloat(pair[0]).Sub(decimal.NewFromFloat(pair[1])).Abs()
		if diff.GreaterThan(accountChangeThreshold) {
			return true
		}
	}
	return false
}
