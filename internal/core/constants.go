// Package core defines the shared interfaces and wiring constants of the
// broker bridge: queue and exchange names, cache key patterns, timing
// defaults, and the contracts between services and their collaborators.
package core

import (
	"fmt"
	"time"
)

// External bus topology (strategy engine side).
const (
	ExternalOrderExchange    = "tq_order_request_exchange"
	ExternalOrderSubmitQueue = "tq_order_submit_requests"
	ExternalOrderCancelQueue = "tq_order_cancel_requests"
)

// Internal bus topology (between bridge services).
const (
	InternalExchange             = "tq_internal_exchange"
	InternalOrderUpdatesQueue    = "tq_internal_order_updates"
	InternalAccountUpdatesQueue  = "tq_internal_account_updates"
	InternalPositionUpdatesQueue = "tq_internal_position_updates"

	RoutingKeyOrderUpdates    = "order_updates"
	RoutingKeyAccountUpdates  = "account_updates"
	RoutingKeyPositionUpdates = "position_updates"
)

// Cache TTLs and timing defaults.
const (
	PositionTTL = 15 * time.Second
	AccountTTL  = time.Hour

	OrderExpireAllowMax  = 5 * time.Second
	SessionEndBuffer     = 15 * time.Second
	PositionLoopInterval = 5 * time.Second
	UniverseRefreshEvery = 30 * time.Minute

	DefaultBlockTimeout    = 10 * time.Second
	DefaultBlockCounterMax = 3
	HandoffQueueCapacity   = 100
	BusReconnectDelay      = 5 * time.Second
	HeartbeatInterval      = time.Second
	WorkerJoinTimeout      = 5 * time.Second
	CancelPerOrderTimeout  = time.Second
)

// CloseTodayExchanges lists the exchanges that require same-day positions to
// be closed with a CLOSETODAY order.
var CloseTodayExchanges = map[string]bool{
	"SHFE": true,
	"INE":  true,
}

// PositionKey returns the cache key for one portfolio x symbol position.
func PositionKey(portfolioID, symbol string) string {
	return fmt.Sprintf("TQ_Position_PortfolioId_%s_Symbol_%s", portfolioID, symbol)
}

// AccountKey returns the cache key for a portfolio's account snapshot.
func AccountKey(portfolioID string) string {
	return fmt.Sprintf("TQ_Account_PortfolioId_%s", portfolioID)
}

// PortfolioRoutingKey returns the topic routing key the strategy engine uses
// to address one portfolio's bridge.
func PortfolioRoutingKey(portfolioID string) string {
	return fmt.Sprintf("PortfolioId_%s", portfolioID)
}
