package core

import (
	"context"
	"time"

	"tqbridge/internal/model"
)

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// IBrokerSession is the thread-affine broker gateway client. The session must
// be created, used and closed on a single OS thread; Drain advances the event
// pump and mutates the live views returned by Orders, Positions, Trades and
// Account in place.
type IBrokerSession interface {
	// Drain blocks until a broker event arrives or the deadline passes.
	// It returns true if at least one event was observed.
	Drain(deadline time.Time) bool

	// Live views. The returned maps are owned by the session and are only
	// stable between Drain calls.
	Orders() map[string]*model.Order
	Positions() map[string]*model.FullPosition
	Trades() map[string]*model.Trade
	Account() model.Account

	// InsertOrder hands a new order to the broker. The returned order is the
	// live row that subsequent drains will refresh.
	InsertOrder(req *model.OrderRequest) (*model.Order, error)

	// CancelOrder requests cancellation of a working order.
	CancelOrder(orderID string) error

	Close() error
}

// SessionFactory creates the broker session inside the worker thread. It is
// called at most once per service lifetime.
type SessionFactory func() (IBrokerSession, error)

// IPositionCache is the position/account snapshot cache.
type IPositionCache interface {
	SetPosition(ctx context.Context, portfolioID, symbol string, pos model.FullPosition, ttl time.Duration) error
	GetPosition(ctx context.Context, portfolioID, symbol string) (*model.FullPosition, error)
	RefreshPosition(ctx context.Context, portfolioID, symbol string, ttl time.Duration) (bool, error)
	SetAccount(ctx context.Context, portfolioID string, acc model.Account, ttl time.Duration) error
	Close() error
}

// IOrderStore is the relational sink for orders, trades and audit events.
type IOrderStore interface {
	InsertOrder(ctx context.Context, rec *model.OrderRecord) error
	ApplyOrderUpdate(ctx context.Context, upd *model.OrderUpdate) error
	InsertTrade(ctx context.Context, trade *model.Trade) error
	AppendOrderEvent(ctx context.Context, upd *model.OrderUpdate) error
	UniverseSymbols(ctx context.Context) ([]string, error)
	Close() error
}

// IPublisher publishes persistent JSON messages to an exchange.
type IPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	Close() error
}
