// Package model defines the wire and persistence entities shared across the
// bridge services: inbound order commands, broker order/position/account
// state, and the update messages published on the internal exchange.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Order directions.
const (
	DirectionBuy  = "BUY"
	DirectionSell = "SELL"
)

// Order offsets.
const (
	OffsetOpen       = "OPEN"
	OffsetClose      = "CLOSE"
	OffsetCloseToday = "CLOSETODAY"
)

// Broker order statuses.
const (
	StatusAlive    = "ALIVE"
	StatusFinished = "FINISHED"
)

// Request actions.
const (
	ActionSubmit = "SUBMIT"
	ActionCancel = "CANCEL"
)

// Cancel selector types.
const (
	CancelByOrderID      = "order_id"
	CancelByContractCode = "contract_code"
	CancelAll            = "all"
)

// Order event types derived by the order monitor.
const (
	EventNew          = "NEW"
	EventPartialFill  = "PARTIAL_FILL"
	EventCompleteFill = "COMPLETE_FILL"
	EventCanceled     = "CANCELED"
)

// OrderRequest is the inbound command from the strategy engine. SUBMIT
// requests carry the order fields; CANCEL requests carry Type plus the
// matching selector.
type OrderRequest struct {
	Action       string   `json:"action,omitempty"`
	Symbol       string   `json:"symbol,omitempty"`
	Direction    string   `json:"direction,omitempty"`
	Offset       string   `json:"offset,omitempty"`
	Volume       int64    `json:"volume,omitempty"`
	LimitPrice   *float64 `json:"limit_price,omitempty"`
	OrderID      string   `json:"order_id,omitempty"`
	PortfolioID  string   `json:"portfolio_id,omitempty"`
	Timestamp    int64    `json:"timestamp,omitempty"` // nanoseconds since epoch
	Type         string   `json:"type,omitempty"`
	ContractCode string   `json:"contract_code,omitempty"`
}

// IsCancel reports whether the request is a cancel command.
func (r *OrderRequest) IsCancel() bool {
	return r.Action == ActionCancel
}

// ValidateSubmit checks the fields a SUBMIT request must carry.
func (r *OrderRequest) ValidateSubmit() error {
	if r.Symbol == "" {
		return fmt.Errorf("missing symbol")
	}
	if r.Direction != DirectionBuy && r.Direction != DirectionSell {
		return fmt.Errorf("invalid direction: %q", r.Direction)
	}
	switch r.Offset {
	case OffsetOpen, OffsetClose, OffsetCloseToday:
	default:
		return fmt.Errorf("invalid offset: %q", r.Offset)
	}
	if r.Volume < 1 {
		return fmt.Errorf("invalid volume: %d", r.Volume)
	}
	if r.OrderID == "" {
		return fmt.Errorf("missing order_id")
	}
	return nil
}

// Age returns the request age relative to now based on the nanosecond
// origin timestamp.
func (r *OrderRequest) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, r.Timestamp))
}

// ExchangeID returns the exchange prefix of the request symbol
// ("SHFE.rb2505" -> "SHFE").
func (r *OrderRequest) ExchangeID() string {
	return SymbolExchange(r.Symbol)
}

// SymbolExchange extracts the exchange prefix of a broker symbol.
func SymbolExchange(symbol string) string {
	if i := strings.IndexByte(symbol, '.'); i >= 0 {
		return symbol[:i]
	}
	return ""
}

// NormalizeInstrumentID strips the exchange prefix from a contract code so
// that "SHFE.rb2505" and "rb2505" compare equal.
func NormalizeInstrumentID(code string) string {
	if i := strings.IndexByte(code, '.'); i >= 0 {
		return code[i+1:]
	}
	return code
}

// Order is the live broker order row. It is created once when the order is
// inserted and mutated in place by subsequent session drains; monitors never
// hold onto it across ticks, they project it into OrderSnapshot values.
type Order struct {
	OrderID             string
	ExchangeOrderID     string
	ExchangeID          string
	InstrumentID        string
	Direction           string
	Offset              string
	VolumeOrign         int64
	VolumeLeft          int64
	LimitPrice          float64
	Status              string
	IsDead              bool
	IsOnline            bool
	IsError             bool
	LastMsg             string
	TradePrice          float64
	InsertDateTime      int64 // nanoseconds since epoch
	ExchangeTradingDate string
}

// Alive reports whether the order is still working at the broker.
func (o *Order) Alive() bool {
	return o.Status == StatusAlive
}

// Trade is an immutable fill keyed by the broker-assigned trade id.
type Trade struct {
	TradeID       string  `json:"trade_id"`
	OrderID       string  `json:"order_id"`
	ExchangeID    string  `json:"exchange_id,omitempty"`
	InstrumentID  string  `json:"instrument_id,omitempty"`
	Direction     string  `json:"direction,omitempty"`
	Offset        string  `json:"offset,omitempty"`
	Price         float64 `json:"price"`
	Volume        int64   `json:"volume"`
	Commission    float64 `json:"commission,omitempty"`
	TradeDateTime int64   `json:"trade_date_time,omitempty"`
	Seqno         int64   `json:"seqno,omitempty"`
}

// OrderRecord is the orders table row written once by the submitter and
// updated by the order handler as broker state advances.
type OrderRecord struct {
	OrderID             string
	ExchangeOrderID     string
	ExchangeID          string
	InstrumentID        string
	Direction           string
	Offset              string
	VolumeOrign         int64
	VolumeLeft          int64
	LimitPrice          *float64
	Status              string
	IsDead              bool
	IsOnline            bool
	IsError             bool
	LastMsg             string
	TradePrice          float64
	PortfolioID         string
	ContractCode        string
	ExchangeTradingDate string
	OriginTimestamp     int64
	InsertDateTime      time.Time
}

// NewOrderRecord builds the initial orders row for a submit request. The
// mutable fields carry their lifecycle defaults: status ALIVE, volume_left
// equal to volume_orign.
func NewOrderRecord(req *OrderRequest, now time.Time) *OrderRecord {
	return &OrderRecord{
		OrderID:         req.OrderID,
		ExchangeID:      req.ExchangeID(),
		InstrumentID:    NormalizeInstrumentID(req.Symbol),
		Direction:       req.Direction,
		Offset:          req.Offset,
		VolumeOrign:     req.Volume,
		VolumeLeft:      req.Volume,
		LimitPrice:      req.LimitPrice,
		Status:          StatusAlive,
		PortfolioID:     req.PortfolioID,
		ContractCode:    req.Symbol,
		OriginTimestamp: req.Timestamp,
		InsertDateTime:  now,
	}
}
