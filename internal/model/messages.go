package model

import "time"

// Message types on the internal exchange.
const (
	TypeOrderUpdate    = "ORDER_UPDATE"
	TypePositionUpdate = "POSITION_UPDATE"
	TypeAccountUpdate  = "ACCOUNT_UPDATE"
)

// OrderUpdate is published by the order monitor after every detected order
// change and consumed by the order handler.
type OrderUpdate struct {
	Type           string   `json:"type"`
	Timestamp      string   `json:"timestamp"`
	PortfolioID    string   `json:"portfolio_id"`
	OrderID        string   `json:"order_id"`
	Status         string   `json:"status"`
	EventType      string   `json:"event_type"`
	FilledQuantity int64    `json:"filled_quantity"`
	Symbol         string   `json:"symbol"`
	Direction      string   `json:"direction"`
	Offset         string   `json:"offset"`
	VolumeOrign    int64    `json:"volume_orign"`
	VolumeLeft     int64    `json:"volume_left"`
	LimitPrice     *float64 `json:"limit_price,omitempty"`
	Trades         []Trade  `json:"trades,omitempty"`
}

// NewOrderUpdate stamps the message envelope.
func NewOrderUpdate(portfolioID string) *OrderUpdate {
	return &OrderUpdate{
		Type:        TypeOrderUpdate,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		PortfolioID: portfolioID,
	}
}

// PositionUpdate is published by the position monitor when the net position
// of a symbol changes. Position is nil for the zero/close event of a symbol
// that disappeared from the broker view.
type PositionUpdate struct {
	Type        string        `json:"type"`
	Timestamp   string        `json:"timestamp"`
	PortfolioID string        `json:"portfolio_id"`
	Symbol      string        `json:"symbol"`
	Position    *FullPosition `json:"position,omitempty"`
}

// NewPositionUpdate stamps the message envelope.
func NewPositionUpdate(portfolioID, symbol string, pos *FullPosition) *PositionUpdate {
	return &PositionUpdate{
		Type:        TypePositionUpdate,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		PortfolioID: portfolioID,
		Symbol:      symbol,
		Position:    pos,
	}
}

// AccountUpdate is published by the account monitor when any tracked account
// field moves beyond the change threshold.
type AccountUpdate struct {
	Type           string  `json:"type"`
	Timestamp      string  `json:"timestamp"`
	PortfolioID    string  `json:"portfolio_id"`
	Balance        float64 `json:"balance"`
	Available      float64 `json:"available"`
	Margin         float64 `json:"margin"`
	RiskRatio      float64 `json:"risk_ratio"`
	PositionProfit float64 `json:"position_profit"`
}

// NewAccountUpdate stamps the message envelope around an account snapshot.
func NewAccountUpdate(portfolioID string, acc Account) *AccountUpdate {
	return &AccountUpdate{
		Type:           TypeAccountUpdate,
		Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
		PortfolioID:    portfolioID,
		Balance:        acc.Balance,
		Available:      acc.Available,
		Margin:         acc.Margin,
		RiskRatio:      acc.RiskRatio,
		PositionProfit: acc.PositionProfit,
	}
}

// Snapshot returns the account fields of the update.
func (u *AccountUpdate) Snapshot() Account {
	return Account{
		Balance:        u.Balance,
		Available:      u.Available,
		Margin:         u.Margin,
		RiskRatio:      u.RiskRatio,
		PositionProfit: u.PositionProfit,
	}
}
