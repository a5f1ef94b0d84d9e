package model

import "encoding/json"

// FullPosition is the authoritative cache schema for one portfolio x symbol
// pair. Pos is the net position, today/his fields break each side down by
// trading day.
type FullPosition struct {
	PosLong       int64 `json:"pos_long"`
	PosShort      int64 `json:"pos_short"`
	Pos           int64 `json:"pos"`
	PosLongToday  int64 `json:"pos_long_today"`
	PosLongHis    int64 `json:"pos_long_his"`
	PosShortToday int64 `json:"pos_short_today"`
	PosShortHis   int64 `json:"pos_short_his"`
}

// ZeroPosition returns the all-zero snapshot written for universe symbols the
// broker reports no position for.
func ZeroPosition() FullPosition {
	return FullPosition{}
}

// Equal compares all seven fields.
func (p FullPosition) Equal(other FullPosition) bool {
	return p == other
}

// IsZero reports whether every field is zero.
func (p FullPosition) IsZero() bool {
	return p == FullPosition{}
}

// Consistent verifies the side breakdown invariants: each side equals its
// today+his parts and the net equals long minus short.
func (p FullPosition) Consistent() bool {
	return p.PosLong == p.PosLongToday+p.PosLongHis &&
		p.PosShort == p.PosShortToday+p.PosShortHis &&
		p.Pos == p.PosLong-p.PosShort
}

// MarshalBinary lets the redis client store the position directly.
func (p FullPosition) MarshalBinary() ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalBinary is the redis-side counterpart of MarshalBinary.
func (p *FullPosition) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, p)
}

// Account is the broker account snapshot cached per portfolio.
type Account struct {
	Balance        float64 `json:"balance"`
	Available      float64 `json:"available"`
	Margin         float64 `json:"margin"`
	RiskRatio      float64 `json:"risk_ratio"`
	PositionProfit float64 `json:"position_profit"`
}

// MarshalBinary lets the redis client store the snapshot directly.
func (a Account) MarshalBinary() ([]byte, error) {
	return json.Marshal(a)
}

// UnmarshalBinary is the redis-side counterpart of MarshalBinary.
func (a *Account) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, a)
}
