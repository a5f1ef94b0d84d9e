// Package broker implements the gateway session: a thread-affine websocket
// client speaking the gateway's merge-diff protocol. The session keeps a
// mirror of the server state and projects it into the live order, position,
// trade and account views refreshed by Drain.
package broker

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"tqbridge/internal/config"
	"tqbridge/internal/core"
	"tqbridge/internal/model"
	apperrors "tqbridge/pkg/errors"

	"github.com/gorilla/websocket"
)

const (
	aidLogin       = "req_login"
	aidSubscribe   = "subscribe_quote"
	aidPeek        = "peek_message"
	aidInsertOrder = "insert_order"
	aidCancelOrder = "cancel_order"
	aidReturnData  = "rtn_data"
	priceTypeLimit = "LIMIT"
	priceTypeAny   = "ANY"
	dialTimeout    = 10 * time.Second
	writeDeadline  = 5 * time.Second
)

// Session owns one gateway connection. It is not safe for concurrent use;
// the worker loop that created it is its only caller.
type Session struct {
	conn      *websocket.Conn
	cfg       config.TQConfig
	logger    core.ILogger
	mirror    map[string]interface{}
	orders    map[string]*model.Order
	positions map[string]*model.FullPosition
	trades    map[string]*model.Trade
	account   model.Account
}

// NewSession dials the gateway, logs in and subscribes the warm-up set
// (account, orders and the reference quote) so the first drains carry data.
func NewSession(cfg config.TQConfig, logger core.ILogger) (*Session, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(cfg.GatewayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", apperrors.ErrSessionCreateFailure, cfg.GatewayURL, err)
	}

	s := &Session{
		conn:      conn,
		cfg:       cfg,
		logger:    logger.WithField("component", "broker_session"),
		mirror:    make(map[string]interface{}),
		orders:    make(map[string]*model.Order),
		positions: make(map[string]*model.FullPosition),
		trades:    make(map[string]*model.Trade),
	}

	if err := s.send(loginRequest{
		Aid:      aidLogin,
		BrokerID: cfg.BrokerID,
		UserName: cfg.AccountID,
		Password: cfg.Password,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: login: %v", apperrors.ErrSessionCreateFailure, err)
	}

	if cfg.ReferenceQuote != "" {
		if err := s.send(subscribeQuoteRequest{Aid: aidSubscribe, InsList: cfg.ReferenceQuote}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: subscribe: %v", apperrors.ErrSessionCreateFailure, err)
		}
	}

	s.logger.Info("broker session established", "gateway", cfg.GatewayURL, "account", cfg.AccountID)
	return s, nil
}

// Factory returns a SessionFactory bound to the given config. The factory is
// invoked on the worker thread so the connection is created there.
func Factory(cfg config.TQConfig, logger core.ILogger) core.SessionFactory {
	return func() (core.IBrokerSession, error) {
		return NewSession(cfg, logger)
	}
}

// Drain asks the gateway for pending diffs and blocks until a frame arrives
// or the deadline passes. It returns true if at least one data frame was
// merged into the live views.
func (s *Session) Drain(deadline time.Time) bool {
	if err := s.send(serverFrame{Aid: aidPeek}); err != nil {
		s.logger.Error("peek request failed", "error", err)
		return false
	}

	if err := s.conn.SetReadDeadline(deadline); err != nil {
		s.logger.Error("set read deadline failed", "error", err)
		return false
	}

	_, payload, err := s.conn.ReadMessage()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false
		}
		s.logger.Error("gateway read failed", "error", err)
		return false
	}

	var frame serverFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		s.logger.Error("gateway frame decode failed", "error", err)
		return false
	}
	if frame.Aid != aidReturnData || len(frame.Data) == 0 {
		return false
	}

	for _, diff := range frame.Data {
		mergeDiff(s.mirror, diff)
	}
	s.project()
	return true
}

// Orders returns the live order view.
func (s *Session) Orders() map[string]*model.Order { return s.orders }

// Positions returns the live position view keyed by broker symbol.
func (s *Session) Positions() map[string]*model.FullPosition { return s.positions }

// Trades returns the live trade view keyed by trade id.
func (s *Session) Trades() map[string]*model.Trade { return s.trades }

// Account returns the current account snapshot.
func (s *Session) Account() model.Account { return s.account }

// InsertOrder hands a new order to the gateway and registers its live row.
// The row starts ALIVE with volume_left equal to the requested volume;
// subsequent drains refresh it from gateway diffs.
func (s *Session) InsertOrder(req *model.OrderRequest) (*model.Order, error) {
	priceType := priceTypeAny
	if req.LimitPrice != nil {
		priceType = priceTypeLimit
	}

	wire := insertOrderRequest{
		Aid:          aidInsertOrder,
		UserID:       s.cfg.AccountID,
		OrderID:      req.OrderID,
		ExchangeID:   req.ExchangeID(),
		InstrumentID: model.NormalizeInstrumentID(req.Symbol),
		Direction:    req.Direction,
		Offset:       req.Offset,
		VolumeOrign:  req.Volume,
		PriceType:    priceType,
		LimitPrice:   req.LimitPrice,
	}
	if err := s.send(wire); err != nil {
		return nil, fmt.Errorf("%w: insert_order %s: %v", apperrors.ErrBrokerCallFailure, req.OrderID, err)
	}

	order := &model.Order{
		OrderID:        req.OrderID,
		ExchangeID:     wire.ExchangeID,
		InstrumentID:   wire.InstrumentID,
		Direction:      req.Direction,
		Offset:         req.Offset,
		VolumeOrign:    req.Volume,
		VolumeLeft:     req.Volume,
		Status:         model.StatusAlive,
		InsertDateTime: time.Now().UnixNano(),
	}
	if req.LimitPrice != nil {
		order.LimitPrice = *req.LimitPrice
	}
	s.orders[req.OrderID] = order
	return order, nil
}

// CancelOrder requests cancellation of a working order.
func (s *Session) CancelOrder(orderID string) error {
	if err := s.send(cancelOrderRequest{Aid: aidCancelOrder, UserID: s.cfg.AccountID, OrderID: orderID}); err != nil {
		return fmt.Errorf("%w: cancel_order %s: %v", apperrors.ErrBrokerCallFailure, orderID, err)
	}
	return nil
}

// Close tears down the connection.
func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) send(v interface{}) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

// project refreshes the live views from the mirror. Existing rows are
// mutated in place so callers holding a row across drains see updates.
func (s *Session) project() {
	user := getMap(s.mirror, "trade", s.cfg.AccountID)
	if user == nil {
		return
	}

	for id, raw := range getMap(user, "orders") {
		row, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		order := s.orders[id]
		if order == nil {
			order = &model.Order{OrderID: id}
			s.orders[id] = order
		}
		if v := getString(row, "exchange_order_id"); v != "" {
			order.ExchangeOrderID = v
		}
		if v := getString(row, "exchange_id"); v != "" {
			order.ExchangeID = v
		}
		if v := getString(row, "instrument_id"); v != "" {
			order.InstrumentID = v
		}
		if v := getString(row, "direction"); v != "" {
			order.Direction = v
		}
		if v := getString(row, "offset"); v != "" {
			order.Offset = v
		}
		if v := getString(row, "status"); v != "" {
			order.Status = v
		}
		if v := getString(row, "last_msg"); v != "" {
			order.LastMsg = v
		}
		if _, present := row["volume_orign"]; present {
			order.VolumeOrign = getInt(row, "volume_orign")
		}
		if _, present := row["volume_left"]; present {
			order.VolumeLeft = getInt(row, "volume_left")
		}
		if _, present := row["limit_price"]; present {
			order.LimitPrice = getFloat(row, "limit_price")
		}
		if _, present := row["trade_price"]; present {
			order.TradePrice = getFloat(row, "trade_price")
		}
		if _, present := row["insert_date_time"]; present {
			order.InsertDateTime = getInt(row, "insert_date_time")
		}
		if v := getString(row, "exchange_trading_date"); v != "" {
			order.ExchangeTradingDate = v
		}
		order.IsDead = getBool(row, "is_dead") || order.Status == model.StatusFinished
		order.IsOnline = getBool(row, "is_online")
		order.IsError = getBool(row, "is_error")
	}

	for symbol, raw := range getMap(user, "positions") {
		row, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		pos := s.positions[symbol]
		if pos == nil {
			pos = &model.FullPosition{}
			s.positions[symbol] = pos
		}
		pos.PosLong = getInt(row, "pos_long_today") + getInt(row, "pos_long_his")
		pos.PosShort = getInt(row, "pos_short_today") + getInt(row, "pos_short_his")
		pos.Pos = pos.PosLong - pos.PosShort
		pos.PosLongToday = getInt(row, "pos_long_today")
		pos.PosLongHis = getInt(row, "pos_long_his")
		pos.PosShortToday = getInt(row, "pos_short_today")
		pos.PosShortHis = getInt(row, "pos_short_his")
		if pos.IsZero() {
			delete(s.positions, symbol)
		}
	}

	for id, raw := range getMap(user, "trades") {
		row, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if _, seen := s.trades[id]; seen {
			continue
		}
		s.trades[id] = &model.Trade{
			TradeID:       id,
			OrderID:       getString(row, "order_id"),
			ExchangeID:    getString(row, "exchange_id"),
			InstrumentID:  getString(row, "instrument_id"),
			Direction:     getString(row, "direction"),
			Offset:        getString(row, "offset"),
			Price:         getFloat(row, "price"),
			Volume:        getInt(row, "volume"),
			Commission:    getFloat(row, "commission"),
			TradeDateTime: getInt(row, "trade_date_time"),
			Seqno:         getInt(row, "seqno"),
		}
	}

	if acc := getMap(user, "accounts", "CNY"); acc != nil {
		s.account = model.Account{
			Balance:        getFloat(acc, "balance"),
			Available:      getFloat(acc, "available"),
			Margin:         getFloat(acc, "margin"),
			RiskRatio:      getFloat(acc, "risk_ratio"),
			PositionProfit: getFloat(acc, "position_profit"),
		}
	}
}
