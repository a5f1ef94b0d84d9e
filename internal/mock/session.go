package mock

import (
	"sync"
	"time"

	"tqbridge/internal/model"
)

// BrokerSession is a scriptable in-memory broker session. Tests prime the
// live views directly and script Drain outcomes; every gateway call is
// recorded for assertions.
type BrokerSession struct {
	mu sync.Mutex

	orders    map[string]*model.Order
	positions map[string]*model.FullPosition
	trades    map[string]*model.Trade
	account   model.Account

	// DrainResults is consumed front to back; when exhausted Drain
	// returns DrainDefault.
	DrainResults []bool
	DrainDefault bool
	// DrainHook runs inside every Drain call, letting tests mutate the
	// live views as a real gateway would.
	DrainHook func(drainCount int)

	DrainCount int
	Inserted   []*model.OrderRequest
	Canceled   []string
	InsertErr  error
	CancelErr  error
	Closed     bool
}

// NewBrokerSession returns a session whose drains succeed by default.
func NewBrokerSession() *BrokerSession {
	return &BrokerSession{
		orders:       make(map[string]*model.Order),
		positions:    make(map[string]*model.FullPosition),
		trades:       make(map[string]*model.Trade),
		DrainDefault: true,
	}
}

func (s *BrokerSession) Drain(deadline time.Time) bool {
	s.mu.Lock()
	s.DrainCount++
	count := s.DrainCount
	result := s.DrainDefault
	if len(s.DrainResults) > 0 {
		result = s.DrainResults[0]
		s.DrainResults = s.DrainResults[1:]
	}
	hook := s.DrainHook
	s.mu.Unlock()

	if hook != nil {
		hook(count)
	}
	return result
}

func (s *BrokerSession) Orders() map[string]*model.Order           { return s.orders }
func (s *BrokerSession) Positions() map[string]*model.FullPosition { return s.positions }
func (s *BrokerSession) Trades() map[string]*model.Trade           { return s.trades }
func (s *BrokerSession) Account() model.Account                    { return s.account }

func (s *BrokerSession) InsertOrder(req *model.OrderRequest) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return nil, s.InsertErr
	}
	reqCopy := *req
	s.Inserted = append(s.Inserted, &reqCopy)
	order := &model.Order{
		OrderID:      req.OrderID,
		ExchangeID:   req.ExchangeID(),
		InstrumentID: model.NormalizeInstrumentID(req.Symbol),
		Direction:    req.Direction,
		Offset:       req.Offset,
		VolumeOrign:  req.Volume,
		VolumeLeft:   req.Volume,
		Status:       model.StatusAlive,
	}
	s.orders[req.OrderID] = order
	return order, nil
}

func (s *BrokerSession) CancelOrder(orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CancelErr != nil {
		return s.CancelErr
	}
	s.Canceled = append(s.Canceled, orderID)
	return nil
}

func (s *BrokerSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Priming helpers used by tests.

func (s *BrokerSession) SetOrder(order *model.Order) {
	s.orders[order.OrderID] = order
}

func (s *BrokerSession) SetPosition(symbol string, pos model.FullPosition) {
	p := pos
	s.positions[symbol] = &p
}

func (s *BrokerSession) RemovePosition(symbol string) {
	delete(s.positions, symbol)
}

func (s *BrokerSession) SetTrade(trade *model.Trade) {
	s.trades[trade.TradeID] = trade
}

func (s *BrokerSession) SetAccount(acc model.Account) {
	s.account = acc
}
