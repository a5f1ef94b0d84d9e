package mock

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"tqbridge/internal/model"
)

// cacheEntry is one stored snapshot with its last-written TTL.
type cacheEntry struct {
	pos model.FullPosition
	ttl time.Duration
}

// PositionCache is an in-memory core.IPositionCache that records TTLs and
// the order of write and refresh calls.
type PositionCache struct {
	mu          sync.Mutex
	positions   map[string]cacheEntry
	accounts    map[string]model.Account
	AccountTTLs map[string]time.Duration
	Sets        []string
	Refreshes   []string
	SetErr      error
}

func NewPositionCache() *PositionCache {
	return &PositionCache{
		positions:   make(map[string]cacheEntry),
		accounts:    make(map[string]model.Account),
		AccountTTLs: make(map[string]time.Duration),
	}
}

func key(portfolioID, symbol string) string { return portfolioID + "/" + symbol }

func (c *PositionCache) SetPosition(ctx context.Context, portfolioID, symbol string, pos model.FullPosition, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SetErr != nil {
		return c.SetErr
	}
	c.positions[key(portfolioID, symbol)] = cacheEntry{pos: pos, ttl: ttl}
	c.Sets = append(c.Sets, key(portfolioID, symbol))
	return nil
}

func (c *PositionCache) GetPosition(ctx context.Context, portfolioID, symbol string) (*model.FullPosition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.positions[key(portfolioID, symbol)]
	if !ok {
		return nil, nil
	}
	pos := entry.pos
	return &pos, nil
}

func (c *PositionCache) RefreshPosition(ctx context.Context, portfolioID, symbol string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.positions[key(portfolioID, symbol)]
	if !ok {
		return false, nil
	}
	entry.ttl = ttl
	c.positions[key(portfolioID, symbol)] = entry
	c.Refreshes = append(c.Refreshes, key(portfolioID, symbol))
	return true, nil
}

func (c *PositionCache) SetAccount(ctx context.Context, portfolioID string, acc model.Account, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SetErr != nil {
		return c.SetErr
	}
	c.accounts[portfolioID] = acc
	c.AccountTTLs[portfolioID] = ttl
	return nil
}

func (c *PositionCache) Close() error { return nil }

// TTL returns the TTL recorded by the last write or refresh for the key,
// or zero if the key is absent.
func (c *PositionCache) TTL(portfolioID, symbol string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positions[key(portfolioID, symbol)].ttl
}

// Has reports whether a position entry exists.
func (c *PositionCache) Has(portfolioID, symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.positions[key(portfolioID, symbol)]
	return ok
}

// Account returns the stored account snapshot.
func (c *PositionCache) Account(portfolioID string) (model.Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, ok := c.accounts[portfolioID]
	return acc, ok
}

// Published is one message captured by the Publisher.
type Published struct {
	Exchange   string
	RoutingKey string
	Body       []byte
}

// Publisher captures published messages instead of sending them.
type Publisher struct {
	mu       sync.Mutex
	Messages []Published
	Err      error
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	p.Messages = append(p.Messages, Published{Exchange: exchange, RoutingKey: routingKey, Body: payload})
	return nil
}

func (p *Publisher) Close() error { return nil }

// ByRoutingKey returns captured messages for one routing key.
func (p *Publisher) ByRoutingKey(rk string) []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Published
	for _, m := range p.Messages {
		if m.RoutingKey == rk {
			out = append(out, m)
		}
	}
	return out
}

// OrderStore is an in-memory core.IOrderStore recording every call.
type OrderStore struct {
	mu          sync.Mutex
	Orders      map[string]*model.OrderRecord
	Updates     []*model.OrderUpdate
	Trades      map[string]*model.Trade
	Events      []*model.OrderUpdate
	Universe    []string
	InsertErr   error
	UpdateErr   error
	UniverseErr error
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		Orders: make(map[string]*model.OrderRecord),
		Trades: make(map[string]*model.Trade),
	}
}

func (s *OrderStore) InsertOrder(ctx context.Context, rec *model.OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return s.InsertErr
	}
	recCopy := *rec
	s.Orders[rec.OrderID] = &recCopy
	return nil
}

func (s *OrderStore) ApplyOrderUpdate(ctx context.Context, upd *model.OrderUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	s.Updates = append(s.Updates, upd)
	return nil
}

func (s *OrderStore) InsertTrade(ctx context.Context, trade *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.Trades[trade.TradeID]; seen {
		return nil
	}
	tradeCopy := *trade
	s.Trades[trade.TradeID] = &tradeCopy
	return nil
}

func (s *OrderStore) AppendOrderEvent(ctx context.Context, upd *model.OrderUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, upd)
	return nil
}

func (s *OrderStore) UniverseSymbols(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UniverseErr != nil {
		return nil, s.UniverseErr
	}
	return append([]string(nil), s.Universe...), nil
}

func (s *OrderStore) Close() error { return nil }

// InsertedOrder returns the recorded insert for an order id.
func (s *OrderStore) InsertedOrder(orderID string) *model.OrderRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Orders[orderID]
}
