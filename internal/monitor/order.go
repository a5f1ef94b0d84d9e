package monitor

import (
	"tqbridge/internal/core"
	"tqbridge/internal/model"
	"tqbridge/pkg/telemetry"
)

// orderSnapshot is the immutable projection the order monitor diffs. Only
// the fields that drive event classification are copied from the live row.
type orderSnapshot struct {
	Status          string
	VolumeLeft      int64
	VolumeOrign     int64
	ExchangeOrderID string
	ExchangeID      string
}

// OrderMonitor watches the live order view and publishes one ORDER_UPDATE
// per detected change. It also attaches fills that appeared since the last
// tick so the order handler can persist trades.
type OrderMonitor struct {
	portfolioID string
	publisher   *EventPublisher
	logger      core.ILogger

	session    core.IBrokerSession
	previous   map[string]orderSnapshot
	seenTrades map[string]bool
}

// NewOrderMonitor builds the worker for the order monitor service.
func NewOrderMonitor(portfolioID string, publisher *EventPublisher, logger core.ILogger) *OrderMonitor {
	return &OrderMonitor{
		portfolioID: portfolioID,
		publisher:   publisher,
		logger:      logger.WithField("component", "order_monitor"),
		previous:    make(map[string]orderSnapshot),
		seenTrades:  make(map[string]bool),
	}
}

func (m *OrderMonitor) InitWorker(session core.IBrokerSession) error {
	m.session = session
	m.logger.Info("order monitor started", "portfolio_id", m.portfolioID)
	return nil
}

// ProcessMessage is unused; the order monitor consumes no queue.
func (m *OrderMonitor) ProcessMessage([]byte) bool { return true }

func (m *OrderMonitor) CleanupWorker() {
	m.publisher.Stop()
	m.logger.Info("order monitor stopped")
}

// OnDrain diffs the live order view after every successful drain.
func (m *OrderMonitor) OnDrain(ok bool) {
	if !ok {
		return
	}

	orders := m.session.Orders()
	current := make(map[string]orderSnapshot, len(orders))
	alive := int64(0)

	for orderID, order := range orders {
		snap := orderSnapshot{
			Status:          order.Status,
			VolumeLeft:      order.VolumeLeft,
			VolumeOrign:     order.VolumeOrign,
			ExchangeOrderID: order.ExchangeOrderID,
			ExchangeID:      order.ExchangeID,
		}
		current[orderID] = snap
		if order.Alive() {
			alive++
		}

		prev, seen := m.previous[orderID]
		if seen && prev == snap {
			continue
		}
		m.publish(orderID, order)
	}

	m.previous = current
	telemetry.GetGlobalMetrics().SetOrdersAlive(alive)
}

func (m *OrderMonitor) publish(orderID string, order *model.Order) {
	eventType := classifyOrderEvent(order.Status, order.VolumeOrign, order.VolumeLeft)

	upd := model.NewOrderUpdate(m.portfolioID)
	upd.OrderID = orderID
	upd.Status = order.Status
	upd.EventType = eventType
	upd.FilledQuantity = order.VolumeOrign - order.VolumeLeft
	upd.Symbol = order.InstrumentID
	upd.Direction = order.Direction
	upd.Offset = order.Offset
	upd.VolumeOrign = order.VolumeOrign
	upd.VolumeLeft = order.VolumeLeft
	if order.LimitPrice != 0 {
		price := order.LimitPrice
		upd.LimitPrice = &price
	}
	upd.Trades = m.newTradesFor(orderID)

	m.logger.Info("order update", "order_id", orderID, "event_type", eventType,
		"status", order.Status, "volume_left", order.VolumeLeft)
	m.publisher.PublishAsync(core.RoutingKeyOrderUpdates, upd)
}

// newTradesFor collects fills for one order that were not attached to an
// earlier update.
func (m *OrderMonitor) newTradesFor(orderID string) []model.Trade {
	var out []model.Trade
	for tradeID, trade := range m.session.Trades() {
		if trade.OrderID != orderID || m.seenTrades[tradeID] {
			continue
		}
		m.seenTrades[tradeID] = true
		out = append(out, *trade)
	}
	return out
}

// classifyOrderEvent maps broker order state to the bridge event type.
func classifyOrderEvent(status string, volumeOrign, volumeLeft int64) string {
	switch status {
	case model.StatusFinished:
		if volumeLeft == 0 {
			return model.EventCompleteFill
		}
		return model.EventCanceled
	case model.StatusAlive:
		if volumeLeft < volumeOrign {
			return model.EventPartialFill
		}
		return model.EventNew
	}
	return status
}
