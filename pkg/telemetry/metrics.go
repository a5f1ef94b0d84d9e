package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricDrainsTotal           = "tqbridge_drains_total"
	MetricDrainTimeoutsTotal    = "tqbridge_drain_timeouts_total"
	MetricMessagesConsumedTotal = "tqbridge_messages_consumed_total"
	MetricMessagesAckedTotal    = "tqbridge_messages_acked_total"
	MetricMessagesNackedTotal   = "tqbridge_messages_nacked_total"
	MetricOrdersSubmittedTotal  = "tqbridge_orders_submitted_total"
	MetricOrdersRejectedTotal   = "tqbridge_orders_rejected_total"
	MetricOrdersCanceledTotal   = "tqbridge_orders_canceled_total"
	MetricPublishesTotal        = "tqbridge_publishes_total"
	MetricReconcileCyclesTotal  = "tqbridge_reconcile_cycles_total"
	MetricReconcileMismatches   = "tqbridge_reconcile_mismatches_total"
	MetricBlockCounter          = "tqbridge_drain_block_counter"
	MetricOrdersAlive           = "tqbridge_orders_alive"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	DrainsTotal           metric.Int64Counter
	DrainTimeoutsTotal    metric.Int64Counter
	MessagesConsumedTotal metric.Int64Counter
	MessagesAckedTotal    metric.Int64Counter
	MessagesNackedTotal   metric.Int64Counter
	OrdersSubmittedTotal  metric.Int64Counter
	OrdersRejectedTotal   metric.Int64Counter
	OrdersCanceledTotal   metric.Int64Counter
	PublishesTotal        metric.Int64Counter
	ReconcileCyclesTotal  metric.Int64Counter
	ReconcileMismatches   metric.Int64Counter
	BlockCounter          metric.Int64ObservableGauge
	OrdersAlive           metric.Int64ObservableGauge

	// State for observable gauges
	mu           sync.RWMutex
	blockCounter int64
	ordersAlive  int64
	service      string
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder. Instruments are
// bound to the ambient meter provider up front (no-op until Setup runs) and
// rebound to the real provider by Setup.
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{}
		if err := globalMetrics.InitMetrics(otel.GetMeterProvider().Meter("tqbridge")); err != nil {
			panic(err)
		}
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.DrainsTotal, err = meter.Int64Counter(MetricDrainsTotal, metric.WithDescription("Total broker session drain calls"))
	if err != nil {
		return err
	}

	m.DrainTimeoutsTotal, err = meter.Int64Counter(MetricDrainTimeoutsTotal, metric.WithDescription("Drain calls that hit the deadline without an event"))
	if err != nil {
		return err
	}

	m.MessagesConsumedTotal, err = meter.Int64Counter(MetricMessagesConsumedTotal, metric.WithDescription("Messages received from the bus"))
	if err != nil {
		return err
	}

	m.MessagesAckedTotal, err = meter.Int64Counter(MetricMessagesAckedTotal, metric.WithDescription("Messages positively acknowledged"))
	if err != nil {
		return err
	}

	m.MessagesNackedTotal, err = meter.Int64Counter(MetricMessagesNackedTotal, metric.WithDescription("Messages negatively acknowledged"))
	if err != nil {
		return err
	}

	m.OrdersSubmittedTotal, err = meter.Int64Counter(MetricOrdersSubmittedTotal, metric.WithDescription("Orders handed to the broker"))
	if err != nil {
		return err
	}

	m.OrdersRejectedTotal, err = meter.Int64Counter(MetricOrdersRejectedTotal, metric.WithDescription("Submit requests rejected before the broker call"))
	if err != nil {
		return err
	}

	m.OrdersCanceledTotal, err = meter.Int64Counter(MetricOrdersCanceledTotal, metric.WithDescription("Cancel requests executed at the broker"))
	if err != nil {
		return err
	}

	m.PublishesTotal, err = meter.Int64Counter(MetricPublishesTotal, metric.WithDescription("Messages published to the internal exchange"))
	if err != nil {
		return err
	}

	m.ReconcileCyclesTotal, err = meter.Int64Counter(MetricReconcileCyclesTotal, metric.WithDescription("Completed reconciliation cycles"))
	if err != nil {
		return err
	}

	m.ReconcileMismatches, err = meter.Int64Counter(MetricReconcileMismatches, metric.WithDescription("Cache values overwritten because they differed from broker state"))
	if err != nil {
		return err
	}

	// Observables
	m.BlockCounter, err = meter.Int64ObservableGauge(MetricBlockCounter, metric.WithDescription("Current consecutive failed-drain count during trading hours"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.blockCounter, metric.WithAttributes(attribute.String("service", m.service)))
			return nil
		}))
	if err != nil {
		return err
	}

	m.OrdersAlive, err = meter.Int64ObservableGauge(MetricOrdersAlive, metric.WithDescription("Orders currently ALIVE at the broker"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.ordersAlive, metric.WithAttributes(attribute.String("service", m.service)))
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// Helpers to update observable state

func (m *MetricsHolder) SetService(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.service = name
}

func (m *MetricsHolder) SetBlockCounter(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockCounter = count
}

func (m *MetricsHolder) SetOrdersAlive(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ordersAlive = count
}

func (m *MetricsHolder) GetBlockCounter() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.blockCounter
}
