// Package monitor implements the snapshot-diff monitors: they own a broker
// session, project the live views into immutable snapshots after every
// successful drain, and publish change events to the internal exchange.
package monitor

import (
	"context"
	"time"

	"tqbridge/internal/core"
	"tqbridge/pkg/concurrency"
)

const publishTimeout = 5 * time.Second

// EventPublisher pushes events to the internal exchange from a single-worker
// pool so that publishing never blocks the drain cadence and event order is
// preserved.
type EventPublisher struct {
	pool   *concurrency.WorkerPool
	pub    core.IPublisher
	logger core.ILogger
}

// NewEventPublisher wraps a bus publisher in a FIFO publish pool.
func NewEventPublisher(pub core.IPublisher, logger core.ILogger) *EventPublisher {
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "event_publisher",
		MaxWorkers:  1,
		MaxCapacity: 1000,
	}, logger)
	return &EventPublisher{
		pool:   pool,
		pub:    pub,
		logger: logger.WithField("component", "event_publisher"),
	}
}

// PublishAsync enqueues one event for publication on the internal exchange.
func (p *EventPublisher) PublishAsync(routingKey string, body interface{}) {
	err := p.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.pub.Publish(ctx, core.InternalExchange, routingKey, body); err != nil {
			p.logger.Error("event publish failed", "routing_key", routingKey, "error", err)
		}
	})
	if err != nil {
		p.logger.Error("publish pool rejected event", "routing_key", routingKey, "error", err)
	}
}

// Stop drains the pool and waits for in-flight publishes.
func (p *EventPublisher) Stop() {
	p.pool.Stop()
}
