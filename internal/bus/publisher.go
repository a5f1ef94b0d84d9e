// Package bus wraps the RabbitMQ client: a durable-topology publisher and a
// reconnecting prefetch-1 consumer. All message bodies are persistent JSON.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"tqbridge/internal/core"
	"tqbridge/pkg/telemetry"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes persistent JSON messages to one exchange. It redials
// lazily: a failed publish tears the connection down and the next call
// reconnects.
type Publisher struct {
	url          string
	exchange     string
	exchangeKind string
	logger       core.ILogger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher connects and declares the target exchange.
func NewPublisher(url, exchange, exchangeKind string, logger core.ILogger) (*Publisher, error) {
	p := &Publisher{
		url:          url,
		exchange:     exchange,
		exchangeKind: exchangeKind,
		logger:       logger.WithField("component", "bus_publisher").WithField("exchange", exchange),
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, p.exchangeKind, true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}
	p.conn = conn
	p.ch = ch
	return nil
}

func (p *Publisher) drop() {
	if p.conn != nil {
		p.conn.Close()
	}
	p.conn = nil
	p.ch = nil
}

// Publish marshals body to JSON and publishes it with delivery_mode
// persistent. One reconnect attempt is made on failure.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		if p.ch == nil {
			if err = p.connect(); err != nil {
				p.logger.Warn("publisher reconnect failed", "error", err)
				continue
			}
		}
		err = p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         payload,
		})
		if err == nil {
			telemetry.GetGlobalMetrics().PublishesTotal.Add(ctx, 1)
			return nil
		}
		p.logger.Warn("publish failed, reconnecting", "routing_key", routingKey, "error", err)
		p.drop()
	}
	return fmt.Errorf("failed to publish to %s/%s: %w", exchange, routingKey, err)
}

// Close tears down the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		p.ch = nil
		return err
	}
	return nil
}
