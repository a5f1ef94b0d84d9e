package bus

import (
	"context"
	"fmt"
	"time"

	"tqbridge/internal/core"
	"tqbridge/pkg/telemetry"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Delivery is one inbound message together with its acknowledgement
// controls. Ack and Nack may be called from a goroutine other than the
// consumer loop.
type Delivery struct {
	Body []byte
	Ack  func() error
	Nack func(requeue bool) error
}

// ConsumerOptions describes the queue topology one consumer declares.
type ConsumerOptions struct {
	URL            string
	Exchange       string
	ExchangeKind   string
	Queue          string
	RoutingKey     string
	ReconnectDelay time.Duration
}

// Consumer consumes one durable queue with prefetch 1 and manual
// acknowledgement, reconnecting with a fixed delay when the connection or
// channel drops.
type Consumer struct {
	opts   ConsumerOptions
	logger core.ILogger
}

// NewConsumer builds a consumer; nothing is connected until Run.
func NewConsumer(opts ConsumerOptions, logger core.ILogger) *Consumer {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = core.BusReconnectDelay
	}
	return &Consumer{
		opts:   opts,
		logger: logger.WithField("component", "bus_consumer").WithField("queue", opts.Queue),
	}
}

// Run consumes until ctx is cancelled, invoking fn for every message. fn is
// responsible for acking via the Delivery controls; unacked messages are
// redelivered by the bus after a reconnect.
func (c *Consumer) Run(ctx context.Context, fn func(Delivery)) error {
	for {
		if err := c.consumeOnce(ctx, fn); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("bus connection lost, reconnecting",
				"delay", c.opts.ReconnectDelay.String(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context, fn func(Delivery)) error {
	conn, err := amqp.Dial(c.opts.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := c.declareTopology(ch); err != nil {
		return err
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(c.opts.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", c.opts.Queue, err)
	}

	c.logger.Info("consuming", "exchange", c.opts.Exchange, "routing_key", c.opts.RoutingKey)

	metrics := telemetry.GetGlobalMetrics()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			metrics.MessagesConsumedTotal.Add(ctx, 1)
			tag := msg.DeliveryTag
			fn(Delivery{
				Body: msg.Body,
				Ack: func() error {
					metrics.MessagesAckedTotal.Add(ctx, 1)
					return ch.Ack(tag, false)
				},
				Nack: func(requeue bool) error {
					metrics.MessagesNackedTotal.Add(ctx, 1)
					return ch.Nack(tag, false, requeue)
				},
			})
		}
	}
}

func (c *Consumer) declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(c.opts.Exchange, c.opts.ExchangeKind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", c.opts.Exchange, err)
	}
	if _, err := ch.QueueDeclare(c.opts.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.opts.Queue, err)
	}
	if err := ch.QueueBind(c.opts.Queue, c.opts.RoutingKey, c.opts.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", c.opts.Queue, err)
	}
	return nil
}
