// Package handler implements the persistence sinks on the internal exchange:
// order updates into the relational store, position and account snapshots
// into the cache. Handlers own no broker session; they run a single consume
// loop.
package handler

import (
	"context"
	"errors"

	"tqbridge/internal/bus"
	"tqbridge/internal/core"
	apperrors "tqbridge/pkg/errors"
)

// MessageHandler processes one decoded message body.
type MessageHandler interface {
	Handle(ctx context.Context, body []byte) error
}

// Runner binds a consumer to a message handler and applies the shared
// acknowledgement policy: malformed messages are dropped, transient sink
// failures are requeued.
type Runner struct {
	consumer *bus.Consumer
	handler  MessageHandler
	logger   core.ILogger
}

// NewRunner builds the consume loop for one handler service.
func NewRunner(consumer *bus.Consumer, h MessageHandler, logger core.ILogger) *Runner {
	return &Runner{consumer: consumer, handler: h, logger: logger}
}

// Run consumes until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	return r.consumer.Run(ctx, func(d bus.Delivery) {
		r.settle(d, r.handler.Handle(ctx, d.Body))
	})
}

func (r *Runner) settle(d bus.Delivery, err error) {
	switch {
	case err == nil:
		if ackErr := d.Ack(); ackErr != nil {
			r.logger.Error("ack failed", "error", ackErr)
		}
	case errors.Is(err, apperrors.ErrDecodeFailure):
		r.logger.Error("dropping malformed message", "error", err)
		if nackErr := d.Nack(false); nackErr != nil {
			r.logger.Error("nack failed", "error", nackErr)
		}
	default:
		r.logger.Warn("requeueing message after sink failure", "error", err)
		if nackErr := d.Nack(true); nackErr != nil {
			r.logger.Error("nack failed", "error", nackErr)
		}
	}
}
