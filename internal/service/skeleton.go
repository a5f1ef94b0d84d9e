// Package service implements the dual-loop skeleton every broker-session
// owning service embeds: an async bus loop feeding a bounded hand-off queue,
// a dedicated OS thread owning the thread-affine broker session, a heartbeat
// task, and the trading-hours liveness rule.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"tqbridge/internal/bus"
	"tqbridge/internal/core"
	"tqbridge/internal/tradinghours"
	apperrors "tqbridge/pkg/errors"
	"tqbridge/pkg/telemetry"

	"golang.org/x/sync/errgroup"
)

// Worker is the service-specific logic hosted by the skeleton. All methods
// run on the worker thread that owns the broker session.
type Worker interface {
	// InitWorker is called once with the freshly created session.
	InitWorker(session core.IBrokerSession) error
	// OnDrain runs after every steady-state drain with its success bit.
	OnDrain(ok bool)
	// ProcessMessage handles one hand-off item; the return value decides
	// the deferred acknowledgement (true = ack, false = nack no-requeue).
	ProcessMessage(body []byte) bool
	// CleanupWorker runs before the session is closed.
	CleanupWorker()
}

// Options wires one skeleton instance.
type Options struct {
	ServiceName string

	// Bus consumption; an empty QueueName runs the worker loop without a
	// consumer (pure monitor services).
	BusURL       string
	ExchangeName string
	ExchangeKind string
	QueueName    string
	RoutingKey   string
	// DeferredAck hands the acknowledgement decision to ProcessMessage
	// (submitter/canceller). Without it, messages are acked on hand-off.
	DeferredAck bool

	BlockTimeout    time.Duration
	BlockCounterMax int
	QueueCapacity   int
	ReconnectDelay  time.Duration
}

func (o *Options) withDefaults() {
	if o.BlockTimeout <= 0 {
		o.BlockTimeout = core.DefaultBlockTimeout
	}
	if o.BlockCounterMax <= 0 {
		o.BlockCounterMax = core.DefaultBlockCounterMax
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = core.HandoffQueueCapacity
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = core.BusReconnectDelay
	}
}

// handoff is one queued message together with its deferred acknowledgement.
// done is nil when the message was already acked on hand-off.
type handoff struct {
	body []byte
	done func(ok bool)
}

// Skeleton binds the bus loop, the worker loop and the heartbeat together.
type Skeleton struct {
	opts     Options
	factory  core.SessionFactory
	worker   Worker
	calendar *tradinghours.Calendar
	logger   core.ILogger
	queue    chan handoff

	// now is the clock, swappable in tests.
	now func() time.Time
}

// New builds a skeleton around a worker and a session factory.
func New(opts Options, factory core.SessionFactory, worker Worker, calendar *tradinghours.Calendar, logger core.ILogger) *Skeleton {
	opts.withDefaults()
	return &Skeleton{
		opts:     opts,
		factory:  factory,
		worker:   worker,
		calendar: calendar,
		logger:   logger.WithField("service", opts.ServiceName),
		queue:    make(chan handoff, opts.QueueCapacity),
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled or the worker hits a fatal condition.
// A liveness violation returns apperrors.ErrLivenessViolation; supervisors
// restart the process.
func (s *Skeleton) Run(ctx context.Context) error {
	telemetry.GetGlobalMetrics().SetService(s.opts.ServiceName)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	workerDone := make(chan struct{})

	g.Go(func() error {
		defer close(workerDone)
		defer cancel()
		return s.workerLoop(gctx)
	})

	if s.opts.QueueName != "" {
		consumer := bus.NewConsumer(bus.ConsumerOptions{
			URL:            s.opts.BusURL,
			Exchange:       s.opts.ExchangeName,
			ExchangeKind:   s.opts.ExchangeKind,
			Queue:          s.opts.QueueName,
			RoutingKey:     s.opts.RoutingKey,
			ReconnectDelay: s.opts.ReconnectDelay,
		}, s.logger)
		g.Go(func() error {
			return consumer.Run(gctx, s.onDelivery)
		})
	}

	g.Go(func() error {
		return s.heartbeat(gctx, workerDone)
	})

	return g.Wait()
}

// onDelivery runs on the bus loop for every inbound message. The payload
// must be a JSON object; hand-off is non-blocking with drop-on-full.
func (s *Skeleton) onDelivery(d bus.Delivery) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(d.Body, &probe); err != nil {
		s.logger.Error("message decode failed", "error", err)
		if nackErr := d.Nack(false); nackErr != nil {
			s.logger.Warn("nack failed", "error", nackErr)
		}
		return
	}

	item := handoff{body: d.Body}
	if s.opts.DeferredAck {
		item.done = func(ok bool) {
			var err error
			if ok {
				err = d.Ack()
			} else {
				err = d.Nack(false)
			}
			if err != nil {
				s.logger.Warn("deferred ack failed", "error", err)
			}
		}
	}

	select {
	case s.queue <- item:
		if !s.opts.DeferredAck {
			if err := d.Ack(); err != nil {
				s.logger.Warn("ack failed", "error", err)
			}
		}
	default:
		s.logger.Warn("hand-off queue full, dropping message",
			"capacity", s.opts.QueueCapacity, "error", apperrors.ErrQueueFull)
		if err := d.Nack(false); err != nil {
			s.logger.Warn("nack failed", "error", err)
		}
	}
}

// workerLoop owns the broker session for its whole lifetime. It is pinned to
// one OS thread because the session must be created and used from the thread
// that owns it.
func (s *Skeleton) workerLoop(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	session, err := s.factory()
	if err != nil {
		s.logger.Error("session create failed", "error", err)
		return fmt.Errorf("%w: %v", apperrors.ErrSessionCreateFailure, err)
	}
	defer func() {
		s.worker.CleanupWorker()
		if closeErr := session.Close(); closeErr != nil {
			s.logger.Warn("session close failed", "error", closeErr)
		}
	}()

	if err := s.worker.InitWorker(session); err != nil {
		return fmt.Errorf("worker init failed: %w", err)
	}

	metrics := telemetry.GetGlobalMetrics()
	blockCounter := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case item := <-s.queue:
			ok := s.worker.ProcessMessage(item.body)
			if item.done != nil {
				item.done(ok)
			}
			continue
		default:
		}

		now := s.now()
		ok := session.Drain(now.Add(s.opts.BlockTimeout))
		metrics.DrainsTotal.Add(ctx, 1)

		if ok {
			blockCounter = 0
		} else {
			metrics.DrainTimeoutsTotal.Add(ctx, 1)
			if s.calendar.InSession(now) {
				blockCounter++
				s.logger.Warn("drain timed out during trading hours",
					"block_counter", blockCounter, "max", s.opts.BlockCounterMax)
				if blockCounter >= s.opts.BlockCounterMax {
					metrics.SetBlockCounter(int64(blockCounter))
					s.logger.Fatal("broker session stalled, exiting for supervised restart",
						"block_counter", blockCounter)
					return apperrors.ErrLivenessViolation
				}
			}
		}
		metrics.SetBlockCounter(int64(blockCounter))

		s.worker.OnDrain(ok)
	}
}

// heartbeat logs once per second and trips shutdown if the worker died.
func (s *Skeleton) heartbeat(ctx context.Context, workerDone <-chan struct{}) error {
	ticker := time.NewTicker(core.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-workerDone:
			s.logger.Warn("worker loop exited, shutting down")
			return nil
		case <-ticker.C:
			s.logger.Debug("heartbeat", "service", s.opts.ServiceName)
		}
	}
}
