package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tqbridge/internal/bus"
	"tqbridge/internal/core"
	"tqbridge/internal/mock"
	"tqbridge/internal/tradinghours"
	apperrors "tqbridge/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWorker struct {
	mu        sync.Mutex
	processed [][]byte
	result    bool
	initErr   error
	cleaned   bool
}

func (w *stubWorker) InitWorker(core.IBrokerSession) error { return w.initErr }
func (w *stubWorker) OnDrain(bool)                         {}
func (w *stubWorker) CleanupWorker()                       { w.cleaned = true }

func (w *stubWorker) ProcessMessage(body []byte) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.processed = append(w.processed, body)
	return w.result
}

func (w *stubWorker) Processed() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.processed...)
}

func shanghaiCalendar(t *testing.T) *tradinghours.Calendar {
	t.Helper()
	cal, err := tradinghours.NewCalendar()
	require.NoError(t, err)
	return cal
}

func tradingTime(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	return time.Date(2026, 8, 24, 10, 0, 0, 0, loc)
}

func nightTime(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	return time.Date(2026, 8, 24, 20, 0, 0, 0, loc)
}

func newTestSkeleton(t *testing.T, session *mock.BrokerSession, worker Worker, logger *mock.Logger) *Skeleton {
	t.Helper()
	factory := func() (core.IBrokerSession, error) { return session, nil }
	s := New(Options{
		ServiceName:     "test_service",
		BlockTimeout:    time.Millisecond,
		BlockCounterMax: 3,
		QueueCapacity:   4,
	}, factory, worker, shanghaiCalendar(t), logger)
	return s
}

func TestLivenessTripsAfterThirdFailureDuringTradingHours(t *testing.T) {
	session := mock.NewBrokerSession()
	session.DrainDefault = false

	logger := mock.NewLogger()
	worker := &stubWorker{}
	s := newTestSkeleton(t, session, worker, logger)
	s.now = func() time.Time { return tradingTime(t) }

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrLivenessViolation))

	assert.Equal(t, 3, logger.CountLevel("WARN"))
	assert.Equal(t, 1, logger.CountLevel("FATAL"))
	assert.Equal(t, 3, session.DrainCount)
	assert.True(t, worker.cleaned)
	assert.True(t, session.Closed)
}

func TestFailedDrainsIgnoredOutsideTradingHours(t *testing.T) {
	session := mock.NewBrokerSession()
	session.DrainDefault = false

	logger := mock.NewLogger()
	s := newTestSkeleton(t, session, &stubWorker{}, logger)
	s.now = func() time.Time { return nightTime(t) }

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Let plenty of failed drains happen, then shut down.
		for session.DrainCount < 10 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, logger.CountLevel("FATAL"))
}

func TestSuccessfulDrainResetsCounter(t *testing.T) {
	session := mock.NewBrokerSession()
	// Two failures, one success, then two more failures: never trips.
	session.DrainResults = []bool{false, false, true, false, false}
	session.DrainDefault = true

	logger := mock.NewLogger()
	s := newTestSkeleton(t, session, &stubWorker{}, logger)
	s.now = func() time.Time { return tradingTime(t) }

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for session.DrainCount < 6 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, logger.CountLevel("WARN"))
	assert.Equal(t, 0, logger.CountLevel("FATAL"))
}

func TestSessionCreateFailureIsFatal(t *testing.T) {
	logger := mock.NewLogger()
	factory := func() (core.IBrokerSession, error) {
		return nil, errors.New("gateway unreachable")
	}
	s := New(Options{ServiceName: "test_service"}, factory, &stubWorker{}, shanghaiCalendar(t), logger)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrSessionCreateFailure))
}

func TestWorkerProcessesHandoffInFIFOOrder(t *testing.T) {
	session := mock.NewBrokerSession()
	logger := mock.NewLogger()
	worker := &stubWorker{result: true}
	s := newTestSkeleton(t, session, worker, logger)
	s.now = func() time.Time { return nightTime(t) }

	s.queue <- handoff{body: []byte(`{"n":1}`)}
	s.queue <- handoff{body: []byte(`{"n":2}`)}
	s.queue <- handoff{body: []byte(`{"n":3}`)}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for len(worker.Processed()) < 3 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	require.NoError(t, s.Run(ctx))
	processed := worker.Processed()
	require.Len(t, processed, 3)
	assert.Equal(t, `{"n":1}`, string(processed[0]))
	assert.Equal(t, `{"n":2}`, string(processed[1]))
	assert.Equal(t, `{"n":3}`, string(processed[2]))
}

type ackRecorder struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	requeue []bool
}

func (a *ackRecorder) delivery(body string) bus.Delivery {
	return bus.Delivery{
		Body: []byte(body),
		Ack: func() error {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.acks++
			return nil
		},
		Nack: func(requeue bool) error {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.nacks++
			a.requeue = append(a.requeue, requeue)
			return nil
		},
	}
}

func TestOnDeliveryAcksAfterHandoff(t *testing.T) {
	s := newTestSkeleton(t, mock.NewBrokerSession(), &stubWorker{}, mock.NewLogger())
	rec := &ackRecorder{}

	s.onDelivery(rec.delivery(`{"action":"SUBMIT"}`))

	assert.Equal(t, 1, rec.acks)
	assert.Equal(t, 0, rec.nacks)
	assert.Len(t, s.queue, 1)
}

func TestOnDeliveryNacksBadJSONWithoutRequeue(t *testing.T) {
	s := newTestSkeleton(t, mock.NewBrokerSession(), &stubWorker{}, mock.NewLogger())
	rec := &ackRecorder{}

	s.onDelivery(rec.delivery(`not json`))

	assert.Equal(t, 0, rec.acks)
	require.Equal(t, 1, rec.nacks)
	assert.False(t, rec.requeue[0])
	assert.Len(t, s.queue, 0)
}

func TestOnDeliveryDropsWhenQueueFull(t *testing.T) {
	s := newTestSkeleton(t, mock.NewBrokerSession(), &stubWorker{}, mock.NewLogger())
	rec := &ackRecorder{}

	for i := 0; i < 4; i++ {
		s.queue <- handoff{body: []byte(`{}`)}
	}
	s.onDelivery(rec.delivery(`{"action":"SUBMIT"}`))

	assert.Equal(t, 0, rec.acks)
	require.Equal(t, 1, rec.nacks)
	assert.False(t, rec.requeue[0])
}

func TestOnDeliveryDeferredAckFollowsProcessResult(t *testing.T) {
	s := newTestSkeleton(t, mock.NewBrokerSession(), &stubWorker{}, mock.NewLogger())
	s.opts.DeferredAck = true
	rec := &ackRecorder{}

	s.onDelivery(rec.delivery(`{"action":"SUBMIT"}`))
	require.Len(t, s.queue, 1)
	assert.Equal(t, 0, rec.acks)

	item := <-s.queue
	item.done(true)
	assert.Equal(t, 1, rec.acks)

	s.onDelivery(rec.delivery(`{"action":"SUBMIT"}`))
	item = <-s.queue
	item.done(false)
	require.Equal(t, 1, rec.nacks)
	assert.False(t, rec.requeue[0])
}
