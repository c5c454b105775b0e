package poller

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualScheduler records scheduled callbacks and fires them on demand,
// making the poll timeline fully deterministic.
type manualScheduler struct {
	pending []*scheduledCall
}

type scheduledCall struct {
	delay     time.Duration
	fn        func()
	cancelled bool
}

func (m *manualScheduler) ScheduleOnce(delay time.Duration, fn func()) CancelFunc {
	call := &scheduledCall{delay: delay, fn: fn}
	m.pending = append(m.pending, call)
	return func() { call.cancelled = true }
}

// fireNext runs the oldest pending non-cancelled callback and returns its
// scheduled delay.
func (m *manualScheduler) fireNext(t *testing.T) time.Duration {
	t.Helper()
	for len(m.pending) > 0 {
		call := m.pending[0]
		m.pending = m.pending[1:]
		if call.cancelled {
			continue
		}
		call.fn()
		return call.delay
	}
	t.Fatal("no pending scheduled call")
	return 0
}

func (m *manualScheduler) pendingCount() int {
	n := 0
	for _, call := range m.pending {
		if !call.cancelled {
			n++
		}
	}
	return n
}

func newTestPoller(callback func() error, scheduler *manualScheduler, opts ...Option) *Poller {
	base := []Option{
		WithInterval(time.Minute),
		WithJitter(0),
		WithScheduler(scheduler),
	}
	return New(callback, append(base, opts...)...)
}

func TestPoller_ImmediateFirstPoll(t *testing.T) {
	scheduler := &manualScheduler{}
	calls := 0
	p := newTestPoller(func() error {
		calls++
		return nil
	}, scheduler)

	p.Start()

	// The first poll runs synchronously inside Start.
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, scheduler.pendingCount())
}

func TestPoller_SteadyStateInterval(t *testing.T) {
	scheduler := &manualScheduler{}
	p := newTestPoller(func() error { return nil }, scheduler)

	p.Start()
	delay := scheduler.fireNext(t)
	assert.Equal(t, time.Minute, delay)

	// Exactly one pending schedule at any time.
	assert.Equal(t, 1, scheduler.pendingCount())
}

func TestPoller_JitterBounds(t *testing.T) {
	scheduler := &manualScheduler{}
	p := New(func() error { return nil },
		WithInterval(time.Minute),
		WithJitter(6*time.Second),
		WithScheduler(scheduler),
		WithRandSource(rand.NewSource(1)),
	)

	p.Start()
	for i := 0; i < 20; i++ {
		delay := scheduler.fireNext(t)
		assert.GreaterOrEqual(t, delay, time.Minute)
		assert.LessOrEqual(t, delay, time.Minute+6*time.Second)
	}
}

func TestPoller_BackoffOnFailure(t *testing.T) {
	scheduler := &manualScheduler{}
	fail := true
	p := newTestPoller(func() error {
		if fail {
			return errors.New("boom")
		}
		return nil
	}, scheduler)

	p.Start()
	assert.Equal(t, 1, p.FailedAttempts())

	// interval × 2^1 after one failure, doubling each consecutive failure.
	assert.Equal(t, 2*time.Minute, scheduler.fireNext(t))
	assert.Equal(t, 2, p.FailedAttempts())
	assert.Equal(t, 4*time.Minute, scheduler.fireNext(t))
	assert.Equal(t, 3, p.FailedAttempts())

	// A success resets the failure count and the cadence.
	fail = false
	assert.Equal(t, 8*time.Minute, scheduler.fireNext(t))
	assert.Equal(t, 0, p.FailedAttempts())
	assert.Equal(t, time.Minute, scheduler.fireNext(t))
}

func TestPoller_FailStopAtCeiling(t *testing.T) {
	scheduler := &manualScheduler{}
	calls := 0
	p := newTestPoller(func() error {
		calls++
		return errors.New("boom")
	}, scheduler, WithMaxFailedPolls(3))

	p.Start()
	scheduler.fireNext(t)
	scheduler.fireNext(t)

	// Third consecutive failure reaches the ceiling: nothing is scheduled.
	assert.Equal(t, 3, calls)
	assert.Equal(t, 0, scheduler.pendingCount())
	assert.Equal(t, 3, p.FailedAttempts())
}

func TestPoller_DefaultCeiling(t *testing.T) {
	scheduler := &manualScheduler{}
	calls := 0
	p := newTestPoller(func() error {
		calls++
		return errors.New("boom")
	}, scheduler)

	p.Start()
	for scheduler.pendingCount() > 0 {
		scheduler.fireNext(t)
	}

	assert.Equal(t, DefaultMaxFailedPolls, calls)
}

func TestPoller_StopCancelsPending(t *testing.T) {
	scheduler := &manualScheduler{}
	calls := 0
	p := newTestPoller(func() error {
		calls++
		return nil
	}, scheduler)

	p.Start()
	require.Equal(t, 1, scheduler.pendingCount())

	p.Stop()
	assert.Equal(t, 0, scheduler.pendingCount())
	assert.Equal(t, 1, calls)

	// Idempotent.
	p.Stop()
}

func TestPoller_StopDuringCallback(t *testing.T) {
	scheduler := &manualScheduler{}
	var p *Poller
	p = newTestPoller(func() error {
		// Simulates Stop racing an in-flight poll: the result of this
		// callback must not schedule anything.
		p.Stop()
		return nil
	}, scheduler)

	p.Start()
	assert.Equal(t, 0, scheduler.pendingCount())
}

func TestPoller_RestartResetsState(t *testing.T) {
	scheduler := &manualScheduler{}
	fail := true
	p := newTestPoller(func() error {
		if fail {
			return errors.New("boom")
		}
		return nil
	}, scheduler)

	p.Start()
	require.Equal(t, 1, p.FailedAttempts())
	p.Stop()

	fail = false
	p.Start()
	assert.Equal(t, 0, p.FailedAttempts())
	assert.Equal(t, 1, scheduler.pendingCount())
}

func TestDefaultJitter(t *testing.T) {
	assert.Equal(t, 30*time.Second, DefaultJitter(5*time.Minute))
}
