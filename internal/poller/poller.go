// Package poller drives periodic configuration refresh. It owns a single
// logical timer: there are never two pending scheduled polls, cancellation
// wins over any pending fire, and after enough consecutive failures the
// poller stops permanently rather than hammering a broken endpoint.
package poller

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultInterval between polls.
	DefaultInterval = 5 * time.Minute

	// DefaultMaxFailedPolls before the poller fail-stops.
	DefaultMaxFailedPolls = 7
)

// DefaultJitter derives the jitter bound from the poll interval.
func DefaultJitter(interval time.Duration) time.Duration {
	return interval / 10
}

// CancelFunc cancels a scheduled callback. Calling it after the callback
// fired is a no-op.
type CancelFunc func()

// Scheduler schedules a single deferred callback. The production
// implementation uses a timer; tests may substitute a manual scheduler to
// drive fires deterministically.
type Scheduler interface {
	ScheduleOnce(delay time.Duration, fn func()) CancelFunc
}

// TimerScheduler schedules on the runtime timer heap.
type TimerScheduler struct{}

// ScheduleOnce implements Scheduler.
func (TimerScheduler) ScheduleOnce(delay time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(delay, fn)
	return func() { t.Stop() }
}

// Poller invokes a refresh callback on a jittered interval, backing off
// exponentially on failure.
type Poller struct {
	callback    func() error
	interval    time.Duration
	jitter      time.Duration
	maxFailures int
	scheduler   Scheduler
	logger      logrus.FieldLogger
	rng         *rand.Rand

	mu             sync.Mutex
	cancel         CancelFunc
	failedAttempts int
	stopped        bool
}

// Option customizes a Poller.
type Option func(*Poller)

// WithInterval sets the base poll interval.
func WithInterval(interval time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithJitter sets the upper bound of the uniform jitter added to every
// scheduled poll.
func WithJitter(jitter time.Duration) Option {
	return func(p *Poller) {
		if jitter >= 0 {
			p.jitter = jitter
		}
	}
}

// WithMaxFailedPolls sets the consecutive-failure ceiling after which the
// poller stops permanently.
func WithMaxFailedPolls(max int) Option {
	return func(p *Poller) {
		if max > 0 {
			p.maxFailures = max
		}
	}
}

// WithScheduler swaps the timer implementation.
func WithScheduler(s Scheduler) Option {
	return func(p *Poller) {
		p.scheduler = s
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithRandSource seeds the jitter source. Tests pin it for determinism.
func WithRandSource(src rand.Source) Option {
	return func(p *Poller) {
		p.rng = rand.New(src)
	}
}

// New creates a poller around the refresh callback.
func New(callback func() error, opts ...Option) *Poller {
	p := &Poller{
		callback:    callback,
		interval:    DefaultInterval,
		maxFailures: DefaultMaxFailedPolls,
		scheduler:   TimerScheduler{},
		logger:      logrus.StandardLogger(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		jitter:      -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.jitter < 0 {
		p.jitter = DefaultJitter(p.interval)
	}
	return p
}

// Start invokes the refresh callback once immediately, then schedules
// recurring polls. A failure of the immediate invocation does not prevent
// the first timed poll. Starting cancels any previously pending schedule.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.stopped = false
	p.failedAttempts = 0
	p.mu.Unlock()

	p.poll()
}

// Stop cancels any pending scheduled poll. It is idempotent. An in-flight
// callback may complete but no further poll is scheduled afterwards.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopped = true
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// FailedAttempts returns the current consecutive-failure count.
func (p *Poller) FailedAttempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failedAttempts
}

func (p *Poller) poll() {
	err := p.callback()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}

	if err != nil {
		p.failedAttempts++
		if p.failedAttempts >= p.maxFailures {
			p.logger.WithError(err).WithField("failed_attempts", p.failedAttempts).
				Error("poll failure ceiling reached, polling stopped")
			p.stopped = true
			p.cancel = nil
			return
		}

		// Exponential backoff: interval × 2^failedAttempts.
		delay := p.interval*(1<<uint(p.failedAttempts)) + p.jitterDelay()
		p.logger.WithError(err).WithFields(logrus.Fields{
			"failed_attempts": p.failedAttempts,
			"next_poll_in":    delay,
		}).Warn("poll failed, backing off")
		p.cancel = p.scheduler.ScheduleOnce(delay, p.poll)
		return
	}

	p.failedAttempts = 0
	p.cancel = p.scheduler.ScheduleOnce(p.interval+p.jitterDelay(), p.poll)
}

// jitterDelay draws uniformly from [0, jitter]. Callers hold p.mu.
func (p *Poller) jitterDelay() time.Duration {
	if p.jitter <= 0 {
		return 0
	}
	return time.Duration(p.rng.Int63n(int64(p.jitter) + 1))
}
