package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// MinInterval is the floor for the polling period. Anything faster
// burns SMS quota without the trackers being able to keep up.
const MinInterval = 5 * time.Second

// stopWait bounds how long Stop blocks for the loop to observe
// cancellation. An in-flight send is never aborted, only awaited.
const stopWait = 2 * time.Second

// Scheduler drives the periodic location-request loop. The tick
// function returns true to halt the scheduler from within (a
// fatal-to-fleet gateway failure); restart requires an explicit Start.
type Scheduler struct {
	tickFn func(context.Context) bool

	running atomic.Bool

	mu       sync.Mutex
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(interval time.Duration, tickFn func(context.Context) bool) (*Scheduler, error) {
	if interval < MinInterval {
		return nil, fmt.Errorf("interval must be at least %s", MinInterval)
	}
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	return &Scheduler{
		interval: interval,
		tickFn:   tickFn,
		done:     make(chan struct{}),
	}, nil
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go s.loop(ctx, s.done)

	return true
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		// Only the current generation may clear the flag: a loop that
		// outlived a timed-out Stop must not clobber a later run.
		if s.done == done {
			s.running.Store(false)
		}
		s.mu.Unlock()
		close(done)
	}()

	slog.Info("scheduler started", "interval", s.Interval().String())

	if s.safeTick(ctx) {
		slog.Warn("scheduler halted by tick")
		return
	}

	for {
		// A fresh timer each round so SetInterval takes effect on the
		// next iteration and Stop interrupts the wait immediately.
		timer := time.NewTimer(s.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("scheduler stopping")
			return
		case <-timer.C:
			if s.safeTick(ctx) {
				slog.Warn("scheduler halted by tick")
				return
			}
		}
	}
}

func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		return false
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		slog.Info("scheduler stopped")
	case <-time.After(stopWait):
		// The tick is still draining an in-flight send. The loop owns
		// the running flag and clears it when it exits; until then the
		// scheduler reports running and refuses a restart, so two loops
		// can never coexist.
		slog.Warn("scheduler stop timed out waiting for tick to drain")
	}
	return true
}

// Halt cancels the loop without waiting for it to exit. Safe to call
// from inside a tick; used when a gateway signals quota exhaustion.
func (s *Scheduler) Halt() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the polling period, effective from the next
// iteration. Values below MinInterval are rejected and leave the
// current period untouched.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d < MinInterval {
		return fmt.Errorf("interval must be at least %s", MinInterval)
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) safeTick(ctx context.Context) (halt bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler tick panic recovered", "panic", r)
			halt = false
		}
	}()

	start := time.Now()
	halt = s.tickFn(ctx)
	slog.Info("scheduler tick completed", "duration_ms", time.Since(start).Milliseconds())
	return halt
}
