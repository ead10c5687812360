package reconnect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"gatelink/internal/domain"
)

// ErrExhausted is returned (wrapped) when a retry sequence gives up.
var ErrExhausted = errors.New("reconnect: gave up")

// Target is the connection the Supervisor drives.
type Target interface {
	// Attempt makes one connection attempt. It must return promptly once ctx
	// is done and must not leave the connection marked connected if ctx was
	// cancelled before it finished.
	Attempt(ctx context.Context) error

	// Transition moves the connection to state unless ctx is already done.
	Transition(ctx context.Context, state domain.ConnectionState)
}

// Hooks are optional callbacks fired from the retry goroutine.
type Hooks struct {
	OnAttempt     func(attempt int, delay time.Duration)
	OnReconnected func()
	OnGiveUp      func(err error)
}

// Supervisor runs retry sequences against a Target.
type Supervisor struct {
	policy Policy
	target Target
	hooks  Hooks
	logger *slog.Logger

	slot *semaphore.Weighted
	wg   sync.WaitGroup

	mu      sync.Mutex
	cancel  context.CancelFunc
	attempt atomic.Int32
}

// NewSupervisor returns a Supervisor for target.
func NewSupervisor(policy Policy, target Target, hooks Hooks, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		policy: policy,
		target: target,
		hooks:  hooks,
		logger: logger,
		slot:   semaphore.NewWeighted(1),
	}
}

// Attempt returns the 1-indexed attempt in progress, or 0 when idle.
func (s *Supervisor) Attempt() int { return int(s.attempt.Load()) }

// Running reports whether a retry sequence is active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Trigger starts a retry sequence for cause. It returns false without doing
// anything when a live sequence is already running. A sequence that was
// cancelled but has not yet returned does not block a new one: the new
// sequence waits for the slot and then runs.
func (s *Supervisor) Trigger(cause error) bool {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		s.logger.Debug("reconnect already in progress", "cause", cause)
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.finish(ctx, cancel)
		if err := s.slot.Acquire(ctx, 1); err != nil {
			return
		}
		defer s.slot.Release(1)
		s.run(ctx, cause)
	}()
	return true
}

// Cancel stops the running sequence, if any, and resets the attempt counter.
// The cancelled sequence makes no further state transitions.
func (s *Supervisor) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.attempt.Store(0)
}

// Wait blocks until no sequence is running.
func (s *Supervisor) Wait() { s.wg.Wait() }

func (s *Supervisor) finish(ctx context.Context, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() == nil {
		s.cancel = nil
	}
	cancel()
}

func (s *Supervisor) setAttempt(ctx context.Context, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() == nil {
		s.attempt.Store(int32(n))
	}
}

func (s *Supervisor) run(ctx context.Context, cause error) {
	s.logger.Warn("connection lost, reconnecting", "error", cause)
	s.target.Transition(ctx, domain.StateReconnecting)

	last := cause
	for n := 1; n <= s.policy.MaxAttempts; n++ {
		if ctx.Err() != nil {
			return
		}
		s.setAttempt(ctx, n)

		delay := s.policy.Delay(n, nil)
		s.logger.Info("scheduling reconnect attempt",
			"attempt", n, "max_attempts", s.policy.MaxAttempts, "delay", delay)
		if s.hooks.OnAttempt != nil {
			s.hooks.OnAttempt(n, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.policy.AttemptTimeout)
		err := s.target.Attempt(attemptCtx)
		cancel()

		if ctx.Err() != nil {
			return
		}
		if err == nil {
			s.setAttempt(ctx, 0)
			s.logger.Info("reconnected", "attempt", n)
			if s.hooks.OnReconnected != nil {
				s.hooks.OnReconnected()
			}
			return
		}

		last = err
		s.logger.Warn("reconnect attempt failed", "attempt", n, "error", err)
		s.target.Transition(ctx, domain.StateReconnecting)
	}

	s.setAttempt(ctx, 0)
	err := fmt.Errorf("%w after %d attempts: %w", ErrExhausted, s.policy.MaxAttempts, last)
	s.logger.Error("giving up on reconnect", "error", err)
	s.target.Transition(ctx, domain.StateDisconnected)
	if ctx.Err() == nil && s.hooks.OnGiveUp != nil {
		s.hooks.OnGiveUp(err)
	}
}
