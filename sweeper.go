package account

import (
	"context"
	"sync"
	"time"
)

// TokenSweeper periodically deletes session token rows whose last_used_at
// fell behind the TTL. It is a singleton background task owned by the host
// process: started once at initialization, stopped at shutdown. Per-sweep
// store errors are logged and retried on the next tick; cleanup is
// eventually consistent, never fatal.
type TokenSweeper struct {
	tokens   Tokens
	interval time.Duration
	ttl      time.Duration
	logger   Logger
	nowFn    func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// TokenSweeperOption configures a TokenSweeper.
type TokenSweeperOption func(*TokenSweeper)

// WithSweepInterval overrides the tick interval.
func WithSweepInterval(interval time.Duration) TokenSweeperOption {
	return func(s *TokenSweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithSweepTTL overrides the expiry cutoff. It should match the TTL of the
// TokenManager sharing the store.
func WithSweepTTL(ttl time.Duration) TokenSweeperOption {
	return func(s *TokenSweeper) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSweeperLogger overrides the logger.
func WithSweeperLogger(logger Logger) TokenSweeperOption {
	return func(s *TokenSweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSweeperNow overrides the clock. Tests use this to move time.
func WithSweeperNow(nowFn func() time.Time) TokenSweeperOption {
	return func(s *TokenSweeper) {
		if nowFn != nil {
			s.nowFn = nowFn
		}
	}
}

// NewTokenSweeper creates a sweeper with a 1h interval and 7 day TTL.
func NewTokenSweeper(tokens Tokens, opts ...TokenSweeperOption) *TokenSweeper {
	s := &TokenSweeper{
		tokens:   tokens,
		interval: DefaultSweepInterval,
		ttl:      DefaultSessionTTL,
		logger:   defLogger{},
		nowFn:    time.Now,
		stopCh:   make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Start launches the background loop. Subsequent calls are no-ops.
func (s *TokenSweeper) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run()
	})
}

// Stop terminates the loop and waits for the in-flight sweep to finish.
func (s *TokenSweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *TokenSweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep removes every token row older than the TTL. Errors are swallowed
// after logging so a flaky store never kills the loop.
func (s *TokenSweeper) Sweep(ctx context.Context) {
	cutoff := s.nowFn().Add(-s.ttl)

	count, err := s.tokens.DeleteLastUsedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Warn("token sweep failed, retrying next interval: %v", err)
		return
	}

	if count > 0 {
		s.logger.Debug("token sweep removed %d expired sessions", count)
	}
}
