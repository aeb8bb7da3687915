package account

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

const (
	// DefaultSessionTTL is the sliding expiration window for session tokens.
	DefaultSessionTTL = 7 * 24 * time.Hour
	// DefaultSweepInterval is how often the sweeper removes stale rows.
	DefaultSweepInterval = time.Hour
)

// TokenManager owns the session token lifecycle: issue, verify with sliding
// refresh, revoke, and bulk revoke. Expired rows are left in place for the
// sweeper; verification treats them the same as missing rows.
type TokenManager struct {
	tokens   Tokens
	ttl      time.Duration
	logger   Logger
	activity ActivitySink
	nowFn    func() time.Time
}

// TokenManagerOption configures a TokenManager.
type TokenManagerOption func(*TokenManager)

// WithSessionTTL overrides the sliding expiration window.
func WithSessionTTL(ttl time.Duration) TokenManagerOption {
	return func(m *TokenManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithTokenManagerLogger overrides the logger.
func WithTokenManagerLogger(logger Logger) TokenManagerOption {
	return func(m *TokenManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTokenManagerActivitySink sets the sink used to emit revocation events.
func WithTokenManagerActivitySink(sink ActivitySink) TokenManagerOption {
	return func(m *TokenManager) {
		m.activity = normalizeActivitySink(sink)
	}
}

// WithTokenManagerNow overrides the clock. Tests use this to move time.
func WithTokenManagerNow(nowFn func() time.Time) TokenManagerOption {
	return func(m *TokenManager) {
		if nowFn != nil {
			m.nowFn = nowFn
		}
	}
}

// NewTokenManager creates a manager with a 7 day sliding TTL.
func NewTokenManager(tokens Tokens, opts ...TokenManagerOption) *TokenManager {
	m := &TokenManager{
		tokens:   tokens,
		ttl:      DefaultSessionTTL,
		logger:   defLogger{},
		activity: noopActivitySink{},
		nowFn:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// TTL returns the configured sliding expiration window.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue generates an opaque random token, persists the row with
// last_used_at = now, and returns the token string.
func (m *TokenManager) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", goerrors.New("cannot issue a token without a user", goerrors.CategoryBadInput)
	}

	token, err := NewSessionToken()
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate session token")
	}

	record := &Token{
		Token:      token,
		UserID:     userID,
		LastUsedAt: m.nowFn(),
	}

	if _, err := m.tokens.Create(ctx, record); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session token")
	}

	return token, nil
}

// Verify looks the row up by exact string match and refreshes last_used_at.
// A missing row and an expired row are indistinguishable to the caller: both
// fail closed with ErrAuthenticationFailed.
func (m *TokenManager) Verify(ctx context.Context, token string) (uuid.UUID, error) {
	record, err := m.tokens.GetByToken(ctx, token)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return uuid.Nil, ErrAuthenticationFailed
		}
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up session token")
	}

	now := m.nowFn()
	if record.ExpiredAt(now, m.ttl) {
		return uuid.Nil, ErrAuthenticationFailed
	}

	// Sliding refresh. A concurrent sweep may have deleted the row between
	// lookup and touch; the request still succeeds, bounded by one sweep
	// interval of staleness.
	if err := m.tokens.Touch(ctx, token, now); err != nil && !repository.IsRecordNotFound(err) {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to refresh session token")
	}

	return record.UserID, nil
}

// Revoke deletes the row for the given token. Idempotent: revoking an absent
// token is not an error.
func (m *TokenManager) Revoke(ctx context.Context, token string) error {
	if err := m.tokens.DeleteByToken(ctx, token); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke session token")
	}
	return nil
}

// RevokeAll deletes every session token owned by userID. Used after account
// deletion and after a finalized password reset.
func (m *TokenManager) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	count, err := m.tokens.DeleteForUser(ctx, userID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke user sessions")
	}

	m.recordRevocation(ctx, userID, count)

	return nil
}

func (m *TokenManager) recordRevocation(ctx context.Context, userID uuid.UUID, count int) {
	event := ActivityEvent{
		EventType: ActivityEventSessionsRevoked,
		Actor: ActorRef{
			ID:   userID.String(),
			Type: "user",
		},
		UserID: userID.String(),
		Metadata: map[string]any{
			"revoked_count": count,
		},
		OccurredAt: m.nowFn(),
	}

	if err := normalizeActivitySink(m.activity).Record(ctx, event); err != nil {
		m.logger.Warn("activity sink error during session revocation: %v", err)
	}
}
