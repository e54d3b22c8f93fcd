package account

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/doorman/pkg/observability"
)

// SessionCookieName is the cookie carrying the application session ID
const SessionCookieName = "doorman_session"

// DefaultSessionLifetime is how long an established session stays valid
const DefaultSessionLifetime = 24 * time.Hour

const sessionCacheSize = 4096
const sessionCacheTTL = time.Minute

// SessionManager finalizes logins into application sessions and resolves
// session cookies back to accounts. Reads go through a small expirable LRU
// so steady-state traffic does not hit the database on every request.
type SessionManager struct {
	db       *sql.DB
	lifetime time.Duration
	cache    *lru.LRU[string, *Session]
	metrics  *observability.Metrics
}

// SetMetrics attaches gateway metrics for cache observability
func (sm *SessionManager) SetMetrics(m *observability.Metrics) {
	sm.metrics = m
}

// NewSessionManager creates a new session manager
func NewSessionManager(db *sql.DB, lifetime time.Duration) *SessionManager {
	if lifetime <= 0 {
		lifetime = DefaultSessionLifetime
	}
	return &SessionManager{
		db:       db,
		lifetime: lifetime,
		cache:    lru.NewLRU[string, *Session](sessionCacheSize, nil, sessionCacheTTL),
	}
}

// Finalize establishes an authenticated session for the account and returns it
func (sm *SessionManager) Finalize(ctx context.Context, acct *Account) (*Session, error) {
	now := time.Now()
	session := &Session{
		ID:        uuid.New().String(),
		AccountID: acct.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.lifetime),
	}

	_, err := sm.db.ExecContext(ctx, `
		INSERT INTO sessions (id, account_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`, session.ID, session.AccountID, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		UPDATE accounts SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1
	`, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}

	sm.cache.Add(session.ID, session)
	return session, nil
}

// Get resolves a session ID to an unexpired session or ErrNotFound
func (sm *SessionManager) Get(ctx context.Context, sessionID string) (*Session, error) {
	if session, ok := sm.cache.Get(sessionID); ok {
		if session.Expired(time.Now()) {
			sm.cache.Remove(sessionID)
			return nil, ErrNotFound
		}
		if sm.metrics != nil {
			sm.metrics.SessionCacheHitsTotal.Inc()
		}
		return session, nil
	}

	session := &Session{}
	err := sm.db.QueryRowContext(ctx, `
		SELECT id, account_id, created_at, expires_at
		FROM sessions
		WHERE id = $1 AND expires_at > NOW()
	`, sessionID).Scan(&session.ID, &session.AccountID, &session.CreatedAt, &session.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	sm.cache.Add(session.ID, session)
	return session, nil
}

// Delete removes a session
func (sm *SessionManager) Delete(ctx context.Context, sessionID string) error {
	sm.cache.Remove(sessionID)
	_, err := sm.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CleanupExpired removes expired sessions and returns how many were deleted
func (sm *SessionManager) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := sm.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	return result.RowsAffected()
}

// CountActive returns the number of unexpired sessions
func (sm *SessionManager) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := sm.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE expires_at > NOW()`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}
