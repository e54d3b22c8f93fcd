// Package middleware provides HTTP middleware shared across the gateway.
package middleware

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/doorman/pkg/account"
	"github.com/platinummonkey/doorman/pkg/contextkeys"
	"github.com/platinummonkey/doorman/pkg/observability"
)

// SessionMiddleware resolves the session cookie to an account and stores
// both on the request context. Requests without a valid session continue
// anonymously; the SSO interceptor downstream decides what happens to them.
type SessionMiddleware struct {
	sessions *account.SessionManager
	store    account.Store
}

// NewSessionMiddleware creates a new session-resolving middleware
func NewSessionMiddleware(sessions *account.SessionManager, store account.Store) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions, store: store}
}

// Handler wraps an HTTP handler with session resolution
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(account.SessionCookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := m.sessions.Get(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, account.ErrNotFound) {
				observability.FromContext(r.Context()).WithError(err).Warn("session lookup failed")
			}
			next.ServeHTTP(w, r)
			return
		}

		acct, err := m.store.LookupByID(r.Context(), sess.AccountID)
		if err != nil || !acct.IsActive {
			// A session for a deleted or deactivated account is treated
			// as anonymous.
			if err != nil && !errors.Is(err, account.ErrNotFound) {
				observability.FromContext(r.Context()).WithError(err).Warn("account lookup failed")
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := contextkeys.WithSession(r.Context(), sess)
		ctx = contextkeys.WithAccount(ctx, acct)
		ctx = observability.WithAccountName(ctx, acct.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSession extracts the resolved session from a request, if any
func GetSession(r *http.Request) *account.Session {
	sess, _ := r.Context().Value(contextkeys.SessionKey).(*account.Session)
	return sess
}
