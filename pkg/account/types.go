// Package account owns local accounts and their application sessions.
//
// The SSO core consumes the Store and SessionManager contracts; it never
// reaches into the schema directly.
package account

import "time"

// Account represents a local application account
type Account struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Session represents an established application session
type Session struct {
	ID        string    `json:"id"`
	AccountID int64     `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session expiry has passed
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
