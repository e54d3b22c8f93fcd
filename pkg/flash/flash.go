// Package flash carries one-shot user-facing notices across a redirect in a
// short-lived cookie. The next page render pops the cookie and shows the
// queued messages.
package flash

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

// CookieName is the cookie carrying queued notices
const CookieName = "doorman_flash"

// Severity of a notice
type Severity string

const (
	SeverityStatus Severity = "status"
	SeverityError  Severity = "error"
)

// Notice is a single user-facing message
type Notice struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Queue accumulates notices for the current response
type Queue struct {
	basePath string
	notices  []Notice
}

// NewQueue creates a notice queue scoped to the deployment base path
func NewQueue(basePath string) *Queue {
	if basePath == "" {
		basePath = "/"
	}
	return &Queue{basePath: basePath}
}

// AddError queues an error-severity notice
func (q *Queue) AddError(message string) {
	q.notices = append(q.notices, Notice{Severity: SeverityError, Message: message})
}

// AddStatus queues a status-severity notice
func (q *Queue) AddStatus(message string) {
	q.notices = append(q.notices, Notice{Severity: SeverityStatus, Message: message})
}

// Notices returns the queued notices
func (q *Queue) Notices() []Notice {
	return q.notices
}

// Cookie serializes the queue into its carrier cookie, or nil when empty
func (q *Queue) Cookie() *http.Cookie {
	if len(q.notices) == 0 {
		return nil
	}

	payload, err := json.Marshal(q.notices)
	if err != nil {
		return nil
	}

	return &http.Cookie{
		Name:     CookieName,
		Value:    base64.URLEncoding.EncodeToString(payload),
		Path:     q.basePath,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Pop reads queued notices from the request and returns a cookie that clears
// the carrier. Malformed payloads are dropped silently.
func Pop(r *http.Request, basePath string) ([]Notice, *http.Cookie) {
	if basePath == "" {
		basePath = "/"
	}
	clear := &http.Cookie{
		Name:   CookieName,
		Value:  "",
		Path:   basePath,
		MaxAge: -1,
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, clear
	}

	payload, err := base64.URLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil, clear
	}

	var notices []Notice
	if err := json.Unmarshal(payload, &notices); err != nil {
		return nil, clear
	}

	return notices, clear
}
