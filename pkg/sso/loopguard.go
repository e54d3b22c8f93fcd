package sso

import (
	"net/http"
	"time"
)

// Control cookie names. Both are scoped to the deployment base path.
const (
	// RunningCookieName marks a redirect into the login endpoint in flight
	RunningCookieName = "sso_login_running"
	// StopCookieName marks automated SSO as attempted-and-failed for this
	// browser session
	StopCookieName = "sso_stop"
)

// GuardDecision is the loop guard's verdict for a request
type GuardDecision int

const (
	// Proceed means neither control cookie is present
	Proceed GuardDecision = iota
	// AbortLoopDetected means the running cookie is present: terminate the
	// request with no output to break the redirect cycle
	AbortLoopDetected
	// AbortPreviouslyStopped means the stop cookie is present: skip SSO and
	// continue to normal page rendering
	AbortPreviouslyStopped
)

func (d GuardDecision) String() string {
	switch d {
	case AbortLoopDetected:
		return "abort_loop_detected"
	case AbortPreviouslyStopped:
		return "abort_previously_stopped"
	default:
		return "proceed"
	}
}

// LoopGuard manages the two control cookies that prevent infinite redirect
// loops and repeated failed-auth attempts
type LoopGuard struct {
	basePath string
	now      func() time.Time
}

// NewLoopGuard creates a loop guard scoped to the deployment base path
func NewLoopGuard(basePath string) *LoopGuard {
	if basePath == "" {
		basePath = "/"
	}
	return &LoopGuard{basePath: basePath, now: time.Now}
}

// Decide inspects the request's control cookies. The running cookie wins
// over the stop cookie.
func (g *LoopGuard) Decide(r *http.Request) GuardDecision {
	if _, err := r.Cookie(RunningCookieName); err == nil {
		return AbortLoopDetected
	}
	if _, err := r.Cookie(StopCookieName); err == nil {
		return AbortPreviouslyStopped
	}
	return Proceed
}

// MarkRunning returns the cookie set while redirecting into the login
// endpoint. Persistent until explicitly cleared.
func (g *LoopGuard) MarkRunning() *http.Cookie {
	return &http.Cookie{
		Name:     RunningCookieName,
		Value:    "true",
		Path:     g.basePath,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearRunning returns an immediately-expiring cookie that removes the
// running marker. The login endpoint attaches it unconditionally.
func (g *LoopGuard) ClearRunning() *http.Cookie {
	return &http.Cookie{
		Name:     RunningCookieName,
		Value:    "",
		Path:     g.basePath,
		Expires:  g.now().Add(-time.Hour),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// MarkStopped returns the cookie set after a login attempt concludes without
// a usable session. With expireImmediately it is a one-shot near-past-expiry
// cookie, otherwise it lasts for the browser session.
func (g *LoopGuard) MarkStopped(expireImmediately bool) *http.Cookie {
	cookie := &http.Cookie{
		Name:     StopCookieName,
		Value:    "sso_stop",
		Path:     g.basePath,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if expireImmediately {
		cookie.Expires = g.now().Add(-time.Hour)
	}
	return cookie
}
