package sso

import (
	"net/http"
	"net/url"

	"github.com/platinummonkey/doorman/pkg/contextkeys"
	"github.com/platinummonkey/doorman/pkg/observability"
)

// Decision is the interceptor's terminal state for a request
type Decision int

const (
	// DecisionSkip covers authenticated callers, disabled SSO and excluded
	// paths/hosts: continue to normal routing
	DecisionSkip Decision = iota
	// DecisionLoopAbort terminates the request with no output
	DecisionLoopAbort
	// DecisionStoppedFallthrough continues to normal routing because a
	// previous SSO attempt was stopped
	DecisionStoppedFallthrough
	// DecisionRedirect answers the request with a 302 into the login endpoint
	DecisionRedirect
)

func (d Decision) String() string {
	switch d {
	case DecisionLoopAbort:
		return "loop_abort"
	case DecisionStoppedFallthrough:
		return "stopped_fallthrough"
	case DecisionRedirect:
		return "redirect"
	default:
		return "skip"
	}
}

// Interceptor is the request-boot hook that decides, before normal routing,
// whether automated SSO fires for a request
type Interceptor struct {
	settings  *SettingsStore
	guard     *LoopGuard
	basePath  string
	frontPage string
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewInterceptor creates the SSO interceptor
func NewInterceptor(settings *SettingsStore, guard *LoopGuard, basePath, frontPage string, logger *observability.Logger, metrics *observability.Metrics) *Interceptor {
	return &Interceptor{
		settings:  settings,
		guard:     guard,
		basePath:  basePath,
		frontPage: frontPage,
		logger:    logger,
		metrics:   metrics,
	}
}

// Decide evaluates the intercept state machine for one request.
// authenticated reports whether the caller already holds a session.
func (i *Interceptor) Decide(r *http.Request, authenticated bool) Decision {
	log := observability.FromContext(r.Context())

	if authenticated {
		log.Debug("authenticated caller, no SSO")
		return DecisionSkip
	}

	settings := i.settings.Current(r.Context())
	if !settings.Enabled {
		log.Debug("automated SSO not active")
		return DecisionSkip
	}

	if ShouldExclude(r.URL.Path, requestHost(r), settings, i.frontPage, i.basePath) {
		log.Debug("excluded path or host")
		return DecisionSkip
	}

	switch i.guard.Decide(r) {
	case AbortLoopDetected:
		log.Debug("login-running cookie present, aborting")
		return DecisionLoopAbort
	case AbortPreviouslyStopped:
		log.Debug("stop cookie present, falling through to manual login")
		return DecisionStoppedFallthrough
	}

	return DecisionRedirect
}

// Middleware wraps the application router with the intercept decision. A
// loop abort writes no body and stops routing; a redirect captures the
// original destination and sets the running cookie.
func (i *Interceptor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authenticated := r.Context().Value(contextkeys.SessionKey) != nil
		decision := i.Decide(r, authenticated)

		if i.metrics != nil {
			i.metrics.InterceptDecisionsTotal.WithLabelValues(decision.String()).Inc()
		}

		switch decision {
		case DecisionLoopAbort:
			if i.metrics != nil {
				i.metrics.LoopAbortsTotal.Inc()
			}
			// Intentionally abrupt: no body, no redirect.
			return

		case DecisionRedirect:
			destination := r.URL.RequestURI()
			location := i.basePath + LoginPath + "?destination=" + url.QueryEscape(destination)
			http.SetCookie(w, i.guard.MarkRunning())
			http.Redirect(w, r, location, http.StatusFound)
			return

		default:
			next.ServeHTTP(w, r)
		}
	})
}

// requestHost returns the request hostname without any port
func requestHost(r *http.Request) string {
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	if colon := lastColon(host); colon >= 0 {
		return host[:colon]
	}
	return host
}

func lastColon(host string) int {
	for idx := len(host) - 1; idx >= 0; idx-- {
		if host[idx] == ':' {
			return idx
		}
		if host[idx] == ']' {
			// IPv6 literal without port
			return -1
		}
	}
	return -1
}
