package sso

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/doorman/pkg/account"
	"github.com/platinummonkey/doorman/pkg/contextkeys"
	"github.com/platinummonkey/doorman/pkg/flash"
	"github.com/platinummonkey/doorman/pkg/httputil"
	"github.com/platinummonkey/doorman/pkg/observability"
)

// User-facing notices queued by the login endpoint.
const (
	noticeAccountNotFound  = "Sorry, a matching account was not found. You can log in with non-SSO credentials (if permitted) on the login form."
	noticeNotAuthenticated = "You were not authenticated by the server. You may log in with your credentials below."
	noticeLoginConfirmed   = "You have been successfully authenticated"
)

// Handlers serves the SSO login/logout endpoints and the settings admin API
type Handlers struct {
	settings  *SettingsStore
	boot      *Bootstrapper
	sessions  *account.SessionManager
	guard     *LoopGuard
	source    IdentitySource
	basePath  string
	frontPage string
	logger    *observability.Logger
	metrics   *observability.Metrics

	loginLimiter func(http.Handler) http.Handler
}

// NewHandlers creates the SSO handlers
func NewHandlers(settings *SettingsStore, boot *Bootstrapper, sessions *account.SessionManager, guard *LoopGuard, source IdentitySource, basePath, frontPage string, logger *observability.Logger, metrics *observability.Metrics) *Handlers {
	if source == nil {
		source = HeaderIdentitySource{}
	}
	if frontPage == "" {
		frontPage = "/"
	}
	return &Handlers{
		settings:  settings,
		boot:      boot,
		sessions:  sessions,
		guard:     guard,
		source:    source,
		basePath:  basePath,
		frontPage: frontPage,
		logger:    logger,
		metrics:   metrics,
	}
}

// SetLoginRateLimiter wraps the login endpoint with a rate limiter. Must be
// called before RegisterRoutes.
func (h *Handlers) SetLoginRateLimiter(limiter func(http.Handler) http.Handler) {
	h.loginLimiter = limiter
}

// RegisterRoutes registers the SSO routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	var login http.Handler = http.HandlerFunc(h.login)
	if h.loginLimiter != nil {
		login = h.loginLimiter(login)
	}
	router.Handle(LoginPath, login).Methods("GET")
	router.HandleFunc(LogoutPath, h.logout).Methods("GET", "POST")

	router.HandleFunc("/sso/settings", h.getSettings).Methods("GET")
	router.HandleFunc("/sso/settings", h.putSettings).Methods("PUT")
}

// login handles GET /user/login/sso.
//
// A proxy for the actual authentication routine: any authentication by the
// underlying web server is assumed good, so the only check is that it left a
// username behind. Anonymous-only; the running cookie is cleared on every
// outcome.
func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	if r.Context().Value(contextkeys.SessionKey) != nil {
		httputil.WriteForbidden(w, "sso login endpoint is only available to anonymous callers")
		return
	}

	ctx := r.Context()
	log := observability.FromContext(ctx)
	log.Debug("beginning sso login")

	settings := h.settings.Current(ctx)
	identity := ParseIdentity(h.source.Read(r, settings.Variable), settings.SplitUserRealm)

	notices := flash.NewQueue(h.basePath)
	var cookies []*http.Cookie
	var destination string

	if identity.Raw != "" {
		log.WithFields(map[string]interface{}{
			"username": identity.Username,
			"realm":    identity.Realm,
		}).Debug("trusted identity present, logging in")

		outcome, err := h.boot.Establish(ctx, identity.Username, settings.AutoCreateUser)
		if err != nil {
			log.WithError(err).Error("session establishment failed")
			outcome = LoginOutcome{Result: Rejected}
		}

		if outcome.Result == Rejected {
			notices.AddError(noticeAccountNotFound)
			cookies = append(cookies, h.guard.MarkStopped(settings.CookieExpiresImmediately))
			destination = h.basePath + ManualLoginPath
		} else if sess, err := h.sessions.Finalize(ctx, outcome.Account); err != nil {
			log.WithError(err).Error("session finalize failed")
			outcome.Result = Rejected
			notices.AddError(noticeAccountNotFound)
			cookies = append(cookies, h.guard.MarkStopped(settings.CookieExpiresImmediately))
			destination = h.basePath + ManualLoginPath
		} else {
			cookies = append(cookies, h.sessionCookie(sess))
			if settings.ShowLoginConfirmation {
				notices.AddStatus(noticeLoginConfirmed)
			}
			destination = h.finalDestination(r)
			if outcome.Result == Provisioned && h.metrics != nil {
				h.metrics.AccountsProvisioned.Inc()
			}
		}

		if h.metrics != nil {
			h.metrics.LoginsTotal.WithLabelValues(outcome.Result.String()).Inc()
		}
	} else {
		log.WithField("variable", settings.Variable).Debug("trusted identity variable not set")
		notices.AddError(noticeNotAuthenticated)
		cookies = append(cookies, h.guard.MarkStopped(settings.CookieExpiresImmediately))
		destination = h.basePath + ManualLoginPath
		if h.metrics != nil {
			h.metrics.LoginsTotal.WithLabelValues("missing_identity").Inc()
		}
	}

	// Removes the automated SSO semaphore, should it have been set.
	cookies = append(cookies, h.guard.ClearRunning())
	if fc := notices.Cookie(); fc != nil {
		cookies = append(cookies, fc)
	}

	for _, cookie := range cookies {
		http.SetCookie(w, cookie)
	}
	http.Redirect(w, r, destination, http.StatusFound)
}

// logout handles GET/POST /user/logout
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	settings := h.settings.Current(ctx)

	if cookie, err := r.Cookie(account.SessionCookieName); err == nil {
		if err := h.sessions.Delete(ctx, cookie.Value); err != nil {
			observability.FromContext(ctx).WithError(err).Warn("session delete failed")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:   account.SessionCookieName,
		Value:  "",
		Path:   h.cookiePath(),
		MaxAge: -1,
	})

	destination := h.frontPage
	if settings.RedirectOnLogout {
		if dest, ok := sanitizeDestination(settings.LogoutRedirectPath, h.basePath); ok {
			destination = dest
		}
	}
	http.Redirect(w, r, destination, http.StatusFound)
}

// getSettings handles GET /sso/settings
func (h *Handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Load(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, settings)
}

// putSettings handles PUT /sso/settings
func (h *Handlers) putSettings(w http.ResponseWriter, r *http.Request) {
	settings := &Settings{}
	if err := json.NewDecoder(r.Body).Decode(settings); err != nil {
		httputil.WriteBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	if settings.Variable == "" {
		settings.Variable = DefaultVariable
	}
	if settings.RedirectOnLogout {
		if settings.LogoutRedirectPath == "" {
			httputil.WriteBadRequest(w, "logout redirect path cannot be blank")
			return
		}
		if _, ok := sanitizeDestination(settings.LogoutRedirectPath, ""); !ok {
			httputil.WriteBadRequest(w, "logout redirect path is not a valid internal path")
			return
		}
	}

	if err := h.settings.Save(r.Context(), settings); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, settings)
}

// finalDestination computes the post-login redirect target from the
// destination query parameter, falling back to the front page
func (h *Handlers) finalDestination(r *http.Request) string {
	if dest, ok := sanitizeDestination(r.URL.Query().Get("destination"), h.basePath); ok {
		return dest
	}
	return h.frontPage
}

// sessionCookie builds the application session cookie
func (h *Handlers) sessionCookie(sess *account.Session) *http.Cookie {
	return &http.Cookie{
		Name:     account.SessionCookieName,
		Value:    sess.ID,
		Path:     h.cookiePath(),
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *Handlers) cookiePath() string {
	if h.basePath == "" {
		return "/"
	}
	return h.basePath
}

// sanitizeDestination validates a supplied destination as an internal path
// and strips the deployment base path prefix. Anything that is not an
// internal path is discarded so the caller falls back to the front page.
func sanitizeDestination(dest, basePath string) (string, bool) {
	if dest == "" {
		return "", false
	}

	u, err := url.Parse(dest)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "", false
	}

	path := u.Path
	if basePath != "" && basePath != "/" {
		if strings.EqualFold(path, basePath) {
			path = "/"
		} else if len(path) > len(basePath) && strings.EqualFold(path[:len(basePath)], basePath) && path[len(basePath)] == '/' {
			path = path[len(basePath):]
		}
	}

	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path, true
}
