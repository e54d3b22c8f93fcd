package sso

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/doorman/pkg/account"
	"github.com/platinummonkey/doorman/pkg/contextkeys"
	"github.com/platinummonkey/doorman/pkg/flash"
)

type handlerFixture struct {
	handlers *Handlers
	store    *fakeStore
	db       *sql.DB
	mock     sqlmock.Sqlmock
	router   *mux.Router
}

func newHandlerFixture(t *testing.T, settings *Settings, basePath string) *handlerFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := newFakeStore()
	boot := NewBootstrapper(store, testLogger())
	sessions := account.NewSessionManager(db, 0)
	guard := NewLoopGuard(basePath)

	handlers := NewHandlers(snapshotSettingsStore(settings), boot, sessions, guard,
		HeaderIdentitySource{}, basePath, "/", testLogger(), nil)

	router := mux.NewRouter()
	handlers.RegisterRoutes(router)

	return &handlerFixture{handlers: handlers, store: store, db: db, mock: mock, router: router}
}

// expectSessionFinalize queues the inserts a successful login performs
func (f *handlerFixture) expectSessionFinalize() {
	f.mock.ExpectExec("INSERT INTO sessions").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE accounts SET last_login_at").WillReturnResult(sqlmock.NewResult(0, 1))
}

func cookieByName(t *testing.T, cookies []*http.Cookie, name string) *http.Cookie {
	t.Helper()
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func hasCookie(cookies []*http.Cookie, name string) bool {
	for _, c := range cookies {
		if c.Name == name {
			return true
		}
	}
	return false
}

func TestLogin_ExistingAccount(t *testing.T) {
	settings := enabledSettings()
	fx := newHandlerFixture(t, settings, "")
	fx.store.add("alice")
	fx.expectSessionFinalize()

	req := httptest.NewRequest("GET", "/user/login/sso?destination=%2Fdashboard", nil)
	req.Header.Set(DefaultVariable, "alice")
	req.AddCookie(&http.Cookie{Name: RunningCookieName, Value: "true"})
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	cookies := w.Result().Cookies()
	sess := cookieByName(t, cookies, account.SessionCookieName)
	assert.NotEmpty(t, sess.Value)
	assert.True(t, sess.HttpOnly)

	running := cookieByName(t, cookies, RunningCookieName)
	assert.Empty(t, running.Value)
	assert.Equal(t, -1, running.MaxAge, "running cookie is always cleared")

	assert.False(t, hasCookie(cookies, StopCookieName))
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestLogin_AutoProvision(t *testing.T) {
	settings := enabledSettings()
	settings.SplitUserRealm = true
	settings.AutoCreateUser = true
	fx := newHandlerFixture(t, settings, "")
	fx.expectSessionFinalize()

	req := httptest.NewRequest("GET", "/user/login/sso", nil)
	req.Header.Set(DefaultVariable, "alice@CORP")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"), "no destination falls back to the front page")

	// The realm is informational only; the account is the bare name.
	assert.Equal(t, []string{"alice"}, fx.store.created)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestLogin_NoMatchingAccount(t *testing.T) {
	settings := enabledSettings()
	fx := newHandlerFixture(t, settings, "")

	req := httptest.NewRequest("GET", "/user/login/sso?destination=%2Fdashboard", nil)
	req.Header.Set(DefaultVariable, "nobody")
	req.AddCookie(&http.Cookie{Name: RunningCookieName, Value: "true"})
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, ManualLoginPath, w.Header().Get("Location"))

	cookies := w.Result().Cookies()
	stop := cookieByName(t, cookies, StopCookieName)
	assert.Equal(t, "sso_stop", stop.Value)
	assert.True(t, stop.Expires.IsZero(), "default stop cookie lasts the browser session")

	running := cookieByName(t, cookies, RunningCookieName)
	assert.Equal(t, -1, running.MaxAge)

	assert.False(t, hasCookie(cookies, account.SessionCookieName))

	// The user gets told why they landed on the manual form.
	fc := cookieByName(t, cookies, flash.CookieName)
	popReq := httptest.NewRequest("GET", "/user/login", nil)
	popReq.AddCookie(fc)
	notices, _ := flash.Pop(popReq, "")
	require.Len(t, notices, 1)
	assert.Equal(t, flash.SeverityError, notices[0].Severity)
	assert.Contains(t, notices[0].Message, "matching account was not found")
}

func TestLogin_RejectedRedirectKeepsBasePath(t *testing.T) {
	settings := enabledSettings()
	fx := newHandlerFixture(t, settings, "/sub")

	req := httptest.NewRequest("GET", "/user/login/sso", nil)
	req.Header.Set(DefaultVariable, "nobody")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/sub"+ManualLoginPath, w.Header().Get("Location"),
		"the manual-login fallback stays inside the deployment")

	// Missing identity lands on the same in-deployment form.
	req = httptest.NewRequest("GET", "/user/login/sso", nil)
	w = httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	assert.Equal(t, "/sub"+ManualLoginPath, w.Header().Get("Location"))
}

func TestLogin_MissingIdentity(t *testing.T) {
	settings := enabledSettings()
	settings.CookieExpiresImmediately = true
	fx := newHandlerFixture(t, settings, "")

	req := httptest.NewRequest("GET", "/user/login/sso", nil)
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, ManualLoginPath, w.Header().Get("Location"))

	cookies := w.Result().Cookies()
	stop := cookieByName(t, cookies, StopCookieName)
	assert.False(t, stop.Expires.IsZero(), "one-shot stop cookie carries a past expiry")

	fc := cookieByName(t, cookies, flash.CookieName)
	popReq := httptest.NewRequest("GET", "/user/login", nil)
	popReq.AddCookie(fc)
	notices, _ := flash.Pop(popReq, "")
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Message, "not authenticated by the server")
}

func TestLogin_AuthenticatedCallerForbidden(t *testing.T) {
	fx := newHandlerFixture(t, enabledSettings(), "")

	req := httptest.NewRequest("GET", "/user/login/sso", nil)
	req = req.WithContext(contextkeys.WithSession(req.Context(), &account.Session{ID: "s1"}))
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLogin_ConfirmationNotice(t *testing.T) {
	settings := enabledSettings()
	settings.ShowLoginConfirmation = true
	fx := newHandlerFixture(t, settings, "")
	fx.store.add("alice")
	fx.expectSessionFinalize()

	req := httptest.NewRequest("GET", "/user/login/sso", nil)
	req.Header.Set(DefaultVariable, "alice")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	fc := cookieByName(t, w.Result().Cookies(), flash.CookieName)
	popReq := httptest.NewRequest("GET", "/", nil)
	popReq.AddCookie(fc)
	notices, _ := flash.Pop(popReq, "")
	require.Len(t, notices, 1)
	assert.Equal(t, flash.SeverityStatus, notices[0].Severity)
	assert.Contains(t, notices[0].Message, "successfully authenticated")
}

func TestLogin_DestinationStripsBasePath(t *testing.T) {
	settings := enabledSettings()
	fx := newHandlerFixture(t, settings, "/sub")
	fx.store.add("alice")
	fx.expectSessionFinalize()

	req := httptest.NewRequest("GET", "/user/login/sso?destination="+url.QueryEscape("/sub/node/5"), nil)
	req.Header.Set(DefaultVariable, "alice")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/node/5", w.Header().Get("Location"))
}

func TestLogin_RejectsExternalDestination(t *testing.T) {
	settings := enabledSettings()
	fx := newHandlerFixture(t, settings, "")
	fx.store.add("alice")

	for _, dest := range []string{
		"https://evil.example.com/",
		"//evil.example.com/",
		"javascript:alert(1)",
		"relative/path",
	} {
		fx.expectSessionFinalize()

		req := httptest.NewRequest("GET", "/user/login/sso?destination="+url.QueryEscape(dest), nil)
		req.Header.Set(DefaultVariable, "alice")
		w := httptest.NewRecorder()
		fx.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"), "destination %q must be discarded", dest)
	}
}

func TestLogin_FinalizeFailureFallsBack(t *testing.T) {
	settings := enabledSettings()
	fx := newHandlerFixture(t, settings, "")
	fx.store.add("alice")
	fx.mock.ExpectExec("INSERT INTO sessions").WillReturnError(assert.AnError)

	req := httptest.NewRequest("GET", "/user/login/sso", nil)
	req.Header.Set(DefaultVariable, "alice")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, ManualLoginPath, w.Header().Get("Location"))
	cookies := w.Result().Cookies()
	assert.True(t, hasCookie(cookies, StopCookieName))
	assert.False(t, hasCookie(cookies, account.SessionCookieName))
}

func TestLogout(t *testing.T) {
	fx := newHandlerFixture(t, enabledSettings(), "")
	fx.mock.ExpectExec("DELETE FROM sessions WHERE id").WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest("GET", "/user/logout", nil)
	req.AddCookie(&http.Cookie{Name: account.SessionCookieName, Value: "sess-1"})
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	cleared := cookieByName(t, w.Result().Cookies(), account.SessionCookieName)
	assert.Empty(t, cleared.Value)
	assert.Equal(t, -1, cleared.MaxAge)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestLogout_RedirectPath(t *testing.T) {
	settings := enabledSettings()
	settings.RedirectOnLogout = true
	settings.LogoutRedirectPath = "/goodbye"
	fx := newHandlerFixture(t, settings, "")

	req := httptest.NewRequest("GET", "/user/logout", nil)
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/goodbye", w.Header().Get("Location"))
}

func TestGetSettings(t *testing.T) {
	fx := newHandlerFixture(t, enabledSettings(), "")
	payload := `{"enabled":true,"variable":"REMOTE_USER","auto_create_user":true}`
	fx.mock.ExpectQuery("SELECT settings FROM sso_settings WHERE id = 1").
		WillReturnRows(sqlmock.NewRows([]string{"settings"}).AddRow([]byte(payload)))

	// The settings API reads through; reattach the store to the mock db.
	fx.handlers.settings = NewSettingsStore(fx.db, testLogger())

	req := httptest.NewRequest("GET", "/sso/settings", nil)
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var settings Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.True(t, settings.Enabled)
	assert.True(t, settings.AutoCreateUser)
}

func TestPutSettings(t *testing.T) {
	fx := newHandlerFixture(t, enabledSettings(), "")
	fx.handlers.settings = NewSettingsStore(fx.db, testLogger())
	fx.mock.ExpectExec("INSERT INTO sso_settings").WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"enabled":true,"split_user_realm":true,"excluded_paths":["blog/*"]}`
	req := httptest.NewRequest("PUT", "/sso/settings", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var saved Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	assert.Equal(t, DefaultVariable, saved.Variable, "blank variable falls back to the default")
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestPutSettings_Invalid(t *testing.T) {
	fx := newHandlerFixture(t, enabledSettings(), "")

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"enabled":`},
		{"blank logout redirect", `{"redirect_on_logout":true}`},
		{"external logout redirect", `{"redirect_on_logout":true,"logout_redirect_path":"https://evil.example.com"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("PUT", "/sso/settings", bytes.NewBufferString(tc.body))
			w := httptest.NewRecorder()
			fx.router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestLogin_RateLimiterWrapsRoute(t *testing.T) {
	fx := newHandlerFixture(t, enabledSettings(), "")
	limited := false
	fx.handlers.SetLoginRateLimiter(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limited = true
			w.WriteHeader(http.StatusTooManyRequests)
		})
	})

	router := mux.NewRouter()
	fx.handlers.RegisterRoutes(router)

	req := httptest.NewRequest("GET", "/user/login/sso", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.True(t, limited)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestSanitizeDestination(t *testing.T) {
	tests := []struct {
		dest     string
		basePath string
		want     string
		ok       bool
	}{
		{"/node/5", "", "/node/5", true},
		{"/node/5?page=2", "", "/node/5?page=2", true},
		{"/sub/node/5", "/sub", "/node/5", true},
		{"/sub", "/sub", "/", true},
		{"", "", "", false},
		{"https://evil.example.com/x", "", "", false},
		{"//evil.example.com", "", "", false},
		{"node/5", "", "", false},
	}

	for _, tc := range tests {
		got, ok := sanitizeDestination(tc.dest, tc.basePath)
		assert.Equal(t, tc.ok, ok, "dest %q", tc.dest)
		if tc.ok {
			assert.Equal(t, tc.want, got, "dest %q", tc.dest)
		}
	}
}
