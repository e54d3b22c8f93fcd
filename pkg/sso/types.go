package sso

// Well-known gateway paths, relative to the deployment base path.
const (
	// LoginPath is the dedicated SSO login endpoint
	LoginPath = "/user/login/sso"
	// ManualLoginPath is the manual (non-SSO) login form
	ManualLoginPath = "/user/login"
	// LogoutPath is the logout endpoint
	LogoutPath = "/user/logout"
	// AccountPath is the bare account page
	AccountPath = "/user"
)

// FrontSentinel in an excluded-path entry matches the configured front page
const FrontSentinel = "<front>"

// DefaultVariable is the conventional trusted-identity header
const DefaultVariable = "REMOTE_USER"

// Settings is the gateway configuration document. It is read-only within a
// request; saves through the admin API invalidate the process-wide snapshot.
type Settings struct {
	// Enabled is the master switch for automated interception
	Enabled bool `json:"enabled"`

	// Variable names the trusted-identity header to read
	Variable string `json:"variable"`

	// SplitUserRealm parses user@realm identities into name and realm
	SplitUserRealm bool `json:"split_user_realm"`

	// CookieExpiresImmediately makes the stop cookie one-shot instead of
	// session-lifetime, so users can log right back in after logging out
	CookieExpiresImmediately bool `json:"cookie_expires_immediately"`

	// ExcludedPaths are path patterns never subject to automated SSO.
	// Entries match case-insensitively; a trailing '*' is a prefix wildcard
	// and the literal <front> matches the configured front page.
	ExcludedPaths []string `json:"excluded_paths"`

	// ExcludedHosts are hostnames never subject to automated SSO
	ExcludedHosts []string `json:"excluded_hosts"`

	// AutoCreateUser provisions a local account for a first-seen identity
	AutoCreateUser bool `json:"auto_create_user"`

	// ShowLoginConfirmation surfaces a success notice after SSO login
	ShowLoginConfirmation bool `json:"show_login_confirmation"`

	// RedirectOnLogout redirects to LogoutRedirectPath after logout
	RedirectOnLogout bool `json:"redirect_on_logout"`

	// LogoutRedirectPath is the internal path users land on after logout
	LogoutRedirectPath string `json:"logout_redirect_path,omitempty"`
}

// DefaultSettings returns the settings used before any admin save
func DefaultSettings() *Settings {
	return &Settings{
		Enabled:  false,
		Variable: DefaultVariable,
	}
}

// Identity is the per-request trusted identity. Never persisted.
type Identity struct {
	Raw      string
	Username string
	Realm    string
}
