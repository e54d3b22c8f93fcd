// Package sso implements the "trust the web server" single sign-on core.
//
// # Overview
//
// An upstream reverse proxy performs the actual authentication (Kerberos,
// client certificates, whatever it likes) and injects the verified name into
// a request header, conventionally REMOTE_USER. This package consumes that
// name: it decides on every inbound request whether automated SSO should
// fire, redirects through a dedicated login endpoint, maps the name to a
// local account (optionally auto-provisioning one), and establishes the
// application session.
//
// # Request flow
//
// The Interceptor runs as the outermost request middleware:
//
//  1. Authenticated callers and disabled SSO pass straight through.
//  2. The exclusion policy skips the manual login page, the SSO endpoint
//     itself, logout, the bare account page, and any configured paths/hosts.
//  3. The loop guard breaks redirect cycles via two control cookies:
//     sso_login_running (a redirect into the login endpoint is in flight)
//     and sso_stop (a previous attempt failed; fall through to manual login).
//  4. Otherwise the request is answered with a 302 into the login endpoint,
//     carrying the original destination as a query parameter.
//
// The login endpoint reads the trusted header, optionally splits user@realm,
// establishes or provisions the account, always clears the running cookie,
// and redirects to the captured destination, the front page, or the manual
// login page with a queued notice.
//
// This package performs no credential validation and no authorization; it is
// identity propagation and session bootstrapping only. Non-HTTP entry points
// (CLI tools, cron) never mount the Interceptor and are unaffected.
package sso
