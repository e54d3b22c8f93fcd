package sso

import (
	"net/http"
	"regexp"
)

// userRealmPattern matches user@realm identities. Anything else is passed
// through unsplit.
var userRealmPattern = regexp.MustCompile(`^([A-Za-z0-9_.-]+)@([A-Za-z0-9_.-]+)$`)

// IdentitySource reads the trusted identity from the current request
type IdentitySource interface {
	// Read returns the value of the named trusted-identity field, or ""
	// when it is unset or empty
	Read(r *http.Request, variable string) string
}

// HeaderIdentitySource reads the identity from a request header populated by
// the upstream reverse proxy
type HeaderIdentitySource struct{}

// Read returns the named header value, or "" when unset
func (HeaderIdentitySource) Read(r *http.Request, variable string) string {
	if variable == "" {
		variable = DefaultVariable
	}
	return r.Header.Get(variable)
}

// ParseIdentity derives the per-request identity from the raw value. When
// split is enabled and the value looks like user@realm, the name and realm
// are separated; the realm is informational only.
func ParseIdentity(raw string, split bool) Identity {
	id := Identity{Raw: raw, Username: raw}
	if !split || raw == "" {
		return id
	}

	if m := userRealmPattern.FindStringSubmatch(raw); m != nil {
		id.Username = m[1]
		id.Realm = m[2]
	}
	return id
}
