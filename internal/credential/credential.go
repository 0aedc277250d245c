// Package credential manages the bearer credential used to call the
// protected gateway endpoints: caching, validation and lazy renewal.
package credential

import (
	"fmt"
	"sort"
	"strings"
)

// Credential is an opaque signed bearer token. It is never mutated; a stale
// credential is replaced by a freshly issued one.
type Credential string

// IsZero reports whether no credential is present.
func (c Credential) IsZero() bool {
	return strings.TrimSpace(string(c)) == ""
}

// String keeps the token out of logs and error messages. Use Bearer to
// build the Authorization header value.
func (c Credential) String() string {
	if c.IsZero() {
		return "<none>"
	}
	return "<redacted>"
}

// Bearer returns the Authorization header value for the credential.
func (c Credential) Bearer() string {
	return "Bearer " + string(c)
}

// Identity is the authenticated caller on whose behalf credentials are issued.
type Identity struct {
	Username      string
	Roles         []string
	Authenticated bool
}

func (id *Identity) usable() bool {
	return id != nil && id.Authenticated && strings.TrimSpace(id.Username) != ""
}

// Scope selects how the credential cache is keyed.
type Scope string

const (
	// ScopeGlobal keeps one process-wide credential slot. A second identity
	// overwrites the first one's credential.
	ScopeGlobal Scope = "global"
	// ScopeIdentity keeps one slot per identity.
	ScopeIdentity Scope = "identity"
)

// ParseScope converts a configuration value into a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeGlobal:
		return ScopeGlobal, nil
	case ScopeIdentity, "":
		return ScopeIdentity, nil
	default:
		return "", fmt.Errorf("unknown credential cache scope %q", s)
	}
}

// Key returns the cache slot name for id under this scope.
func (s Scope) Key(id Identity) string {
	if s == ScopeGlobal {
		return "global"
	}
	roles := append([]string(nil), id.Roles...)
	sort.Strings(roles)
	return id.Username + "|" + strings.Join(roles, ",")
}
