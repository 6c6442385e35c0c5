// Package directory authenticates users against Active Directory.
package directory

import (
	"context"
	"errors"
	"slices"
	"strings"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrServerUnavailable  = errors.New("directory server unavailable")
	ErrUserNotFound       = errors.New("user not found in directory")
)

// Authenticator verifies a username and password and returns the user identity.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*Identity, error)
}

// Identity is a directory user.
type Identity struct {
	Username    string
	GivenName   string
	Surname     string
	DisplayName string
	Mail        string
	Telephone   string
	Description string
	MemberOf    []string
}

// Groups splits the memberOf distinguished names into their components and
// groups the values by attribute type, e.g. {"CN": ["Admins"], "DC": ["gex", "local"]}.
// Components are de-duplicated and values are sorted.
func (i *Identity) Groups() map[string][]string {
	var parts []string
	for _, dn := range i.MemberOf {
		for part := range strings.SplitSeq(dn, ",") {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
	}
	slices.Sort(parts)
	parts = slices.Compact(parts)

	groups := make(map[string][]string)
	for _, part := range parts {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		groups[key] = append(groups[key], strings.TrimSpace(value))
	}
	return groups
}
