package directory

import (
	"context"
	"crypto/subtle"
)

// StaticUser is an account served by Static.
type StaticUser struct {
	Password string
	Identity Identity
}

// Static authenticates against a fixed set of users. Used for development without a directory server.
type Static struct {
	users map[string]StaticUser
}

func NewStatic(users map[string]StaticUser) *Static {
	return &Static{users: users}
}

func (s *Static) Authenticate(_ context.Context, username, password string) (*Identity, error) {
	u, ok := s.users[username]
	if !ok || password == "" || subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		return nil, ErrInvalidCredentials
	}

	identity := u.Identity
	identity.Username = username
	return &identity, nil
}
