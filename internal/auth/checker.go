package auth

import (
	"context"

	"github.com/mzivkovic/wikibin/internal/users"
)

var _ Checker = (*SessionChecker)(nil)
var _ Checker = (*TestChecker)(nil)

// Identity is a resolved session. The zero value is Anonymous.
type Identity struct {
	Username string
	Role     users.Role
}

// Anonymous is what every unauthenticated (or expired) request resolves to.
var Anonymous = Identity{}

func (i Identity) IsAnonymous() bool {
	return i.Username == ""
}

func (i Identity) IsAdmin() bool {
	return !i.IsAnonymous() && i.Role == users.RoleAdmin
}

// Checker resolves a session token into an identity. A missing, unknown or
// expired token resolves to Anonymous with a nil error: being logged out is
// a normal state, not a failure.
type Checker interface {
	ResolveIdentity(ctx context.Context, token string) (Identity, error)
}
