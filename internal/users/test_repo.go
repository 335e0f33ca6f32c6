package users

import (
	"context"
	"sync"

	"github.com/mzivkovic/wikibin/pkg"
)

var _ Store = (*TestRepo)(nil)

// TestRepo is an in-memory credential store for unit tests.
type TestRepo struct {
	mutex sync.RWMutex
	Users map[string]*User
}

func NewTestRepo() *TestRepo {
	return &TestRepo{
		Users: make(map[string]*User),
	}
}

// AddUser hashes the given plain password and stores the user, panics on
// hashing errors to keep test setup terse.
func (r *TestRepo) AddUser(username, password string, role Role) *User {
	hash, err := pkg.HashPassword(password)
	if err != nil {
		panic(err)
	}
	user := &User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.Users[username] = user
	return user
}

func (r *TestRepo) Get(_ context.Context, username string) (*User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	user, ok := r.Users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (r *TestRepo) Create(_ context.Context, user *User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.Users[user.Username]; ok {
		return ErrUsernameTaken
	}
	r.Users[user.Username] = user
	return nil
}

func (r *TestRepo) Verify(ctx context.Context, username, password string) (Role, error) {
	user, err := r.Get(ctx, username)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if !pkg.CheckPasswordHash(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return user.Role, nil
}
