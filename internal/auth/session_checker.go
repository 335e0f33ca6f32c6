package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/mzivkovic/wikibin/internal/users"
)

// SessionChecker is the access gate: it turns an opaque session token into
// an Identity by reading the session from redis and the role from the
// users store. Everything that can go wrong on the caller's side (no
// token, unknown token, expired session, user deleted meanwhile) fails
// closed to Anonymous.
type SessionChecker struct {
	ttl         time.Duration
	redisClient *redis.Client
	users       users.Store
}

func NewSessionChecker(ttl time.Duration, redisClient *redis.Client, usersStore users.Store) *SessionChecker {
	return &SessionChecker{
		ttl:         ttl,
		redisClient: redisClient,
		users:       usersStore,
	}
}

func (c *SessionChecker) ResolveIdentity(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Anonymous, nil
	}

	sessionKey := sessionKeyPrefix + token
	session, err := c.redisClient.HGetAll(ctx, sessionKey).Result()
	if errors.Is(err, redis.Nil) {
		return Anonymous, nil
	}
	if err != nil {
		return Anonymous, err
	}
	// HGetAll on a missing key yields an empty map, not redis.Nil
	if len(session) == 0 {
		return Anonymous, nil
	}

	createdAtUnix, err := strconv.ParseInt(session[fieldCreatedAt], 10, 64)
	if err != nil {
		log.Errorf("session checker, malformed created_at for token %s: %s", token, err)
		return Anonymous, nil
	}

	if time.Since(time.Unix(createdAtUnix, 0)) > c.ttl {
		// expired session is the same as no session
		return Anonymous, nil
	}

	user, err := c.users.Get(ctx, session[fieldUsername])
	if errors.Is(err, users.ErrUserNotFound) {
		return Anonymous, nil
	}
	if err != nil {
		return Anonymous, err
	}

	return Identity{
		Username: user.Username,
		Role:     user.Role,
	}, nil
}
