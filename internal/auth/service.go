package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/mzivkovic/wikibin/pkg"
)

const (
	// DefaultTTL - sessions silently expire after this, checked at resolution time
	DefaultTTL = 3600 * time.Second

	sessionTokenLength = 32

	sessionKeyPrefix = "wikibin-session||"
	tokensSetKey     = "wikibin-sessions"

	fieldUsername  = "username"
	fieldCreatedAt = "created_at"
)

// Service issues and destroys login sessions in redis. Each session is a
// hash token -> {username, created_at}, with the token also registered in
// a set so ScanAndClean can sweep expired ones.
type Service struct {
	redisClient *redis.Client
	ttl         time.Duration
	// ability to inject random string generator func for tokens (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
}

func NewService(ttl time.Duration, redisClient *redis.Client) *Service {
	return &Service{
		ttl:            ttl,
		redisClient:    redisClient,
		RandStringFunc: pkg.GenerateCode,
	}
}

// Login creates a new session for username and returns the opaque token.
// Credential verification is the caller's job, a session handed to Login
// is taken on faith.
func (s *Service) Login(ctx context.Context, username string, createdAt time.Time) (string, error) {
	token, err := s.RandStringFunc(sessionTokenLength)
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}

	sessionKey := sessionKeyPrefix + token
	cmdSet := s.redisClient.HSet(ctx, sessionKey,
		fieldUsername, username,
		fieldCreatedAt, createdAt.Unix(),
	)
	if err := cmdSet.Err(); err != nil {
		return "", err
	}

	// add token to list of sessions
	cmdSAdd := s.redisClient.SAdd(ctx, tokensSetKey, token)
	if err := cmdSAdd.Err(); err != nil {
		return "", err
	}

	return token, nil
}

// Logout destroys the session. Destroying a token that is not there is not
// an error, the end state is the same.
func (s *Service) Logout(ctx context.Context, token string) error {
	sessionKey := sessionKeyPrefix + token
	if err := s.redisClient.Del(ctx, sessionKey).Err(); err != nil {
		return err
	}
	return s.redisClient.SRem(ctx, tokensSetKey, token).Err()
}

// ScanAndClean will run through all sessions, check the TTL, and clean them if old
func (s *Service) ScanAndClean(ctx context.Context) {
	cmd := s.redisClient.SMembers(ctx, tokensSetKey)
	if err := cmd.Err(); err != nil {
		log.Errorf("!!! auth service, scan and clean, get sessions: %s", err)
		return
	}

	sessionTokens := cmd.Val()
	if len(sessionTokens) == 0 {
		log.Debugln("=> auth service, scan and clean abort, no sessions")
		return
	}

	log.Debugf("=> auth service, scan and clean [%d sessions] start ...", len(sessionTokens))
	var toRemove []string
	for _, token := range sessionTokens {
		sessionKey := sessionKeyPrefix + token
		createdAtStr, err := s.redisClient.HGet(ctx, sessionKey, fieldCreatedAt).Result()
		if err != nil {
			log.Errorf("=> auth service, scan and clean token %s: %s", token, err)
			continue
		}

		createdAtUnix, err := strconv.ParseInt(createdAtStr, 10, 64)
		if err != nil {
			log.Errorf("=> auth service, scan and clean token %s: %s", token, err)
			continue
		}

		if time.Since(time.Unix(createdAtUnix, 0)) > s.ttl {
			toRemove = append(toRemove, token)
		}
	}

	for _, token := range toRemove {
		if err := s.Logout(ctx, token); err != nil {
			log.Errorf("=> auth service, clean token %s: %s", token, err)
		}
	}
}
