// internal/app/sessions.go
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/hankai/housecup/internal/models"
)

const (
	timeFormat    = "2006-01-02 15:04:05"
	sessionKeyTpl = "session:%s" // session:${token}
	tokenPrefix   = "sess-hc-"

	defaultSessionTTL = 8 * time.Hour
)

var ErrNoSession = errors.New("session not found")

// Sessions keeps short-lived identity state in redis hashes, one per
// login, expiring with the TTL. When disabled, callers fall back to
// header-provided identity.
type Sessions struct {
	enabled bool
	redis   *redis.Client
	ttl     time.Duration
}

func NewSessions(config *Config) (*Sessions, error) {
	if !config.Server.EnableSessions {
		return &Sessions{enabled: false}, nil
	}

	opt, err := redis.ParseURL(config.Sessions.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := defaultSessionTTL
	if config.Sessions.TTLMinutes > 0 {
		ttl = time.Duration(config.Sessions.TTLMinutes) * time.Minute
	}

	return &Sessions{
		enabled: true,
		redis:   client,
		ttl:     ttl,
	}, nil
}

func (s *Sessions) Enabled() bool {
	return s.enabled
}

func (s *Sessions) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}

func generateToken() (string, error) {
	randomBytes := make([]byte, 12)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return tokenPrefix + hex.EncodeToString(randomBytes), nil
}

// Create stores a fresh session hash and returns its bearer token.
func (s *Sessions) Create(ctx context.Context, session models.Session) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf(sessionKeyTpl, token)
	now := time.Now().UTC()

	pipe := s.redis.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"role":             string(session.Role),
		"username":         session.Username,
		"house":            session.House,
		"created_dttm_utc": now.Format(timeFormat),
	})
	pipe.Expire(ctx, key, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	return token, nil
}

// Resolve maps a bearer token back to the actor it was issued to.
func (s *Sessions) Resolve(ctx context.Context, token string) (*models.Session, error) {
	key := fmt.Sprintf(sessionKeyTpl, token)

	fields, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		logger.Debug.Printf("Redis error resolving session: %v", err)
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(fields) == 0 {
		logger.Debug.Printf("Session not found for key: %s", key)
		return nil, ErrNoSession
	}

	role := models.Role(fields["role"])
	if role != models.RoleAdmin && role != models.RoleTeacher {
		return nil, ErrNoSession
	}

	return &models.Session{
		Role:     role,
		Username: fields["username"],
		House:    fields["house"],
	}, nil
}

func (s *Sessions) Destroy(ctx context.Context, token string) error {
	key := fmt.Sprintf(sessionKeyTpl, token)
	return s.redis.Del(ctx, key).Err()
}
