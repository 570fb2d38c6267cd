package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrimpsizemoose/mentorloop/internal/models"
)

const (
	timeFormat      = "2006-01-02 15:04:05"
	userTokenKeyTpl = "user_token:%s" // user_token:${user_id}
	telegramKeyTpl  = "telegram:%d"   // telegram:${telegram_user_id}
	tokenPrefix     = "sk-mntrlp-"
)

var ErrUnknownToken = errors.New("unknown session token")

// TokenManager issues API tokens and keeps the session hashes that Auth
// resolves principals from.
type TokenManager struct {
	redis       *redis.Client
	keyTemplate string
	now         func() time.Time
}

func NewTokenManager(redis *redis.Client, keyTemplate string) *TokenManager {
	if keyTemplate == "" {
		keyTemplate = "session:{token}"
	}
	return &TokenManager{redis: redis, keyTemplate: keyTemplate, now: time.Now}
}

func generateToken() (string, error) {
	randomBytes := make([]byte, 12)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return tokenPrefix + hex.EncodeToString(randomBytes), nil
}

func (tm *TokenManager) sessionKey(token string) string {
	return strings.ReplaceAll(tm.keyTemplate, "{token}", token)
}

// FetchOrCreateToken returns the principal's token, creating one on first
// use. The bool reports whether the token is new.
func (tm *TokenManager) FetchOrCreateToken(ctx context.Context, p models.Principal) (*models.SessionToken, bool, error) {
	userKey := fmt.Sprintf(userTokenKeyTpl, p.ID)

	token, err := tm.redis.Get(ctx, userKey).Result()
	if err != nil && err != redis.Nil {
		return nil, false, fmt.Errorf("failed to check token: %w", err)
	}

	now := tm.now().UTC()
	if err == nil {
		// keep the role in sync, it may have changed since the token was issued
		if err := tm.redis.HSet(ctx, tm.sessionKey(token), "role", string(p.Role)).Err(); err != nil {
			return nil, false, fmt.Errorf("failed to refresh token: %w", err)
		}
		session, err := tm.fetch(ctx, token)
		if err != nil {
			return nil, false, err
		}
		return session, false, nil
	}

	token, err = generateToken()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate token: %w", err)
	}

	pipe := tm.redis.TxPipeline()
	pipe.HSet(ctx, tm.sessionKey(token), map[string]interface{}{
		"user_id":               p.ID,
		"role":                  string(p.Role),
		"request_count":         0,
		"last_request_dttm_utc": now.Format(timeFormat),
		"created_dttm_utc":      now.Format(timeFormat),
	})
	pipe.Set(ctx, userKey, token, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to create token: %w", err)
	}

	session, err := tm.fetch(ctx, token)
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// Resolve looks a bearer token up and counts the request against it.
func (tm *TokenManager) Resolve(ctx context.Context, token string) (*models.SessionToken, error) {
	key := tm.sessionKey(token)

	exists, err := tm.redis.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if exists == 0 {
		return nil, ErrUnknownToken
	}

	pipe := tm.redis.Pipeline()
	pipe.HIncrBy(ctx, key, "request_count", 1)
	pipe.HSet(ctx, key, "last_request_dttm_utc", tm.now().UTC().Format(timeFormat))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to update token stats: %w", err)
	}

	return tm.fetch(ctx, token)
}

func (tm *TokenManager) fetch(ctx context.Context, token string) (*models.SessionToken, error) {
	values, err := tm.redis.HGetAll(ctx, tm.sessionKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get token info: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrUnknownToken
	}

	lastReqTime, _ := time.Parse(timeFormat, values["last_request_dttm_utc"])
	createdTime, _ := time.Parse(timeFormat, values["created_dttm_utc"])
	reqCount, _ := strconv.Atoi(values["request_count"])

	return &models.SessionToken{
		Token:           token,
		UserID:          values["user_id"],
		Role:            models.Role(values["role"]),
		RequestCount:    reqCount,
		LastRequestTime: lastReqTime,
		CreatedTime:     createdTime,
	}, nil
}

// LinkTelegram remembers which platform user a Telegram account acts as.
func (tm *TokenManager) LinkTelegram(ctx context.Context, telegramID int64, p models.Principal) error {
	key := fmt.Sprintf(telegramKeyTpl, telegramID)
	return tm.redis.HSet(ctx, key, map[string]interface{}{
		"user_id": p.ID,
		"role":    string(p.Role),
	}).Err()
}

// FetchTelegramPrincipal returns nil when the account was never linked.
func (tm *TokenManager) FetchTelegramPrincipal(ctx context.Context, telegramID int64) (*models.Principal, error) {
	key := fmt.Sprintf(telegramKeyTpl, telegramID)

	values, err := tm.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch telegram mapping for %d: %w", telegramID, err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	return &models.Principal{
		ID:   values["user_id"],
		Role: models.Role(values["role"]),
	}, nil
}

func (tm *TokenManager) Close() error {
	if tm.redis != nil {
		return tm.redis.Close()
	}
	return nil
}
