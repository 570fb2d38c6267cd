// internal/app/auth.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/mentorloop/internal/models"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Auth turns a request into the principal the engine acts for. Without
// auth the identity comes from trusted headers set by a gateway; with auth
// a bearer token is looked up in redis.
type Auth struct {
	enabled     bool
	redis       *redis.Client
	tokens      *TokenManager
	tokenHeader string
	userHeader  string
	roleHeader  string
}

func NewAuth(config *Config) (*Auth, error) {
	auth := &Auth{
		enabled:     config.Server.EnableAuth,
		tokenHeader: config.Auth.TokenHeader,
		userHeader:  config.API.UserIDHeader,
		roleHeader:  config.API.RoleHeader,
	}
	if !auth.enabled {
		return auth, nil
	}

	client, err := NewRedisClient(config.Auth.RedisURL)
	if err != nil {
		return nil, err
	}

	auth.redis = client
	auth.tokens = NewTokenManager(client, config.Auth.SessionKeyTemplate)
	return auth, nil
}

func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (a *Auth) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

func (a *Auth) Principal(r *http.Request) (models.Principal, error) {
	if !a.enabled {
		return a.headerPrincipal(r)
	}

	authHeader := r.Header.Get(a.tokenHeader)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return models.Principal{}, fmt.Errorf("%w: invalid authorization header format", ErrUnauthenticated)
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	session, err := a.tokens.Resolve(r.Context(), token)
	if errors.Is(err, ErrUnknownToken) {
		logger.Debug.Printf("Token not found: %s", token)
		return models.Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if err != nil {
		logger.Debug.Printf("Redis error: %v", err)
		return models.Principal{}, fmt.Errorf("redis error: %w", err)
	}

	p := session.Principal()
	if p.ID == "" || !p.Role.Valid() {
		return models.Principal{}, fmt.Errorf("%w: malformed session for token", ErrUnauthenticated)
	}
	return p, nil
}

func (a *Auth) headerPrincipal(r *http.Request) (models.Principal, error) {
	id := strings.TrimSpace(r.Header.Get(a.userHeader))
	if id == "" {
		return models.Principal{}, fmt.Errorf("%w: missing %s header", ErrUnauthenticated, a.userHeader)
	}

	role := models.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(a.roleHeader))))
	if role == "" {
		role = models.RoleStudent
	}
	if !role.Valid() {
		return models.Principal{}, fmt.Errorf("%w: unknown role %q", ErrUnauthenticated, role)
	}

	return models.Principal{ID: id, Role: role}, nil
}
