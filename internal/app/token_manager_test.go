package app

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shrimpsizemoose/mentorloop/internal/models"
)

// setupRedis starts a throwaway redis container
func setupRedis(t *testing.T) (*redis.Client, func()) {
	if testing.Short() {
		t.Skip("Skipping redis integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := NewRedisClient(fmt.Sprintf("redis://%s/0", endpoint))
	require.NoError(t, err)

	cleanup := func() {
		client.Close()
		container.Terminate(ctx)
	}
	return client, cleanup
}

func TestTokenLifecycle(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	tm := NewTokenManager(client, "session:{token}")
	mentor := models.Principal{ID: "mentor-1", Role: models.RoleMentor}

	issued, isNew, err := tm.FetchOrCreateToken(ctx, mentor)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Contains(t, issued.Token, tokenPrefix)
	assert.Equal(t, mentor, issued.Principal())

	again, isNew, err := tm.FetchOrCreateToken(ctx, mentor)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, issued.Token, again.Token)

	resolved, err := tm.Resolve(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved.RequestCount)

	_, err = tm.Resolve(ctx, "sk-mntrlp-nope")
	assert.ErrorIs(t, err, ErrUnknownToken)

	t.Run("auth resolves bearer tokens", func(t *testing.T) {
		auth := &Auth{enabled: true, redis: client, tokens: tm, tokenHeader: "Authorization"}

		r := httptest.NewRequest("GET", "/api/v1/leaderboard", nil)
		r.Header.Set("Authorization", "Bearer "+issued.Token)
		p, err := auth.Principal(r)
		require.NoError(t, err)
		assert.Equal(t, mentor, p)

		r.Header.Set("Authorization", "Bearer sk-mntrlp-nope")
		_, err = auth.Principal(r)
		assert.ErrorIs(t, err, ErrUnauthenticated)

		r.Header.Set("Authorization", issued.Token)
		_, err = auth.Principal(r)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("telegram link", func(t *testing.T) {
		got, err := tm.FetchTelegramPrincipal(ctx, 42)
		require.NoError(t, err)
		assert.Nil(t, got)

		require.NoError(t, tm.LinkTelegram(ctx, 42, mentor))
		got, err = tm.FetchTelegramPrincipal(ctx, 42)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, mentor, *got)
	})
}
