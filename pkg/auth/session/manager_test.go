package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pos-backend/pkg/config"
	redisclient "github.com/angelmondragon/pos-backend/pkg/redis"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis, *redisclient.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisclient.Wrap(redislib.NewClient(&redislib.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	m, err := NewManager(client, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 720})
	require.NoError(t, err)
	return m, mr, client
}

func TestNewManagerChecksTTLs(t *testing.T) {
	_, err := NewManager(nil, config.JWTConfig{})
	require.Error(t, err)

	client := redisclient.Wrap(redislib.NewClient(&redislib.Options{Addr: "127.0.0.1:0"}))
	_, err = NewManager(client, config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 30})
	require.ErrorContains(t, err, "must exceed")
}

func TestGenerateStoresDigestWithTTL(t *testing.T) {
	ctx := context.Background()
	m, mr, client := newTestManager(t)

	token, err := m.Generate(ctx, "till-7")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	key := client.AccessSessionKey("till-7")
	stored, err := mr.Get(key)
	require.NoError(t, err)
	require.NotEqual(t, token, stored, "refresh token kept in plaintext")
	require.Equal(t, tokenDigest(token), stored)
	require.Equal(t, 12*time.Hour, mr.TTL(key))

	_, err = m.Generate(ctx, "  ")
	require.ErrorIs(t, err, errMissingAccessID)
}

func TestRotateIsSingleUse(t *testing.T) {
	ctx := context.Background()
	m, mr, client := newTestManager(t)

	token, err := m.Generate(ctx, "till-1")
	require.NoError(t, err)

	_, _, err = m.Rotate(ctx, "till-1", "not-the-token")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
	require.True(t, mr.Exists(client.AccessSessionKey("till-1")), "bad guess must not end the session")

	nextID, nextToken, err := m.Rotate(ctx, "till-1", token)
	require.NoError(t, err)
	require.NotEqual(t, "till-1", nextID)
	require.False(t, mr.Exists(client.AccessSessionKey("till-1")))

	stored, err := mr.Get(client.AccessSessionKey(nextID))
	require.NoError(t, err)
	require.Equal(t, tokenDigest(nextToken), stored)

	_, _, err = m.Rotate(ctx, "till-1", token)
	require.ErrorIs(t, err, ErrInvalidRefreshToken, "replayed refresh token")
}

func TestRevokeAndHasSession(t *testing.T) {
	ctx := context.Background()
	m, mr, _ := newTestManager(t)

	_, err := m.Generate(ctx, "till-3")
	require.NoError(t, err)

	ok, err := m.HasSession(ctx, "till-3")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, m.Revoke(ctx, "till-3"))
	ok, err = m.HasSession(ctx, "till-3")
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = m.Rotate(ctx, "till-3", "whatever")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = m.Generate(ctx, "till-4")
	require.NoError(t, err)
	mr.FastForward(13 * time.Hour)
	ok, err = m.HasSession(ctx, "till-4")
	require.NoError(t, err)
	require.False(t, ok, "session should lapse with its refresh ttl")
}
