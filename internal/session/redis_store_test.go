package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr:     mr.Addr(),
		Protocol: 2,
	})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func testSession(id string, ttl time.Duration) Session {
	now := time.Now()
	return Session{
		SessionID:     id,
		Subject:       "u1",
		Email:         "u1@example.com",
		EmailVerified: true,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
}

func TestRedisStore_CreateGetDelete(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSession("s1", time.Hour)))
	assert.True(t, mr.Exists("session:s1"))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL("session:s1").Seconds(), 5)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.Subject)
	assert.Equal(t, "u1@example.com", got.Email)
	assert.True(t, got.EmailVerified)

	require.NoError(t, store.Delete(ctx, "s1"))
	got, err = store.Get(ctx, "s1")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_CreateRejectsInvalid(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	err := store.Create(ctx, Session{SessionID: "s1"})
	assert.ErrorIs(t, err, ErrInvalidSession)

	err = store.Create(ctx, testSession("s1", -time.Minute))
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRedisStore_UpdateExpiredDeletes(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSession("s1", time.Hour)))

	expired := testSession("s1", -time.Second)
	require.NoError(t, store.Update(ctx, expired))

	assert.False(t, mr.Exists("session:s1"))
}

func TestRedisStore_GetCorrupt(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client)

	require.NoError(t, mr.Set("session:bad", "{not json"))

	_, err := store.Get(context.Background(), "bad")
	assert.ErrorContains(t, err, "unmarshal")
}

func TestSession_Principal(t *testing.T) {
	s := testSession("s1", time.Hour)
	p := s.Principal()

	assert.Equal(t, "u1", p.Subject)
	assert.Equal(t, "u1@example.com", p.Email)
	assert.True(t, p.EmailVerified)
	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.Expired(s.ExpiresAt))
}

func TestGenerateID(t *testing.T) {
	a, err := GenerateID()
	require.NoError(t, err)
	b, err := GenerateID()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
