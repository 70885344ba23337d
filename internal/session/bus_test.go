package session

import (
	"context"
	"testing"
	"time"

	"identity-gate/internal/identity"
	"identity-gate/internal/profile"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noProfiles struct{}

func (noProfiles) Get(context.Context, string) (*profile.Profile, error) {
	return nil, nil
}

func collect(t *testing.T, src identity.SessionSource) (<-chan *identity.Session, func()) {
	t.Helper()
	events := make(chan *identity.Session, 16)
	dispose, err := src.OnSessionChange(func(s *identity.Session) {
		events <- s
	})
	require.NoError(t, err)
	t.Cleanup(dispose)
	return events, dispose
}

func next(t *testing.T, events <-chan *identity.Session) *identity.Session {
	t.Helper()
	select {
	case s := <-events:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session event")
		return nil
	}
}

func TestSource_DeliversStoredSessionFirst(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisStore(client)
	bus := NewBus(client, store)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSession("s1", time.Hour)))

	events, _ := collect(t, bus.Source("s1"))

	first := next(t, events)
	require.NotNil(t, first)
	assert.Equal(t, "u1", first.Subject)
}

func TestSource_UnknownSessionIsSignedOut(t *testing.T) {
	_, client := newTestRedis(t)
	bus := NewBus(client, NewRedisStore(client))

	events, _ := collect(t, bus.Source("missing"))

	assert.Nil(t, next(t, events))
}

func TestSource_RelaysPublishedTransitions(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisStore(client)
	bus := NewBus(client, store)
	ctx := context.Background()

	events, _ := collect(t, bus.Source("s1"))
	assert.Nil(t, next(t, events))

	sess := testSession("s1", time.Hour)
	require.NoError(t, store.Create(ctx, sess))
	require.NoError(t, bus.PublishSignedIn(ctx, sess))

	signedIn := next(t, events)
	require.NotNil(t, signedIn)
	assert.Equal(t, "u1", signedIn.Subject)

	require.NoError(t, bus.Source("s1").SignOut(ctx))
	assert.Nil(t, next(t, events))

	got, err := store.Get(ctx, "s1")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestSource_ExpiryIsSignOut(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisStore(client)
	bus := NewBus(client, store)

	require.NoError(t, store.Create(context.Background(), testSession("s1", 300*time.Millisecond)))

	events, _ := collect(t, bus.Source("s1"))

	require.NotNil(t, next(t, events))
	assert.Nil(t, next(t, events))
}

func TestSource_NoDeliveryAfterDispose(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisStore(client)
	bus := NewBus(client, store)
	ctx := context.Background()

	events, dispose := collect(t, bus.Source("s1"))
	assert.Nil(t, next(t, events))

	dispose()
	dispose()

	require.NoError(t, bus.PublishSignedIn(ctx, testSession("s1", time.Hour)))

	select {
	case s := <-events:
		t.Fatalf("unexpected event after dispose: %+v", s)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSource_RegistrationFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), Protocol: 2})
	defer client.Close()
	bus := NewBus(client, NewRedisStore(client))

	mr.Close()

	_, err = bus.Source("s1").OnSessionChange(func(*identity.Session) {})
	assert.ErrorContains(t, err, "session: subscribe")
}

func TestSource_DrivesResolver(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisStore(client)
	bus := NewBus(client, store)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSession("s1", time.Hour)))

	r := identity.NewResolver(bus.Source("s1"), noProfiles{})
	stop, err := r.Start()
	require.NoError(t, err)
	defer stop()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	snap, err := r.Wait(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, identity.StateSignedIn, snap.State())

	require.NoError(t, r.SignOut(ctx))

	assert.Eventually(t, func() bool {
		return r.Snapshot().State() == identity.StateSignedOut
	}, 2*time.Second, 10*time.Millisecond)
}
