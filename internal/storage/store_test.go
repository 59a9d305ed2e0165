package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"interview_agent/internal/conversation"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession(id string) *Session {
	return &Session{
		ID: id,
		Snapshot: conversation.Snapshot{
			Turns: []conversation.Turn{{
				ID:        "t1",
				Question:  "Tell me about yourself",
				Answer:    "I'm a developer.",
				Mode:      conversation.ModeGraph,
				CreatedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
			}},
			PendingFollowUps: []string{"What keeps you motivated?"},
		},
	}
}

// exerciseStore runs the behaviour every Store must share.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()
	id := uuid.NewString()

	_, err := store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, sampleSession(id)))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "I'm a developer.", got.Snapshot.Turns[0].Answer)
	assert.Equal(t, []string{"What keeps you motivated?"}, got.Snapshot.PendingFollowUps)
	assert.False(t, got.CreatedAt.IsZero())

	token, err := store.Acquire(ctx, id)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	_, err = store.Acquire(ctx, id)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, store.Release(ctx, id, "someone-else"), ErrLockLost)
	_, err = store.Acquire(ctx, id)
	assert.ErrorIs(t, err, ErrBusy, "a wrong token must not release the lock")
	require.NoError(t, store.Release(ctx, id, token))
	assert.ErrorIs(t, store.Release(ctx, id, token), ErrLockLost)

	token, err = store.Acquire(ctx, id)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, id, token))

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, store.Save(ctx, &Session{}))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Minute))
}

func TestMemoryStoreExpiresSessions(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleSession("old")))

	now = now.Add(2 * time.Minute)
	_, err := store.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, store.Len())
}

func TestMemoryStoreSweepsOnSave(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleSession("a")))
	now = now.Add(90 * time.Second)
	require.NoError(t, store.Save(ctx, sampleSession("b")))

	assert.Equal(t, 1, store.Len())
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	store, err := NewRedisStore(context.Background(), url, time.Minute)
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)

	ctx := context.Background()
	id := uuid.NewString()
	require.NoError(t, store.Save(ctx, sampleSession(id)))
	ttl, err := store.TTL(ctx, id)
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
	require.NoError(t, store.Delete(ctx, id))
}

func newLocalRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ttl)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStoreLocalServer(t *testing.T) {
	store, _ := newLocalRedisStore(t, time.Minute)
	exerciseStore(t, store)
}

func TestRedisStoreSessionTTL(t *testing.T) {
	store, mr := newLocalRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleSession("s1")))
	ttl, err := store.TTL(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreExpiredLockCannotReleaseSuccessor(t *testing.T) {
	store, mr := newLocalRedisStore(t, time.Minute)
	store.WithLockTTL(10 * time.Second)
	ctx := context.Background()

	stale, err := store.Acquire(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, mr.TTL(store.lockKey("s1")))

	mr.FastForward(11 * time.Second)
	current, err := store.Acquire(ctx, "s1")
	require.NoError(t, err, "lock should have expired")

	assert.ErrorIs(t, store.Release(ctx, "s1", stale), ErrLockLost)
	_, err = store.Acquire(ctx, "s1")
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, store.Release(ctx, "s1", current))
	assert.False(t, mr.Exists(store.lockKey("s1")))
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "", time.Minute)
	assert.Error(t, err)

	_, err = NewRedisStore(context.Background(), "not a url", time.Minute)
	assert.Error(t, err)
}
