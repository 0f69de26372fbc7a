package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jack/golang-campaign-redirect-service/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *RedisRepository {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return NewRedisRepositoryFromClient(client, "test")
}

func TestRedisPendingClicks(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRedis(t)

	total, err := repo.Add(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	total, err = repo.Add(ctx, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	_, err = repo.Add(ctx, 9, 1)
	require.NoError(t, err)

	snap, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{7: 3, 9: 1}, snap)

	n, err := repo.Get(ctx, 42)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisCommitKeepsClicksArrivedDuringFlush(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRedis(t)

	_, err := repo.Add(ctx, 1, 5)
	require.NoError(t, err)

	batch, err := repo.Begin(ctx, 1, "flush-a")
	require.NoError(t, err)
	assert.Equal(t, cache.FlushBatch{URLID: 1, Token: "flush-a", Clicks: 5}, batch)

	// Increment lands between the begin and the commit.
	total, err := repo.Add(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)

	require.NoError(t, repo.Commit(ctx, batch))

	n, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	batch, err = repo.Begin(ctx, 1, "flush-b")
	require.NoError(t, err)
	require.NoError(t, repo.Commit(ctx, batch))
	snap, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestRedisUncommittedBatchIsHandedOutAgain(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRedis(t)

	_, err := repo.Add(ctx, 4, 3)
	require.NoError(t, err)
	first, err := repo.Begin(ctx, 4, "flush-a")
	require.NoError(t, err)

	_, err = repo.Add(ctx, 4, 1)
	require.NoError(t, err)
	snap, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{4: 4}, snap)

	// a restarted instance sees the same batch and token
	restarted := NewRedisRepositoryFromClient(repo.Client(), "test")
	again, err := restarted.Begin(ctx, 4, "flush-b")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, repo.Commit(ctx, cache.FlushBatch{URLID: 4, Token: "flush-b"}))
	n, err := repo.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	require.NoError(t, repo.Commit(ctx, again))
	n, err = repo.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	empty, err := repo.Begin(ctx, 99, "flush-c")
	require.NoError(t, err)
	assert.Zero(t, empty.Clicks)
}

func TestRedisDiscard(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRedis(t)

	_, err := repo.Add(ctx, 3, 4)
	require.NoError(t, err)
	_, err = repo.Begin(ctx, 3, "flush-a")
	require.NoError(t, err)
	_, err = repo.Add(ctx, 3, 1)
	require.NoError(t, err)
	require.NoError(t, repo.Discard(ctx, 3))

	n, err := repo.Get(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisPendingKeyIsPerInstance(t *testing.T) {
	ctx := context.Background()
	a := setupTestRedis(t)
	b := NewRedisRepositoryFromClient(a.Client(), "other")

	_, err := a.Add(ctx, 1, 1)
	require.NoError(t, err)

	snap, err := b.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap)
}
