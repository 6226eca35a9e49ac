package cache

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T) (*miniredis.Miniredis, *Coordinator) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewCoordinator(NewRedisStore(client), slog.Default())
}

func TestGetOrComputeMissThenHit(t *testing.T) {
	_, c := newTestCoordinator(t)
	ctx := context.Background()

	calls := 0
	compute := func(ctx context.Context) (string, error) {
		calls++
		return "value", nil
	}

	got, err := GetOrCompute(ctx, c, KeyPost("p1"), PostTTL, compute)
	require.NoError(t, err)
	assert.Equal(t, "value", got)
	assert.Equal(t, 1, calls)

	// Second read is served from the store unchanged.
	got, err = GetOrCompute(ctx, c, KeyPost("p1"), PostTTL, compute)
	require.NoError(t, err)
	assert.Equal(t, "value", got)
	assert.Equal(t, 1, calls)
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	_, c := newTestCoordinator(t)
	ctx := context.Background()

	boom := fmt.Errorf("source of truth down")
	_, err := GetOrCompute(ctx, c, KeyPost("p1"), PostTTL, func(ctx context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)

	// The failure must not have been stored.
	got, err := GetOrCompute(ctx, c, KeyPost("p1"), PostTTL, func(ctx context.Context) (string, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
}

func TestGetOrComputeTTLExpiry(t *testing.T) {
	mr, c := newTestCoordinator(t)
	ctx := context.Background()

	calls := 0
	compute := func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}

	_, err := GetOrCompute(ctx, c, KeyQuery("go"), QueryTTL, compute)
	require.NoError(t, err)

	mr.FastForward(QueryTTL + time.Second)

	got, err := GetOrCompute(ctx, c, KeyQuery("go"), QueryTTL, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, got, "expired entry must be recomputed")
}

// Once a local write's invalidation completes, a subsequent read must not see
// pre-write data for any invalidated key.
func TestInvalidatePostDropsItemAndListings(t *testing.T) {
	_, c := newTestCoordinator(t)
	ctx := context.Background()

	stale := func(ctx context.Context) (string, error) { return "stale", nil }
	fresh := func(ctx context.Context) (string, error) { return "fresh", nil }

	_, err := GetOrCompute(ctx, c, KeyPost("p1"), PostTTL, stale)
	require.NoError(t, err)
	for page := 1; page <= 3; page++ {
		_, err := GetOrCompute(ctx, c, KeyPostList(page, 10), ListTTL, stale)
		require.NoError(t, err)
	}
	// A key in a different namespace must survive the group delete.
	_, err = GetOrCompute(ctx, c, KeyQuery("go"), QueryTTL, stale)
	require.NoError(t, err)

	c.InvalidatePost(ctx, "p1")

	got, err := GetOrCompute(ctx, c, KeyPost("p1"), PostTTL, fresh)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)

	for page := 1; page <= 3; page++ {
		got, err := GetOrCompute(ctx, c, KeyPostList(page, 10), ListTTL, fresh)
		require.NoError(t, err)
		assert.Equal(t, "fresh", got)
	}

	got, err = GetOrCompute(ctx, c, KeyQuery("go"), QueryTTL, fresh)
	require.NoError(t, err)
	assert.Equal(t, "stale", got, "query namespace is not part of post invalidation")
}

func TestInvalidateQueries(t *testing.T) {
	_, c := newTestCoordinator(t)
	ctx := context.Background()

	stale := func(ctx context.Context) (string, error) { return "stale", nil }
	fresh := func(ctx context.Context) (string, error) { return "fresh", nil }

	for _, q := range []string{"go", "chi", "kafka"} {
		_, err := GetOrCompute(ctx, c, KeyQuery(q), QueryTTL, stale)
		require.NoError(t, err)
	}

	c.InvalidateQueries(ctx)

	for _, q := range []string{"go", "chi", "kafka"} {
		got, err := GetOrCompute(ctx, c, KeyQuery(q), QueryTTL, fresh)
		require.NoError(t, err)
		assert.Equal(t, "fresh", got)
	}
}

// Invalidation against an unreachable store is swallowed: the write path
// never fails because the cache could not be cleaned.
func TestInvalidateStoreDownIsSilent(t *testing.T) {
	mr, c := newTestCoordinator(t)
	mr.Close()

	assert.NotPanics(t, func() {
		c.InvalidatePost(context.Background(), "p1")
		c.InvalidateQueries(context.Background())
	})
}

func TestGetOrComputeStoreDownFallsThrough(t *testing.T) {
	mr, c := newTestCoordinator(t)
	mr.Close()

	got, err := GetOrCompute(context.Background(), c, KeyPost("p1"), PostTTL,
		func(ctx context.Context) (string, error) { return "computed", nil })
	require.NoError(t, err)
	assert.Equal(t, "computed", got)
}

func TestDelPrefixScansPastOneBatch(t *testing.T) {
	mr, c := newTestCoordinator(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("%s%d:10", PostListPrefix, i), "x"))
	}

	store := c.store.(*RedisStore)
	n, err := store.DelPrefix(ctx, PostListPrefix)
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	assert.Empty(t, mr.Keys())
}
