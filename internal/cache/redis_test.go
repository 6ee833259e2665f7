package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetOrSet_NilCacheCallsThrough(t *testing.T) {
	var c *Cache
	calls := 0
	fn := func() ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	got, err := GetOrSet(context.Background(), c, "papers:all", fn)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	_, err = GetOrSet(context.Background(), c, "papers:all", fn)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, c.Delete(context.Background(), "papers:*"))
	assert.NoError(t, c.Close())
}

func TestGetOrSet_UnreachableRedisFallsBack(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := New(client, time.Minute, zap.NewNop())
	t.Cleanup(func() { _ = c.Close() })

	got, err := GetOrSet(context.Background(), c, "papers:all", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestGetOrSet_SourceErrorReturned(t *testing.T) {
	boom := errors.New("db down")
	_, err := GetOrSet(context.Background(), (*Cache)(nil), "k", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not a url", time.Minute, zap.NewNop())
	assert.Error(t, err)
}
