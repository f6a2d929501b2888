package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgCache "receiptflow/pkg/cache"
)

// fakeNXCache implements pkg/cache.Cache plus SetNX so it satisfies both
// NewDedupCache's parameter type and the unexported nxSetter assertion.
type fakeNXCache struct {
	claimed map[string]bool
	setErr  error
}

func newFakeNXCache() *fakeNXCache { return &fakeNXCache{claimed: make(map[string]bool)} }

func (f *fakeNXCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	if f.claimed[key] {
		return false, nil
	}
	f.claimed[key] = true
	return true, nil
}

func (f *fakeNXCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) { return false, nil }
func (f *fakeNXCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}
func (f *fakeNXCache) Delete(ctx context.Context, keys ...string) error        { return nil }
func (f *fakeNXCache) Ping(ctx context.Context) error                          { return nil }
func (f *fakeNXCache) DeletePattern(ctx context.Context, pattern string) error { return nil }
func (f *fakeNXCache) Increment(ctx context.Context, key string) (int64, error) { return 0, nil }
func (f *fakeNXCache) Exists(ctx context.Context, key string) (bool, error)     { return false, nil }
func (f *fakeNXCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}
func (f *fakeNXCache) TTL(ctx context.Context, key string) (time.Duration, error) { return 0, nil }

var _ pkgCache.Cache = (*fakeNXCache)(nil)

func TestNewDedupCacheRejectsUnsupportedImplementation(t *testing.T) {
	_, err := NewDedupCache(unsupportedCache{}, time.Hour)
	assert.Error(t, err)
}

type unsupportedCache struct{}

func (unsupportedCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	return false, nil
}
func (unsupportedCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}
func (unsupportedCache) Delete(ctx context.Context, keys ...string) error        { return nil }
func (unsupportedCache) Ping(ctx context.Context) error                          { return nil }
func (unsupportedCache) DeletePattern(ctx context.Context, pattern string) error { return nil }
func (unsupportedCache) Increment(ctx context.Context, key string) (int64, error) { return 0, nil }
func (unsupportedCache) Exists(ctx context.Context, key string) (bool, error)     { return false, nil }
func (unsupportedCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}
func (unsupportedCache) TTL(ctx context.Context, key string) (time.Duration, error) { return 0, nil }

func TestSeenWebhookDeduplicates(t *testing.T) {
	fake := newFakeNXCache()
	dc, err := NewDedupCache(fake, time.Hour)
	require.NoError(t, err)

	ctx := context.Background()

	seen, err := dc.SeenWebhook(ctx, "evt_123")
	require.NoError(t, err)
	assert.False(t, seen, "first delivery claims the key and is not a duplicate")

	seen, err = dc.SeenWebhook(ctx, "evt_123")
	require.NoError(t, err)
	assert.True(t, seen, "a second delivery of the same webhook id is a duplicate")

	seen, err = dc.SeenWebhook(ctx, "evt_456")
	require.NoError(t, err)
	assert.False(t, seen, "a different webhook id claims its own key")
}

func TestSeenWebhookPropagatesSetNXError(t *testing.T) {
	fake := newFakeNXCache()
	fake.setErr = errors.New("redis unavailable")
	dc, err := NewDedupCache(fake, time.Hour)
	require.NoError(t, err)

	_, err = dc.SeenWebhook(context.Background(), "evt_789")
	assert.Error(t, err)
}
