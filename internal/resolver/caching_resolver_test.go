package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	calls atomic.Int32
	gate  chan struct{}
	media Media
	err   error
}

func (r *countingResolver) Resolve(ctx context.Context, song, artist string) (Media, error) {
	r.calls.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	return r.media, r.err
}

type memoryCache struct {
	mu       sync.Mutex
	items    map[string]Media
	notFound map[string]bool
	getErr   error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string]Media{}, notFound: map[string]bool{}}
}

func (c *memoryCache) Get(ctx context.Context, key string) (Media, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return Media{}, c.getErr
	}
	if c.notFound[key] {
		return Media{}, ErrNotFound
	}
	m, ok := c.items[key]
	if !ok {
		return Media{}, ErrCacheMiss
	}
	return m, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, media Media, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = media
	return nil
}

func (c *memoryCache) SetNotFound(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notFound[key] = true
	return nil
}

func (c *memoryCache) Close() error { return nil }

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok || c.notFound[key]
}

func TestCachingResolver_CachesHits(t *testing.T) {
	req := require.New(t)
	next := &countingResolver{media: Media{ID: "abc"}}
	cache := newMemoryCache()
	r := NewCachingResolver(next, cache, time.Hour, time.Minute)

	media, err := r.Resolve(context.Background(), "Despacito", "")
	req.NoError(err)
	req.Equal("abc", media.ID)
	req.Eventually(func() bool { return cache.has("despacito|") }, time.Second, 5*time.Millisecond)

	media, err = r.Resolve(context.Background(), "despacito ", "")
	req.NoError(err)
	req.Equal("abc", media.ID)
	req.Equal(int32(1), next.calls.Load())
}

func TestCachingResolver_CachesMisses(t *testing.T) {
	req := require.New(t)
	next := &countingResolver{err: ErrNotFound}
	cache := newMemoryCache()
	r := NewCachingResolver(next, cache, time.Hour, time.Minute)

	_, err := r.Resolve(context.Background(), "nothing", "nobody")
	req.ErrorIs(err, ErrNotFound)
	req.Eventually(func() bool { return cache.has("nothing|nobody") }, time.Second, 5*time.Millisecond)

	_, err = r.Resolve(context.Background(), "nothing", "nobody")
	req.ErrorIs(err, ErrNotFound)
	req.Equal(int32(1), next.calls.Load())
}

func TestCachingResolver_DoesNotCacheErrors(t *testing.T) {
	req := require.New(t)
	next := &countingResolver{err: errors.New("boom")}
	cache := newMemoryCache()
	r := NewCachingResolver(next, cache, time.Hour, time.Minute)

	_, err := r.Resolve(context.Background(), "song", "")
	req.EqualError(err, "boom")
	_, err = r.Resolve(context.Background(), "song", "")
	req.EqualError(err, "boom")
	req.Equal(int32(2), next.calls.Load())
}

func TestCachingResolver_BypassesBrokenCache(t *testing.T) {
	next := &countingResolver{media: Media{ID: "abc"}}
	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")
	r := NewCachingResolver(next, cache, time.Hour, time.Minute)

	media, err := r.Resolve(context.Background(), "song", "")
	require.NoError(t, err)
	require.Equal(t, "abc", media.ID)
}

func TestCachingResolver_CollapsesConcurrentRequests(t *testing.T) {
	req := require.New(t)
	next := &countingResolver{media: Media{ID: "abc"}, gate: make(chan struct{})}
	r := NewCachingResolver(next, nil, time.Hour, time.Minute)

	const n = 10
	var wg sync.WaitGroup
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			media, err := r.Resolve(context.Background(), "song", "artist")
			if err == nil {
				results <- media.ID
			}
		}()
	}
	req.Eventually(func() bool { return next.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(next.gate)
	wg.Wait()
	close(results)

	count := 0
	for id := range results {
		req.Equal("abc", id)
		count++
	}
	req.Equal(n, count)
	req.Equal(int32(1), next.calls.Load())
}

func TestCachingResolver_CallerCancellation(t *testing.T) {
	next := &countingResolver{media: Media{ID: "abc"}, gate: make(chan struct{})}
	defer close(next.gate)
	r := NewCachingResolver(next, nil, time.Hour, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, "song", "")
	require.ErrorIs(t, err, context.Canceled)
}
