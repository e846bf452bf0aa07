package resolver

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/tt-live-music-player/pkg/log"
)

const cacheWriteTimeout = 3 * time.Second

// CachingResolver collapses concurrent identical requests and consults a cache
// before calling the wrapped Resolver. Cache failures are logged and bypassed.
type CachingResolver struct {
	next        Resolver
	cache       Cache
	ttl         time.Duration
	negativeTTL time.Duration
	sf          singleflight.Group
}

// NewCachingResolver wraps next. cache may be nil, leaving only request collapsing.
func NewCachingResolver(next Resolver, cache Cache, ttl, negativeTTL time.Duration) *CachingResolver {
	return &CachingResolver{
		next:        next,
		cache:       cache,
		ttl:         ttl,
		negativeTTL: negativeTTL,
	}
}

func cacheKey(song, artist string) string {
	return strings.ToLower(strings.TrimSpace(song)) + "|" + strings.ToLower(strings.TrimSpace(artist))
}

func (r *CachingResolver) Resolve(ctx context.Context, song, artist string) (Media, error) {
	key := cacheKey(song, artist)

	// The shared call outlives any single caller; each caller still honours its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := r.sf.DoChan(key, func() (interface{}, error) {
		return r.resolve(shared, key, song, artist)
	})

	select {
	case <-ctx.Done():
		return Media{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Media{}, res.Err
		}
		return res.Val.(Media), nil
	}
}

func (r *CachingResolver) resolve(ctx context.Context, key, song, artist string) (Media, error) {
	l := log.Ctx(ctx)

	if r.cache != nil {
		cached, err := r.cache.Get(ctx, key)
		switch {
		case err == nil:
			return cached, nil
		case errors.Is(err, ErrNotFound):
			return Media{}, ErrNotFound
		case !errors.Is(err, ErrCacheMiss):
			l.Warn().Err(err).Msg("resolver cache get error")
		}
	}

	media, err := r.next.Resolve(ctx, song, artist)
	switch {
	case err == nil:
		r.asyncCacheSet(key, &media)
	case errors.Is(err, ErrNotFound):
		r.asyncCacheSet(key, nil)
	}
	return media, err
}

// asyncCacheSet stores media, or a miss when media is nil.
func (r *CachingResolver) asyncCacheSet(key string, media *Media) {
	if r.cache == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()

		var err error
		if media != nil {
			err = r.cache.Set(ctx, key, *media, r.ttl)
		} else {
			err = r.cache.SetNotFound(ctx, key, r.negativeTTL)
		}
		if err != nil {
			l := log.L()
			l.Warn().Err(err).Str("key", key).Msg("resolver cache set error")
		}
	}()
}
