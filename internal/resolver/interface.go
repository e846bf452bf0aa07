package resolver

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("no matching media")
	ErrCacheMiss = errors.New("cache miss")
)

// Media is a resolved playable item.
type Media struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Channel string `json:"channel"`
}

// Resolver maps a song request to a playable media item.
// artist may be empty. Implementations return ErrNotFound when nothing matches.
type Resolver interface {
	Resolve(ctx context.Context, song, artist string) (Media, error)
}

// Cache stores resolver outcomes. Get returns ErrCacheMiss when the key is
// absent and ErrNotFound when a miss was cached.
type Cache interface {
	Get(ctx context.Context, key string) (Media, error)
	Set(ctx context.Context, key string, media Media, ttl time.Duration) error
	SetNotFound(ctx context.Context, key string, ttl time.Duration) error
	Close() error
}

// ThumbnailURL returns the medium-quality thumbnail for a media id.
func ThumbnailURL(mediaID string) string {
	return "https://img.youtube.com/vi/" + mediaID + "/mqdefault.jpg"
}
