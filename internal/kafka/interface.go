package kafka

import (
	"context"

	"github.com/weiawesome/tt-live-music-player/internal/domain"
)

// SongRequestProducer exports resolved song requests for downstream consumers.
// Produce is fire-and-forget; delivery failures are only logged.
type SongRequestProducer interface {
	ProduceSongRequest(ctx context.Context, event *domain.SongRequestEvent) error
	Close() error
}
