package service

import (
	"context"

	"github.com/weiawesome/tt-live-music-player/internal/hub"
	"github.com/weiawesome/tt-live-music-player/internal/registry"
	"github.com/weiawesome/tt-live-music-player/internal/stats"
)

// JukeboxService maps operator commands onto their sessions.
type JukeboxService interface {
	// HandleClientOpened creates the operator session for a new client.
	HandleClientOpened(ctx context.Context, client *hub.Client) error

	// HandleClientClosed destroys the client's session, releasing any claim.
	HandleClientClosed(ctx context.Context, client *hub.Client) error

	// HandleConnect subscribes the client's session to an external account.
	HandleConnect(ctx context.Context, client *hub.Client, account string) error

	// HandleDisconnect closes the client's subscription.
	HandleDisconnect(ctx context.Context, client *hub.Client, account string) error

	HandleAddSongManual(ctx context.Context, client *hub.Client, song, artist string) error
	HandleRemoveSong(ctx context.Context, client *hub.Client, index int) error
	HandleClearPlaylist(ctx context.Context, client *hub.Client) error
	HandleNextSong(ctx context.Context, client *hub.Client) error
	HandlePlaySong(ctx context.Context, client *hub.Client, index int) error
	HandleGetState(ctx context.Context, client *hub.Client) error

	// Connections returns the claimed accounts.
	Connections() registry.Snapshot

	// ConnectionOwner returns the session holding account.
	ConnectionOwner(account string) (string, bool)

	// Statistics returns the current aggregate counters.
	Statistics() stats.Statistics

	// Start starts background goroutines (statistics broadcaster).
	Start(ctx context.Context) error

	// Stop stops background goroutines and destroys every session.
	Stop() error
}
