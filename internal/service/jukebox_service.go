package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/weiawesome/tt-live-music-player/internal/domain"
	"github.com/weiawesome/tt-live-music-player/internal/hub"
	"github.com/weiawesome/tt-live-music-player/internal/registry"
	"github.com/weiawesome/tt-live-music-player/internal/session"
	"github.com/weiawesome/tt-live-music-player/internal/stats"
	"github.com/weiawesome/tt-live-music-player/pkg/log"
)

var ErrSessionNotFound = errors.New("session not found")

// changeDebounce groups bursts of statistics changes into one broadcast.
const changeDebounce = 250 * time.Millisecond

// Transport is the outbound side of the hub.
type Transport interface {
	SendToClient(clientID string, message interface{}) error
	Broadcast(message interface{}) error
}

type Config struct {
	Session           session.Options
	BroadcastInterval time.Duration
}

type jukeboxService struct {
	transport Transport
	registry  *registry.Registry
	stats     *stats.Aggregator
	deps      session.Dependencies
	cfg       Config

	sessions map[string]*session.Session // clientID -> session
	mu       sync.RWMutex

	changed chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewJukeboxService wires sessions to the shared registry, router and statistics.
// deps.Publisher and deps.Streak are filled in from transport and agg.
func NewJukeboxService(
	transport Transport,
	reg *registry.Registry,
	agg *stats.Aggregator,
	deps session.Dependencies,
	cfg Config,
) JukeboxService {
	deps.Claims = reg
	deps.Publisher = transport
	deps.Streak = agg

	s := &jukeboxService{
		transport: transport,
		registry:  reg,
		stats:     agg,
		deps:      deps,
		cfg:       cfg,
		sessions:  make(map[string]*session.Session),
		changed:   make(chan struct{}, 1),
	}
	agg.OnChange(s.markChanged)
	return s
}

func (s *jukeboxService) HandleClientOpened(ctx context.Context, c *hub.Client) error {
	sess := session.New(context.Background(), c.ID, s.deps, s.cfg.Session)

	s.mu.Lock()
	old := s.sessions[c.ID]
	s.sessions[c.ID] = sess
	s.mu.Unlock()

	if old != nil {
		old.Destroy()
	}

	l := log.Ctx(ctx)
	l.Info().Str(log.FieldSessionID, c.ID).Msg("operator session opened")

	sess.SendState(s.stats.Snapshot())
	return nil
}

func (s *jukeboxService) HandleClientClosed(ctx context.Context, c *hub.Client) error {
	s.mu.Lock()
	sess, ok := s.sessions[c.ID]
	delete(s.sessions, c.ID)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	sess.Destroy()
	return nil
}

func (s *jukeboxService) HandleConnect(ctx context.Context, c *hub.Client, account string) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	l := log.Ctx(log.WithAccount(ctx, domain.NormalizeAccount(account)))
	l.Debug().Msg("connect requested")

	sess.Connect(account)
	return nil
}

func (s *jukeboxService) HandleDisconnect(ctx context.Context, c *hub.Client, account string) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	sess.Disconnect(account)
	return nil
}

func (s *jukeboxService) HandleAddSongManual(ctx context.Context, c *hub.Client, song, artist string) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	sess.AddManual(song, artist)
	return nil
}

func (s *jukeboxService) HandleRemoveSong(ctx context.Context, c *hub.Client, index int) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	sess.RemoveSong(index)
	return nil
}

func (s *jukeboxService) HandleClearPlaylist(ctx context.Context, c *hub.Client) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	sess.ClearPlaylist()
	return nil
}

func (s *jukeboxService) HandleNextSong(ctx context.Context, c *hub.Client) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	sess.NextSong()
	return nil
}

func (s *jukeboxService) HandlePlaySong(ctx context.Context, c *hub.Client, index int) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	sess.PlaySong(index)
	return nil
}

func (s *jukeboxService) HandleGetState(ctx context.Context, c *hub.Client) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	sess.SendState(s.stats.Snapshot())
	return nil
}

func (s *jukeboxService) Connections() registry.Snapshot {
	return s.registry.Snapshot()
}

func (s *jukeboxService) ConnectionOwner(account string) (string, bool) {
	return s.registry.Owner(account)
}

func (s *jukeboxService) Statistics() stats.Statistics {
	return s.stats.Snapshot()
}

func (s *jukeboxService) session(c *hub.Client) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[c.ID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *jukeboxService) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.broadcastLoop(ctx)
	return nil
}

func (s *jukeboxService) Stop() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}

	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session.Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Destroy()
	}
	return nil
}

func (s *jukeboxService) markChanged() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// broadcastLoop pushes statistics to every client periodically and shortly
// after any change.
func (s *jukeboxService) broadcastLoop(ctx context.Context) {
	defer close(s.done)

	interval := s.cfg.BroadcastInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.changed:
			select {
			case <-ctx.Done():
				return
			case <-time.After(changeDebounce):
			}
			// Changes during the debounce window are covered by this broadcast.
			select {
			case <-s.changed:
			default:
			}
		}
		s.broadcastStatistics()
	}
}

func (s *jukeboxService) broadcastStatistics() {
	msg := &domain.Envelope{Type: domain.MsgTypeStatistics, Data: s.stats.Snapshot()}
	if err := s.transport.Broadcast(msg); err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("failed to broadcast statistics")
	}
}
