// Package session implements the per-operator actor that owns a playlist,
// a comment buffer and at most one upstream subscription.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/weiawesome/tt-live-music-player/internal/audit"
	"github.com/weiawesome/tt-live-music-player/internal/comments"
	"github.com/weiawesome/tt-live-music-player/internal/domain"
	"github.com/weiawesome/tt-live-music-player/internal/playlist"
	"github.com/weiawesome/tt-live-music-player/internal/registry"
	"github.com/weiawesome/tt-live-music-player/internal/router"
	"github.com/weiawesome/tt-live-music-player/internal/upstream"
	"github.com/weiawesome/tt-live-music-player/pkg/log"
)

// Publisher delivers a message to one transport client.
type Publisher interface {
	SendToClient(clientID string, message interface{}) error
}

// Streak is the statistics hook for clearing a playlist.
type Streak interface {
	ResetStreak()
}

type Options struct {
	CommentCapacity  int
	MailboxWarnDepth int
}

// Dependencies shared by every session.
type Dependencies struct {
	Claims    upstream.Claims
	Connector upstream.Connector
	Router    *router.Router
	Publisher Publisher
	Streak    Streak
}

// Session is an OperatorSession. All state below the mailbox is touched only
// by the actor goroutine.
type Session struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	publisher Publisher
	router    *router.Router
	streak    Streak
	warnDepth int

	mbox     *mailbox
	alive    atomic.Bool
	done     chan struct{}
	destroy  sync.Once
	sub      *upstream.Subscription
	comments *comments.Buffer
	playlist *playlist.Store
}

// New creates a session and starts its actor.
func New(parent context.Context, id string, deps Dependencies, opts Options) *Session {
	ctx, cancel := context.WithCancel(log.WithSession(parent, id))
	s := &Session{
		id:        id,
		ctx:       ctx,
		cancel:    cancel,
		publisher: deps.Publisher,
		router:    deps.Router,
		streak:    deps.Streak,
		warnDepth: opts.MailboxWarnDepth,
		mbox:      newMailbox(),
		done:      make(chan struct{}),
		comments:  comments.NewBuffer(opts.CommentCapacity),
		playlist:  playlist.NewStore(),
	}
	s.sub = upstream.NewSubscription(id, deps.Claims, deps.Connector, s)
	s.alive.Store(true)

	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.mbox.signal:
			for _, task := range s.mbox.take() {
				if !s.alive.Load() {
					return
				}
				task()
			}
		}
	}
}

// post schedules fn on the actor. It reports false once the session is destroyed.
func (s *Session) post(fn func()) bool {
	depth, ok := s.mbox.post(fn)
	if ok && s.warnDepth > 0 && depth == s.warnDepth {
		l := log.Ctx(s.ctx)
		l.Warn().Int("depth", depth).Msg("session mailbox backlog")
	}
	return ok
}

// Destroy tears the session down: the claim is released and the subscription
// closed before Destroy returns. It must not be called from the actor.
func (s *Session) Destroy() {
	s.destroy.Do(func() {
		s.alive.Store(false)
		s.mbox.close()
		s.cancel()
		<-s.done

		// The actor has stopped, so nothing can Open after this Close.
		account, closed := s.sub.Close()

		s.comments.Clear()
		s.playlist.Clear()

		if closed {
			audit.LogAccount(s.ctx, audit.ActionSessionClosed, s.id, account, "", "session closed with active subscription")
		} else {
			audit.Log(s.ctx, audit.ActionSessionClosed, s.id, "session closed")
		}
	})
}

// Alive reports whether the session has not been destroyed.
func (s *Session) Alive() bool {
	return s.alive.Load()
}

// Account returns the account of the active subscription, if any.
func (s *Session) Account() string {
	return s.sub.Account()
}

// router.Session implementation. These run on the actor.

func (s *Session) ID() string                 { return s.id }
func (s *Session) Context() context.Context   { return s.ctx }
func (s *Session) Comments() *comments.Buffer { return s.comments }
func (s *Session) Playlist() *playlist.Store  { return s.playlist }

func (s *Session) Emit(msgType string, payload interface{}) {
	s.send(&domain.Envelope{Type: msgType, Data: payload})
}

func (s *Session) send(message interface{}) {
	if !s.alive.Load() {
		return
	}
	if err := s.publisher.SendToClient(s.id, message); err != nil {
		l := log.Ctx(s.ctx)
		l.Warn().Err(err).Msg("failed to send to client")
	}
}

func (s *Session) Go(task func(ctx context.Context) func()) {
	ctx := s.ctx
	go func() {
		apply := task(ctx)
		if apply == nil {
			return
		}
		s.post(func() {
			if s.alive.Load() {
				apply()
			}
		})
	}()
}

// Operator commands. Each is queued onto the actor and returns immediately.

func (s *Session) Connect(rawAccount string) {
	s.post(func() { s.connect(rawAccount) })
}

// Disconnect closes the subscription. A non-empty account must match the
// current subscription; otherwise nothing happens.
func (s *Session) Disconnect(account string) {
	s.post(func() { s.disconnect(domain.NormalizeAccount(account)) })
}

func (s *Session) AddManual(song, artist string) {
	s.post(func() {
		s.router.AddManual(s, s.sub.Account(), song, artist)
	})
}

func (s *Session) RemoveSong(index int) {
	s.post(func() {
		removed, err := s.playlist.Remove(index)
		if err != nil {
			s.send(domain.NewErrorMessage(domain.ErrCodeBadRequest, err.Error()))
			return
		}
		audit.LogAccount(s.ctx, audit.ActionSongRemoved, s.id, s.sub.Account(), removed.Title, "song removed")
		s.Emit(domain.MsgTypePlaylistUpdated, s.playlist.Snapshot())
	})
}

func (s *Session) ClearPlaylist() {
	s.post(func() {
		s.playlist.Clear()
		if s.streak != nil {
			s.streak.ResetStreak()
		}
		audit.Log(s.ctx, audit.ActionClearPlaylist, s.id, "playlist cleared")
		s.Emit(domain.MsgTypePlaylistUpdated, s.playlist.Snapshot())
	})
}

func (s *Session) NextSong() {
	s.post(func() {
		if _, ok := s.playlist.Advance(); !ok {
			return
		}
		s.Emit(domain.MsgTypePlaylistUpdated, s.playlist.Snapshot())
		s.Emit(domain.MsgTypePlayNext, nil)
	})
}

func (s *Session) PlaySong(index int) {
	s.post(func() {
		if _, err := s.playlist.Select(index); err != nil {
			s.send(domain.NewErrorMessage(domain.ErrCodeBadRequest, err.Error()))
			return
		}
		s.Emit(domain.MsgTypePlaylistUpdated, s.playlist.Snapshot())
	})
}

// SendState re-sends status, playlist and comments, followed by statistics when non-nil.
func (s *Session) SendState(statistics interface{}) {
	s.post(func() {
		s.Emit(domain.MsgTypeStatus, s.status())
		s.Emit(domain.MsgTypePlaylistUpdated, s.playlist.Snapshot())
		s.Emit(domain.MsgTypeCommentsUpdated, s.comments.Items())
		if statistics != nil {
			s.Emit(domain.MsgTypeStatistics, statistics)
		}
	})
}

func (s *Session) connect(rawAccount string) {
	account := domain.NormalizeAccount(rawAccount)
	if account == "" {
		s.Emit(domain.MsgTypeStreamError, domain.StreamErrorPayload{
			Error: "account is required",
			Code:  domain.ErrCodeBadRequest,
		})
		return
	}

	_, err := s.sub.Open(s.ctx, account)
	if err != nil {
		s.Emit(domain.MsgTypeStreamError, streamError(account, err))
		audit.LogAccount(s.ctx, audit.ActionClaimRejected, s.id, account, err.Error(), "connect rejected")
		return
	}

	audit.LogAccount(s.ctx, audit.ActionConnect, s.id, account, "", "connecting to stream")
	s.Emit(domain.MsgTypeStatus, s.status())
}

func (s *Session) disconnect(account string) {
	current := s.sub.Account()
	if current == "" || (account != "" && account != current) {
		return
	}

	closed, ok := s.sub.Close()
	if !ok {
		return
	}
	audit.LogAccount(s.ctx, audit.ActionDisconnect, s.id, closed, "", "disconnected from stream")
	s.afterClose(closed)
}

// afterClose drops the account's comments and tells the operator.
func (s *Session) afterClose(account string) {
	// A reconnect to the same account keeps its comments.
	if s.sub.Account() != account {
		s.comments.RemoveSource(account)
	}
	s.Emit(domain.MsgTypeStatus, s.status())
	s.Emit(domain.MsgTypeCommentsUpdated, s.comments.Items())
	s.Emit(domain.MsgTypeDisconnected, domain.AccountPayload{Account: account})
}

func (s *Session) status() domain.StatusPayload {
	state := s.sub.State()
	status := domain.StatusPayload{
		IsConnected:    state == upstream.StateLive,
		ConnectedUsers: []string{},
		CommentsCount:  s.comments.Len(),
		State:          state.String(),
	}
	if status.IsConnected {
		status.ConnectedUsers = append(status.ConnectedUsers, s.sub.Account())
		status.TotalConnections = 1
	}
	return status
}

// streamError maps subscription errors onto the wire error codes.
func streamError(account string, err error) domain.StreamErrorPayload {
	var (
		conflict *registry.ClaimConflictError
		limit    *upstream.SessionLimitError
	)
	switch {
	case errors.As(err, &conflict):
		return domain.StreamErrorPayload{
			Error: fmt.Sprintf("@%s is already connected by another user. Please try a different account.", account),
			Code:  domain.ErrCodeAlreadyConnected,
		}
	case errors.As(err, &limit):
		return domain.StreamErrorPayload{
			Error: fmt.Sprintf("You can only connect to 1 account at a time. Currently connected to @%s. Please disconnect first.",
				limit.Current),
			Code:              domain.ErrCodeSingleConnectionLimit,
			CurrentConnection: limit.Current,
		}
	default:
		return domain.StreamErrorPayload{Error: err.Error()}
	}
}

// upstream.Handler implementation. Callbacks arrive on subscription goroutines
// and are re-checked against the generation once they reach the actor.

func (s *Session) OnConnected(gen uint64, account string) {
	s.post(func() {
		if !s.sub.Accepts(gen) {
			return
		}
		s.Emit(domain.MsgTypeStatus, s.status())
		s.Emit(domain.MsgTypeConnected, domain.AccountPayload{Account: account})
	})
}

func (s *Session) OnEvent(gen uint64, account string, ev upstream.Event) {
	s.post(func() {
		if !s.sub.Accepts(gen) {
			return
		}
		if ev.Kind == upstream.EventChat && ev.Chat != nil {
			s.router.Ingest(s, account, ev.Chat)
			return
		}
		s.router.Forward(s, account, ev)
	})
}

// OnClosed is applied even when a newer subscription has started since gen
// ended; the operator still learns that account went away.
func (s *Session) OnClosed(gen uint64, account string, err error) {
	s.post(func() {
		if err != nil {
			var connectErr *upstream.ConnectError
			msg := err.Error()
			if !errors.As(err, &connectErr) {
				msg = fmt.Sprintf("@%s: %v", account, err)
			}
			s.Emit(domain.MsgTypeStreamError, domain.StreamErrorPayload{Error: msg})
		}
		s.afterClose(account)
	})
}
