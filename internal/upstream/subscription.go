// Package upstream manages one session's connection to an external live stream.
package upstream

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/weiawesome/tt-live-music-player/internal/registry"
	"github.com/weiawesome/tt-live-music-player/pkg/log"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateLive
	StateDisconnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) Active() bool {
	return s == StateConnecting || s == StateLive
}

// Subscription is the per-session connection state machine. It can be reopened
// after reaching a terminal state; every Open and Close bumps the generation so
// callbacks from a previous attempt are recognised and dropped.
//
// Lock order: Subscription.mu before the registry lock.
type Subscription struct {
	mu         sync.Mutex
	owner      string
	claims     Claims
	connector  Connector
	handler    Handler
	account    string
	state      State
	generation uint64
	cancel     context.CancelFunc
	conn       Conn
}

func NewSubscription(owner string, claims Claims, connector Connector, handler Handler) *Subscription {
	return &Subscription{
		owner:     owner,
		claims:    claims,
		connector: connector,
		handler:   handler,
	}
}

// Open claims account and starts connecting in the background. It returns the
// generation of the new attempt, a *registry.ClaimConflictError when another
// session owns the account, or a *SessionLimitError when this subscription is active.
func (s *Subscription) Open(ctx context.Context, account string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.claims.Owner(account); ok {
		return 0, &registry.ClaimConflictError{Account: account, Owner: owner}
	}
	if s.state.Active() {
		return 0, &SessionLimitError{Current: s.account}
	}
	if err := s.claims.Acquire(account, s.owner); err != nil {
		return 0, err
	}

	s.generation++
	s.account = account
	s.state = StateConnecting
	s.conn = nil

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.run(runCtx, s.generation, account)
	return s.generation, nil
}

// Close tears down an active subscription and releases its claim. It returns the
// account that was closed; calling it again, or on an idle subscription, does nothing.
func (s *Subscription) Close() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Active() {
		return "", false
	}
	s.generation++
	return s.teardownLocked(StateDisconnected), true
}

// Accepts reports whether a callback from gen should still be applied.
func (s *Subscription) Accepts(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation && s.state.Active()
}

// Generation returns the current generation token.
func (s *Subscription) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Account returns the account of the active subscription, or "" when idle or terminal.
func (s *Subscription) Account() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Active() {
		return ""
	}
	return s.account
}

func (s *Subscription) teardownLocked(state State) string {
	s.state = state
	s.claims.Release(s.account, s.owner)

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.conn != nil {
		closeAsync(s.conn, s.account)
		s.conn = nil
	}
	return s.account
}

func (s *Subscription) run(ctx context.Context, gen uint64, account string) {
	conn, err := s.connector.Connect(ctx, account)
	if err != nil {
		s.finish(gen, StateFailed, &ConnectError{Account: account, Err: err})
		return
	}
	if !s.markLive(gen, conn) {
		return
	}
	s.handler.OnConnected(gen, account)

	for {
		ev, err := conn.Next(ctx)
		if err != nil {
			// A cancelled parent ends the stream like a clean close. After an
			// explicit Close the generation has moved on and finish does nothing.
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				s.finish(gen, StateDisconnected, nil)
			} else {
				s.finish(gen, StateFailed, err)
			}
			return
		}
		if !s.Accepts(gen) {
			return
		}
		s.handler.OnEvent(gen, account, ev)
	}
}

// markLive installs conn for gen, or closes it if the attempt was superseded.
func (s *Subscription) markLive(gen uint64, conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.state != StateConnecting {
		closeAsync(conn, s.account)
		return false
	}
	s.state = StateLive
	s.conn = conn

	l := log.L()
	l.Info().Str(log.FieldSessionID, s.owner).Str(log.FieldAccount, s.account).Uint64(log.FieldGeneration, gen).Msg("upstream live")
	return true
}

// finish ends gen from the upstream side with the same teardown as Close.
func (s *Subscription) finish(gen uint64, state State, reason error) {
	s.mu.Lock()
	if gen != s.generation || !s.state.Active() {
		s.mu.Unlock()
		return
	}
	account := s.teardownLocked(state)
	s.mu.Unlock()

	l := log.L()
	evt := l.Info()
	if reason != nil {
		evt = l.Warn().Err(reason)
	}
	evt.Str(log.FieldSessionID, s.owner).Str(log.FieldAccount, account).Str(log.FieldState, state.String()).Msg("upstream ended")

	s.handler.OnClosed(gen, account, reason)
}

func closeAsync(conn Conn, account string) {
	go func() {
		if err := conn.Close(); err != nil {
			l := log.L()
			l.Debug().Err(err).Str(log.FieldAccount, account).Msg("upstream close error")
		}
	}()
}
