package upstream

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrSessionLimit = errors.New("session already holds a subscription")
	ErrInvalidFrame = errors.New("invalid upstream frame")
)

// SessionLimitError carries the account the session is already subscribed to.
type SessionLimitError struct {
	Current string
}

func (e *SessionLimitError) Error() string {
	return fmt.Sprintf("already subscribed to %s", e.Current)
}

func (e *SessionLimitError) Unwrap() error {
	return ErrSessionLimit
}

// ConnectError is reported when the initial connection attempt fails.
type ConnectError struct {
	Account string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to @%s: %v", e.Account, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Event kinds delivered by a Conn.
const (
	EventChat   = "chat"
	EventMember = "member"
	EventGift   = "gift"
	EventSocial = "social"
)

// ChatMessage is the upstream shape of a chat comment.
type ChatMessage struct {
	UniqueID          string `json:"uniqueId"`
	Nickname          string `json:"nickname"`
	Comment           string `json:"comment"`
	ProfilePictureURL string `json:"profilePictureUrl"`
}

type Event struct {
	Kind string
	Chat *ChatMessage
	// Data holds the decoded payload for non-chat events.
	Data map[string]interface{}
}

// Conn is an established upstream event stream.
type Conn interface {
	// Next blocks for the next event. It returns io.EOF when the stream ends cleanly.
	Next(ctx context.Context) (Event, error)
	Close() error
}

type Connector interface {
	Connect(ctx context.Context, account string) (Conn, error)
}

// Claims is the slice of the session registry a Subscription needs.
type Claims interface {
	Acquire(account, owner string) error
	Release(account, owner string) bool
	Owner(account string) (string, bool)
}

// Handler receives subscription callbacks tagged with the generation that produced them.
// Callbacks run on subscription goroutines and must not block.
type Handler interface {
	OnConnected(gen uint64, account string)
	OnEvent(gen uint64, account string, ev Event)
	// OnClosed reports an upstream-initiated end. err is nil for a clean end of stream
	// and a *ConnectError when the connection was never established.
	OnClosed(gen uint64, account string, err error)
}
