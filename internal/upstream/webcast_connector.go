package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/weiawesome/tt-live-music-player/internal/config"
)

// Relay frame types.
const (
	frameConnected = "connected"
	frameStreamEnd = "streamEnd"
	frameError     = "error"
)

type relayFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// WebcastConnector subscribes to an account through a websocket relay that
// emits one JSON frame per live-stream event.
type WebcastConnector struct {
	relayURL         string
	dialer           *websocket.Dialer
	handshakeTimeout time.Duration
	readLimit        int64
}

func NewWebcastConnector(cfg config.UpstreamConfig) *WebcastConnector {
	return &WebcastConnector{
		relayURL: cfg.RelayURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.DialTimeout,
		},
		handshakeTimeout: cfg.HandshakeTimeout,
		readLimit:        cfg.ReadLimit,
	}
}

func (c *WebcastConnector) Connect(ctx context.Context, account string) (Conn, error) {
	u, err := url.Parse(c.relayURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url: %w", err)
	}
	q := u.Query()
	q.Set("account", account)
	u.RawQuery = q.Encode()

	ws, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}
	if c.readLimit > 0 {
		ws.SetReadLimit(c.readLimit)
	}

	conn := &webcastConn{ws: ws}

	// Wait for the relay to confirm the stream is live.
	stop := conn.closeOnDone(ctx)
	defer stop()

	if c.handshakeTimeout > 0 {
		ws.SetReadDeadline(time.Now().Add(c.handshakeTimeout))
	}
	frame, err := conn.readFrame()
	if err != nil {
		ws.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("relay handshake: %w", err)
	}
	switch frame.Type {
	case frameConnected:
	case frameError:
		ws.Close()
		return nil, fmt.Errorf("relay refused: %s", frame.Error)
	default:
		ws.Close()
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrInvalidFrame, frameConnected, frame.Type)
	}

	ws.SetReadDeadline(time.Time{})
	return conn, nil
}

type webcastConn struct {
	ws        *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// closeOnDone closes the socket if ctx ends before the returned stop is called.
func (c *webcastConn) closeOnDone(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (c *webcastConn) readFrame() (relayFrame, error) {
	var frame relayFrame
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return frame, err
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return frame, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return frame, nil
}

// Next blocks on the socket; Close unblocks it.
func (c *webcastConn) Next(ctx context.Context) (Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}

		frame, err := c.readFrame()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}

		switch frame.Type {
		case frameStreamEnd:
			return Event{}, io.EOF
		case frameError:
			return Event{}, fmt.Errorf("relay error: %s", frame.Error)
		case EventChat:
			var msg ChatMessage
			if err := json.Unmarshal(frame.Data, &msg); err != nil {
				return Event{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
			}
			return Event{Kind: EventChat, Chat: &msg}, nil
		case EventMember, EventGift, EventSocial:
			data := map[string]interface{}{}
			if len(frame.Data) > 0 {
				if err := json.Unmarshal(frame.Data, &data); err != nil {
					return Event{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
				}
			}
			return Event{Kind: frame.Type, Data: data}, nil
		}
		// Unknown frame types are skipped.
	}
}

func (c *webcastConn) Close() error {
	c.closeOnce.Do(func() {
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
