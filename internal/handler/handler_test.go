package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/tt-live-music-player/internal/config"
	"github.com/weiawesome/tt-live-music-player/internal/domain"
	"github.com/weiawesome/tt-live-music-player/internal/hub"
	"github.com/weiawesome/tt-live-music-player/internal/registry"
	"github.com/weiawesome/tt-live-music-player/internal/resolver"
	"github.com/weiawesome/tt-live-music-player/internal/router"
	"github.com/weiawesome/tt-live-music-player/internal/service"
	"github.com/weiawesome/tt-live-music-player/internal/session"
	"github.com/weiawesome/tt-live-music-player/internal/stats"
	"github.com/weiawesome/tt-live-music-player/internal/upstream"
)

type heldConn struct {
	closed chan struct{}
	once   sync.Once
}

func (c *heldConn) Next(ctx context.Context) (upstream.Event, error) {
	select {
	case <-c.closed:
		return upstream.Event{}, errors.New("closed")
	case <-ctx.Done():
		return upstream.Event{}, ctx.Err()
	}
}

func (c *heldConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type heldConnector struct{}

func (heldConnector) Connect(ctx context.Context, account string) (upstream.Conn, error) {
	return &heldConn{closed: make(chan struct{})}, nil
}

type echoResolver struct{}

func (echoResolver) Resolve(ctx context.Context, song, artist string) (resolver.Media, error) {
	return resolver.Media{ID: "id-" + song}, nil
}

type testServer struct {
	srv *httptest.Server
	svc service.JukeboxService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	wsCfg := config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       5 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     64,
	}
	h := hub.NewHub(wsCfg)
	go h.Run()

	agg := stats.NewAggregator()
	svc := service.NewJukeboxService(h, registry.New(nil), agg, session.Dependencies{
		Connector: heldConnector{},
		Router:    router.New(echoResolver{}, agg, nil),
	}, service.Config{BroadcastInterval: time.Hour})

	r := gin.New()
	NewHTTPHandler(svc).RegisterRoutes(r)
	r.GET("/ws", NewWSHandler(h, svc, wsCfg).HandleWebSocket)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
		h.Stop()
	})
	return &testServer{srv: srv, svc: svc}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one has the wanted type.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", msgType)
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &frame))
		if frame["type"] == msgType {
			return frame
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func TestWebSocket_InitialStateAndPing(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	readUntil(t, conn, domain.MsgTypeStatus)
	readUntil(t, conn, domain.MsgTypeStatistics)

	send(t, conn, `{"type":"ping"}`)
	readUntil(t, conn, domain.MsgTypePong)
}

func TestWebSocket_MalformedFrames(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	conn := ts.dial(t)

	send(t, conn, `not json`)
	frame := readUntil(t, conn, domain.MsgTypeError)
	req.Equal(domain.ErrCodeBadRequest, frame["code"])

	send(t, conn, `{"type":"remove-song"}`)
	frame = readUntil(t, conn, domain.MsgTypeError)
	req.Equal("Invalid remove-song message", frame["message"])

	send(t, conn, `{"type":"dance"}`)
	frame = readUntil(t, conn, domain.MsgTypeError)
	req.Equal("Unknown message type", frame["message"])
}

func TestWebSocket_ConnectAndManualAdd(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	conn := ts.dial(t)

	send(t, conn, `{"type":"connect","account":"@Streamer"}`)
	frame := readUntil(t, conn, domain.MsgTypeConnected)
	req.Equal("streamer", frame["data"].(map[string]interface{})["account"])

	send(t, conn, `{"type":"add-song-manual","song":"hello","artist":"adele"}`)
	frame = readUntil(t, conn, domain.MsgTypeSongAdded)
	song := frame["data"].(map[string]interface{})["song"].(map[string]interface{})
	req.Equal("id-hello", song["videoId"])
	req.Equal("Manual", song["requester"])

	send(t, conn, `{"type":"next-song"}`)
	readUntil(t, conn, domain.MsgTypePlayNext)
}

func TestWebSocket_SecondOperatorRejected(t *testing.T) {
	ts := newTestServer(t)
	first := ts.dial(t)
	second := ts.dial(t)

	send(t, first, `{"type":"connect","account":"streamer"}`)
	readUntil(t, first, domain.MsgTypeConnected)

	send(t, second, `{"type":"connect","account":"streamer"}`)
	frame := readUntil(t, second, domain.MsgTypeStreamError)
	require.Equal(t, domain.ErrCodeAlreadyConnected, frame["data"].(map[string]interface{})["code"])
}

func TestWebSocket_CloseReleasesAccount(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	conn := ts.dial(t)

	send(t, conn, `{"type":"connect","account":"streamer"}`)
	readUntil(t, conn, domain.MsgTypeConnected)
	req.Equal(1, ts.svc.Connections().Count)

	conn.Close()

	req.Eventually(func() bool { return ts.svc.Connections().Count == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHTTP_Connections(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	conn := ts.dial(t)
	send(t, conn, `{"type":"connect","account":"streamer"}`)
	readUntil(t, conn, domain.MsgTypeConnected)

	resp, err := http.Get(ts.srv.URL + "/api/v1/connections")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Accounts []string `json:"connectedAccounts"`
			Count    int      `json:"totalConnections"`
		} `json:"data"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.True(body.Success)
	req.Equal([]string{"streamer"}, body.Data.Accounts)
	req.Equal(1, body.Data.Count)
}

func TestHTTP_GetConnection(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/api/v1/connections/nobody")
	req.NoError(err)
	resp.Body.Close()
	req.Equal(http.StatusNotFound, resp.StatusCode)

	conn := ts.dial(t)
	send(t, conn, `{"type":"connect","account":"streamer"}`)
	readUntil(t, conn, domain.MsgTypeConnected)

	resp, err = http.Get(ts.srv.URL + "/api/v1/connections/@Streamer")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
}

func TestHTTP_HealthAndStatistics(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	for _, path := range []string{"/health", "/api/v1/statistics"} {
		resp, err := http.Get(ts.srv.URL + path)
		req.NoError(err)
		resp.Body.Close()
		req.Equal(http.StatusOK, resp.StatusCode, path)
	}
}
