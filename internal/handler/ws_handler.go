package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/weiawesome/tt-live-music-player/internal/config"
	"github.com/weiawesome/tt-live-music-player/internal/domain"
	"github.com/weiawesome/tt-live-music-player/internal/hub"
	"github.com/weiawesome/tt-live-music-player/internal/service"
	pkglog "github.com/weiawesome/tt-live-music-player/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Operator UI may be served from another origin
	},
}

// WSHandler handles operator WebSocket connections.
type WSHandler struct {
	hub     *hub.Hub
	service service.JukeboxService
	config  config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc service.JukeboxService, cfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		config:  cfg,
	}
}

// HandleWebSocket upgrades the request and starts the client's pumps.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	l := pkglog.Ctx(c.Request.Context())

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, h.hub, conn, h.config)

	client.SetDisconnectHandler(func(c *hub.Client) {
		ctx := context.Background()
		if err := h.service.HandleClientClosed(ctx, c); err != nil {
			l.Error().Err(err).Str(pkglog.FieldSessionID, c.ID).Msg("disconnect handler error")
		}
	})

	h.hub.Register(client)
	if err := h.service.HandleClientOpened(c.Request.Context(), client); err != nil {
		l.Error().Err(err).Str(pkglog.FieldSessionID, clientID).Msg("failed to open session")
	}

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	l := pkglog.L()

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	ctx := pkglog.WithSession(context.Background(), client.ID)
	var err error

	switch base.Type {
	case domain.MsgTypeConnect:
		var msg domain.ConnectMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid connect message"))
			return
		}
		err = h.service.HandleConnect(ctx, client, msg.Account)

	case domain.MsgTypeDisconnect:
		var msg domain.DisconnectMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid disconnect message"))
			return
		}
		err = h.service.HandleDisconnect(ctx, client, msg.Account)

	case domain.MsgTypeAddSongManual:
		var msg domain.AddSongManualMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Song == "" {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid add-song-manual message"))
			return
		}
		err = h.service.HandleAddSongManual(ctx, client, msg.Song, msg.Artist)

	case domain.MsgTypeRemoveSong, domain.MsgTypePlaySong:
		var msg domain.IndexMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Index == nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid "+base.Type+" message"))
			return
		}
		if base.Type == domain.MsgTypeRemoveSong {
			err = h.service.HandleRemoveSong(ctx, client, *msg.Index)
		} else {
			err = h.service.HandlePlaySong(ctx, client, *msg.Index)
		}

	case domain.MsgTypeClearPlaylist:
		err = h.service.HandleClearPlaylist(ctx, client)

	case domain.MsgTypeNextSong:
		err = h.service.HandleNextSong(ctx, client)

	case domain.MsgTypeGetState:
		err = h.service.HandleGetState(ctx, client)

	case domain.MsgTypePing:
		client.SendMessage(domain.BaseMessage{Type: domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}

	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldSessionID, client.ID).Str(pkglog.FieldFrameType, base.Type).Msg("command failed")
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeInternalError, err.Error()))
	}
}
