// Package router turns upstream stream events into session-scoped updates.
package router

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/weiawesome/tt-live-music-player/internal/audit"
	"github.com/weiawesome/tt-live-music-player/internal/comments"
	"github.com/weiawesome/tt-live-music-player/internal/domain"
	"github.com/weiawesome/tt-live-music-player/internal/kafka"
	"github.com/weiawesome/tt-live-music-player/internal/playlist"
	"github.com/weiawesome/tt-live-music-player/internal/resolver"
	"github.com/weiawesome/tt-live-music-player/internal/upstream"
	"github.com/weiawesome/tt-live-music-player/pkg/log"
)

const manualRequester = "Manual"

// Session is the view of an operator session the router works against.
// Every method is called from the session's own actor goroutine.
type Session interface {
	ID() string
	Context() context.Context
	Comments() *comments.Buffer
	Playlist() *playlist.Store
	Emit(msgType string, payload interface{})
	// Go runs task off the actor; the function it returns is applied back on
	// the actor only if the session is still alive.
	Go(task func(ctx context.Context) func())
}

// Stats is the part of the statistics aggregator the router feeds.
type Stats interface {
	AddComment(user, text string)
	AddSong(title string)
}

type Router struct {
	resolver resolver.Resolver
	stats    Stats
	producer kafka.SongRequestProducer
	now      func() time.Time
}

// New creates a Router. producer may be nil.
func New(res resolver.Resolver, stats Stats, producer kafka.SongRequestProducer) *Router {
	return &Router{
		resolver: res,
		stats:    stats,
		producer: producer,
		now:      time.Now,
	}
}

type songRequest struct {
	MusicRequest
	account     string
	requester   string
	requesterID string
	source      string
}

// Ingest records a chat comment for s and starts resolution when it is a music request.
func (r *Router) Ingest(s Session, account string, msg *upstream.ChatMessage) domain.Comment {
	c := r.normalize(s.ID(), account, msg)

	s.Comments().Push(c)
	r.stats.AddComment(c.ExternalUserID, c.Text)

	s.Emit(domain.MsgTypeComment, c)
	s.Emit(domain.MsgTypeCommentsUpdated, s.Comments().Items())

	music, ok := ParseMusicCommand(c.Text)
	if !ok {
		return c
	}

	l := log.Ctx(s.Context())
	l.Info().Str(log.FieldAccount, account).Str("requester", c.Username).Str("request", music.Raw).Msg("music request")

	s.Emit(domain.MsgTypeCommentHighlighted, domain.HighlightedPayload{Comment: c, IsHighlighted: true})
	r.resolve(s, songRequest{
		MusicRequest: music,
		account:      account,
		requester:    c.Username,
		requesterID:  c.ExternalUserID,
		source:       domain.SourceChat,
	})
	return c
}

// AddManual resolves an operator-entered song for s.
func (r *Router) AddManual(s Session, account, song, artist string) {
	music := MusicRequest{Song: song, Artist: artist, Raw: song}
	if artist != "" {
		music.Raw = song + " - " + artist
	}
	r.resolve(s, songRequest{
		MusicRequest: music,
		account:      account,
		requester:    manualRequester,
		source:       domain.SourceManual,
	})
}

// Forward relays member, gift and social events to s tagged with their source account.
func (r *Router) Forward(s Session, account string, ev upstream.Event) {
	var msgType string
	switch ev.Kind {
	case upstream.EventMember:
		msgType = domain.MsgTypeMember
	case upstream.EventGift:
		msgType = domain.MsgTypeGift
	case upstream.EventSocial:
		msgType = domain.MsgTypeSocial
	default:
		return
	}

	payload := make(map[string]interface{}, len(ev.Data)+1)
	for k, v := range ev.Data {
		payload[k] = v
	}
	payload["source"] = account
	s.Emit(msgType, payload)
}

func (r *Router) normalize(sessionID, account string, msg *upstream.ChatMessage) domain.Comment {
	externalID := msg.UniqueID
	if externalID == "" {
		externalID = "unknown"
	}
	displayName := msg.Nickname
	if displayName == "" {
		displayName = msg.UniqueID
	}
	if displayName == "" {
		displayName = "Unknown User"
	}

	now := r.now()
	return domain.Comment{
		ID:             ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		DisplayName:    displayName,
		ExternalUserID: externalID,
		Username:       domain.FormatUsername(displayName, externalID),
		Text:           msg.Comment,
		Timestamp:      now,
		ProfilePicture: msg.ProfilePictureURL,
		SourceAccount:  account,
		OwnerSessionID: sessionID,
	}
}

func (r *Router) resolve(s Session, req songRequest) {
	s.Go(func(ctx context.Context) func() {
		media, err := r.resolver.Resolve(ctx, req.Song, req.Artist)
		return func() {
			r.complete(s, req, media, err)
		}
	})
}

// complete runs on the actor once resolution has finished.
func (r *Router) complete(s Session, req songRequest, media resolver.Media, err error) {
	l := log.Ctx(s.Context())

	switch {
	case err == nil:
	case errors.Is(err, resolver.ErrNotFound):
		l.Info().Str("request", req.Raw).Msg("song not found")
		s.Emit(domain.MsgTypeSongNotFound, domain.SongFailedPayload{
			Request:   req.Raw,
			Requester: req.requester,
		})
		return
	case errors.Is(err, context.Canceled):
		return
	default:
		l.Warn().Err(err).Str("request", req.Raw).Msg("song resolution failed")
		s.Emit(domain.MsgTypeSongError, domain.SongFailedPayload{
			Request:   req.Raw,
			Requester: req.requester,
			Error:     err.Error(),
		})
		return
	}

	entry := s.Playlist().Add(domain.PlaylistEntry{
		MediaID:             media.ID,
		Title:               req.Title(),
		Requester:           req.requester,
		RequesterExternalID: req.requesterID,
		Thumbnail:           resolver.ThumbnailURL(media.ID),
		Channel:             "YouTube",
		AddedAt:             r.now(),
	})
	r.stats.AddSong(entry.Title)

	s.Emit(domain.MsgTypePlaylistUpdated, s.Playlist().Snapshot())
	s.Emit(domain.MsgTypeSongAdded, domain.SongAddedPayload{
		Song:            entry,
		Requester:       req.requester,
		OriginalRequest: req.Raw,
	})
	audit.LogAccount(s.Context(), audit.ActionSongAdded, s.ID(), req.account, entry.Title, "song added")

	r.export(s, req, entry)
}

func (r *Router) export(s Session, req songRequest, entry domain.PlaylistEntry) {
	if r.producer == nil {
		return
	}
	err := r.producer.ProduceSongRequest(s.Context(), &domain.SongRequestEvent{
		SessionID:           s.ID(),
		Account:             req.account,
		MediaID:             entry.MediaID,
		Title:               entry.Title,
		Requester:           entry.Requester,
		RequesterExternalID: entry.RequesterExternalID,
		Source:              req.source,
		AddedAt:             entry.AddedAt.UnixMilli(),
	})
	if err != nil {
		l := log.Ctx(s.Context())
		l.Warn().Err(err).Msg("failed to export song request")
	}
}
