package router

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/weiawesome/tt-live-music-player/internal/comments"
	"github.com/weiawesome/tt-live-music-player/internal/domain"
	"github.com/weiawesome/tt-live-music-player/internal/playlist"
	"github.com/weiawesome/tt-live-music-player/internal/resolver"
	"github.com/weiawesome/tt-live-music-player/internal/upstream"
)

type emitted struct {
	Type    string
	Payload interface{}
}

// fakeSession runs resolution tasks inline.
type fakeSession struct {
	id       string
	buf      *comments.Buffer
	playlist *playlist.Store
	out      []emitted
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id, buf: comments.NewBuffer(10), playlist: playlist.NewStore()}
}

func (s *fakeSession) ID() string                 { return s.id }
func (s *fakeSession) Context() context.Context   { return context.Background() }
func (s *fakeSession) Comments() *comments.Buffer { return s.buf }
func (s *fakeSession) Playlist() *playlist.Store  { return s.playlist }
func (s *fakeSession) Emit(msgType string, payload interface{}) {
	s.out = append(s.out, emitted{Type: msgType, Payload: payload})
}
func (s *fakeSession) Go(task func(ctx context.Context) func()) {
	task(context.Background())()
}

func (s *fakeSession) types() []string {
	out := make([]string, 0, len(s.out))
	for _, e := range s.out {
		out = append(out, e.Type)
	}
	return out
}

func (s *fakeSession) last(msgType string) interface{} {
	for i := len(s.out) - 1; i >= 0; i-- {
		if s.out[i].Type == msgType {
			return s.out[i].Payload
		}
	}
	return nil
}

type stubResolver struct {
	media resolver.Media
	err   error
	calls []string
}

func (r *stubResolver) Resolve(ctx context.Context, song, artist string) (resolver.Media, error) {
	r.calls = append(r.calls, song+"|"+artist)
	return r.media, r.err
}

type stubStats struct {
	mu       sync.Mutex
	comments []string
	songs    []string
}

func (s *stubStats) AddComment(user, text string) {
	s.mu.Lock()
	s.comments = append(s.comments, user+":"+text)
	s.mu.Unlock()
}

func (s *stubStats) AddSong(title string) {
	s.mu.Lock()
	s.songs = append(s.songs, title)
	s.mu.Unlock()
}

type stubProducer struct {
	events []*domain.SongRequestEvent
}

func (p *stubProducer) ProduceSongRequest(ctx context.Context, ev *domain.SongRequestEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *stubProducer) Close() error { return nil }

func chat(user, text string) *upstream.ChatMessage {
	return &upstream.ChatMessage{UniqueID: user, Nickname: "Nick " + user, Comment: text}
}

func TestIngest_PlainComment(t *testing.T) {
	req := require.New(t)
	res := &stubResolver{}
	st := &stubStats{}
	r := New(res, st, nil)
	s := newFakeSession("s1")

	c := r.Ingest(s, "streamer", chat("fan1", "hello"))

	req.NotEmpty(c.ID)
	req.Equal("Nick fan1 (@fan1)", c.Username)
	req.Equal("streamer", c.SourceAccount)
	req.Equal("s1", c.OwnerSessionID)
	req.Equal([]string{domain.MsgTypeComment, domain.MsgTypeCommentsUpdated}, s.types())
	req.Equal([]string{"fan1:hello"}, st.comments)
	req.Empty(res.calls)
	req.Equal(1, s.Comments().Len())
}

func TestIngest_UnknownUser(t *testing.T) {
	r := New(&stubResolver{}, &stubStats{}, nil)
	s := newFakeSession("s1")

	c := r.Ingest(s, "streamer", &upstream.ChatMessage{Comment: "hi"})

	require.Equal(t, "Unknown User", c.Username)
	require.Equal(t, "unknown", c.ExternalUserID)
}

func TestIngest_MusicRequestAddsSong(t *testing.T) {
	req := require.New(t)
	res := &stubResolver{media: resolver.Media{ID: "vid123"}}
	st := &stubStats{}
	prod := &stubProducer{}
	r := New(res, st, prod)
	s := newFakeSession("s1")

	// Given a chat command with an artist
	r.Ingest(s, "streamer", chat("fan1", "!music Shape of You by Ed Sheeran"))

	// Then the resolver is asked for the parsed parts
	req.Equal([]string{"shape of you|ed sheeran"}, res.calls)
	req.Equal([]string{
		domain.MsgTypeComment,
		domain.MsgTypeCommentsUpdated,
		domain.MsgTypeCommentHighlighted,
		domain.MsgTypePlaylistUpdated,
		domain.MsgTypeSongAdded,
	}, s.types())

	// And the playlist holds the entry
	req.Equal(1, s.Playlist().Len())
	added := s.last(domain.MsgTypeSongAdded).(domain.SongAddedPayload)
	req.Equal("vid123", added.Song.MediaID)
	req.Equal("shape of you - ed sheeran", added.Song.Title)
	req.Equal("Nick fan1 (@fan1)", added.Requester)
	req.Equal("fan1", added.Song.RequesterExternalID)
	req.Equal("https://img.youtube.com/vi/vid123/mqdefault.jpg", added.Song.Thumbnail)
	req.Equal("shape of you by ed sheeran", added.OriginalRequest)
	req.Equal([]string{"shape of you - ed sheeran"}, st.songs)

	highlighted := s.last(domain.MsgTypeCommentHighlighted).(domain.HighlightedPayload)
	req.True(highlighted.IsHighlighted)

	// And the request is exported
	req.Len(prod.events, 1)
	req.Equal("streamer", prod.events[0].Account)
	req.Equal(domain.SourceChat, prod.events[0].Source)
}

func TestIngest_SongNotFound(t *testing.T) {
	req := require.New(t)
	r := New(&stubResolver{err: resolver.ErrNotFound}, &stubStats{}, nil)
	s := newFakeSession("s1")

	r.Ingest(s, "streamer", chat("fan1", "!music nothing at all"))

	payload, ok := s.last(domain.MsgTypeSongNotFound).(domain.SongFailedPayload)
	req.True(ok)
	req.Equal("nothing at all", payload.Request)
	req.Equal(0, s.Playlist().Len())
}

func TestIngest_ResolverError(t *testing.T) {
	req := require.New(t)
	r := New(&stubResolver{err: errors.New("quota exceeded")}, &stubStats{}, nil)
	s := newFakeSession("s1")

	r.Ingest(s, "streamer", chat("fan1", "!music despacito"))

	payload, ok := s.last(domain.MsgTypeSongError).(domain.SongFailedPayload)
	req.True(ok)
	req.Equal("quota exceeded", payload.Error)
	req.Equal(0, s.Playlist().Len())
}

func TestIngest_CancelledResolutionIsSilent(t *testing.T) {
	r := New(&stubResolver{err: context.Canceled}, &stubStats{}, nil)
	s := newFakeSession("s1")

	r.Ingest(s, "streamer", chat("fan1", "!music despacito"))

	require.NotContains(t, s.types(), domain.MsgTypeSongError)
}

func TestAddManual_UsesManualRequester(t *testing.T) {
	req := require.New(t)
	prod := &stubProducer{}
	r := New(&stubResolver{media: resolver.Media{ID: "m1"}}, &stubStats{}, prod)
	s := newFakeSession("s1")

	r.AddManual(s, "", "Hello", "Adele")

	added := s.last(domain.MsgTypeSongAdded).(domain.SongAddedPayload)
	req.Equal("Manual", added.Requester)
	req.Equal("Hello - Adele", added.Song.Title)
	req.Equal(domain.SourceManual, prod.events[0].Source)
}

func TestForward_TagsSource(t *testing.T) {
	req := require.New(t)
	r := New(&stubResolver{}, &stubStats{}, nil)
	s := newFakeSession("s1")

	r.Forward(s, "streamer", upstream.Event{Kind: upstream.EventGift, Data: map[string]interface{}{"giftName": "Rose"}})
	r.Forward(s, "streamer", upstream.Event{Kind: "roomUser"})

	req.Equal([]string{domain.MsgTypeGift}, s.types())
	payload := s.last(domain.MsgTypeGift).(map[string]interface{})
	req.Equal("Rose", payload["giftName"])
	req.Equal("streamer", payload["source"])
}

func TestIngest_SessionsStayIsolated(t *testing.T) {
	req := require.New(t)
	r := New(&stubResolver{media: resolver.Media{ID: "v"}}, &stubStats{}, nil)
	a := newFakeSession("a")
	b := newFakeSession("b")

	// When events for A's account are routed to A
	r.Ingest(a, "streamer-a", chat("fan1", "!music song one"))
	r.Ingest(a, "streamer-a", chat("fan2", "hi"))

	// Then B observes nothing
	req.Empty(b.out)
	req.Equal(0, b.Comments().Len())
	req.Equal(0, b.Playlist().Len())
	req.Equal(2, a.Comments().Len())
	req.Equal(1, a.Playlist().Len())
	for _, c := range a.Comments().Items() {
		req.Equal("a", c.OwnerSessionID)
	}
}
