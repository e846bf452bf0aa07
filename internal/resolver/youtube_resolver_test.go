package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/weiawesome/tt-live-music-player/internal/config"
)

func youtubeServer(t *testing.T, status int, body string, gotQuery chan<- string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotQuery != nil {
			gotQuery <- r.URL.Query().Get("q")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestResolver(srv *httptest.Server) *YouTubeResolver {
	return NewYouTubeResolver(config.ResolverConfig{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		Timeout:    time.Second,
		MaxResults: 5,
	})
}

const searchBody = `{"items":[
	{"id":{"videoId":"aaa"},"snippet":{"title":"Reaction video","description":"funny"}},
	{"id":{"videoId":"bbb"},"snippet":{"title":"Ed Sheeran - Shape of You (Official Video)","description":""}}
]}`

func TestYouTubeResolver_FiltersWithArtist(t *testing.T) {
	req := require.New(t)
	queries := make(chan string, 1)
	srv := youtubeServer(t, http.StatusOK, searchBody, queries)

	media, err := newTestResolver(srv).Resolve(context.Background(), "shape of you", "ed sheeran")

	req.NoError(err)
	req.Equal("bbb", media.ID)
	req.Equal("YouTube", media.Channel)
	req.Equal("shape of you ed sheeran", <-queries)
}

func TestYouTubeResolver_FirstResultWithoutArtist(t *testing.T) {
	srv := youtubeServer(t, http.StatusOK, searchBody, nil)

	media, err := newTestResolver(srv).Resolve(context.Background(), "shape of you", "")

	require.NoError(t, err)
	require.Equal(t, "aaa", media.ID)
}

func TestYouTubeResolver_FallsBackToFirstResult(t *testing.T) {
	body := `{"items":[{"id":{"videoId":"zzz"},"snippet":{"title":"Unrelated","description":""}}]}`
	srv := youtubeServer(t, http.StatusOK, body, nil)

	media, err := newTestResolver(srv).Resolve(context.Background(), "despacito", "fonsi")

	require.NoError(t, err)
	require.Equal(t, "zzz", media.ID)
}

func TestYouTubeResolver_NoResults(t *testing.T) {
	srv := youtubeServer(t, http.StatusOK, `{"items":[]}`, nil)

	_, err := newTestResolver(srv).Resolve(context.Background(), "nothing", "")

	require.ErrorIs(t, err, ErrNotFound)
}

func TestYouTubeResolver_StatusError(t *testing.T) {
	srv := youtubeServer(t, http.StatusForbidden, `{"error":{"code":403,"message":"quota exceeded"}}`, nil)

	_, err := newTestResolver(srv).Resolve(context.Background(), "song", "")

	require.ErrorContains(t, err, "quota exceeded")
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestThumbnailURL(t *testing.T) {
	require.Equal(t, "https://img.youtube.com/vi/abc/mqdefault.jpg", ThumbnailURL("abc"))
}
