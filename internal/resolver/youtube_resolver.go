package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/weiawesome/tt-live-music-player/internal/config"
	"github.com/weiawesome/tt-live-music-player/pkg/log"
)

// YouTubeResolver searches the YouTube Data API for a video.
type YouTubeResolver struct {
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *http.Client
}

type searchResponse struct {
	Items []searchItem `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type searchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		ChannelTitle string `json:"channelTitle"`
	} `json:"snippet"`
}

func NewYouTubeResolver(cfg config.ResolverConfig) *YouTubeResolver {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &YouTubeResolver{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxResults: maxResults,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (r *YouTubeResolver) Resolve(ctx context.Context, song, artist string) (Media, error) {
	query := song
	if artist != "" {
		query = song + " " + artist
	}

	items, err := r.search(ctx, query)
	if err != nil {
		return Media{}, err
	}
	if len(items) == 0 {
		return Media{}, ErrNotFound
	}

	selected := items[0]
	if artist != "" {
		if match, ok := pickMusic(items, song, artist); ok {
			selected = match
		}
	}

	l := log.Ctx(ctx)
	l.Debug().Str("query", query).Str("video_id", selected.ID.VideoID).Str("title", selected.Snippet.Title).Msg("resolved media")

	return Media{
		ID:      selected.ID.VideoID,
		Title:   selected.Snippet.Title,
		Channel: "YouTube",
	}, nil
}

func (r *YouTubeResolver) search(ctx context.Context, query string) ([]searchItem, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(r.maxResults))
	params.Set("q", query)
	if r.apiKey != "" {
		params.Set("key", r.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search media: %w", err)
	}
	defer resp.Body.Close()

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("media search returned status: %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if body.Error != nil {
			return nil, fmt.Errorf("media search returned status %d: %s", resp.StatusCode, body.Error.Message)
		}
		return nil, fmt.Errorf("media search returned status: %d", resp.StatusCode)
	}

	items := body.Items[:0]
	for _, it := range body.Items {
		if it.ID.VideoID != "" {
			items = append(items, it)
		}
	}
	return items, nil
}

// pickMusic prefers results that look like music for the requested song or artist.
func pickMusic(items []searchItem, song, artist string) (searchItem, bool) {
	song = strings.ToLower(song)
	artist = strings.ToLower(artist)
	for _, it := range items {
		title := strings.ToLower(it.Snippet.Title)
		desc := strings.ToLower(it.Snippet.Description)
		if strings.Contains(title, song) ||
			strings.Contains(title, artist) ||
			strings.Contains(title, "music") ||
			strings.Contains(title, "official") ||
			strings.Contains(desc, "music") {
			return it, true
		}
	}
	return searchItem{}, false
}
