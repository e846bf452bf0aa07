package router

import "strings"

const musicPrefix = "!music "

// separators are tried in order; the first one present splits song from artist.
var separators = []string{" - ", " by ", " + "}

// MusicRequest is a parsed "!music" chat command.
type MusicRequest struct {
	Song   string
	Artist string
	// Raw is the lower-cased request text after the prefix.
	Raw string
}

// Title renders the playlist title for the request.
func (m MusicRequest) Title() string {
	if m.Artist == "" {
		return m.Song
	}
	return m.Song + " - " + m.Artist
}

// ParseMusicCommand reports whether text is a music request and parses it.
// Matching is case-insensitive and the parsed parts are lower-cased.
func ParseMusicCommand(text string) (MusicRequest, bool) {
	msg := strings.ToLower(strings.TrimSpace(text))
	if !strings.HasPrefix(msg, musicPrefix) {
		return MusicRequest{}, false
	}

	raw := strings.TrimSpace(msg[len(musicPrefix):])
	if raw == "" {
		return MusicRequest{}, false
	}

	req := MusicRequest{Song: raw, Raw: raw}
	for _, sep := range separators {
		if song, artist, ok := strings.Cut(raw, sep); ok {
			req.Song = strings.TrimSpace(song)
			req.Artist = strings.TrimSpace(artist)
			break
		}
	}
	return req, true
}
