package domain

import (
	"strings"
	"time"
)

// Comment is a normalized chat event from an upstream stream.
type Comment struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"displayName"`
	ExternalUserID string    `json:"externalUserId"`
	Username       string    `json:"username"`
	Text           string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	SourceAccount  string    `json:"sourceChannel"`
	OwnerSessionID string    `json:"clientId"`
}

// PlaylistEntry is a resolved, playable item.
type PlaylistEntry struct {
	ID                  int64     `json:"id"`
	MediaID             string    `json:"videoId"`
	Title               string    `json:"title"`
	Requester           string    `json:"requester"`
	RequesterExternalID string    `json:"requesterTiktokId,omitempty"`
	Thumbnail           string    `json:"thumbnail"`
	Channel             string    `json:"channel"`
	AddedAt             time.Time `json:"addedAt"`
}

// PlaylistSnapshot is the wire view of a playlist.
type PlaylistSnapshot struct {
	Songs        []PlaylistEntry `json:"songs"`
	CurrentIndex int             `json:"currentIndex"`
	CurrentSong  *PlaylistEntry  `json:"currentSong"`
	TotalSongs   int             `json:"totalSongs"`
}

// NormalizeAccount trims spaces, strips a leading "@" and lower-cases.
// An empty result means the name is invalid.
func NormalizeAccount(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "@")
	return strings.ToLower(strings.TrimSpace(name))
}

// FormatUsername renders "Display (@id)", or just the display name when the id is unknown.
func FormatUsername(displayName, externalID string) string {
	if externalID == "" || externalID == "unknown" {
		return displayName
	}
	return displayName + " (@" + externalID + ")"
}

// Request sources.
const (
	SourceChat   = "chat"
	SourceManual = "manual"
)

// SongRequestEvent is exported for every song added to a playlist.
type SongRequestEvent struct {
	SessionID           string `json:"session_id"`
	Account             string `json:"account"`
	MediaID             string `json:"media_id"`
	Title               string `json:"title"`
	Requester           string `json:"requester"`
	RequesterExternalID string `json:"requester_external_id,omitempty"`
	Source              string `json:"source"`
	AddedAt             int64  `json:"added_at"`
}
