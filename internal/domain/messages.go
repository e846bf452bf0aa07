package domain

// WebSocket message types from client.
const (
	MsgTypeConnect       = "connect"
	MsgTypeDisconnect    = "disconnect"
	MsgTypeAddSongManual = "add-song-manual"
	MsgTypeRemoveSong    = "remove-song"
	MsgTypeClearPlaylist = "clear-playlist"
	MsgTypeNextSong      = "next-song"
	MsgTypePlaySong      = "play-song"
	MsgTypeGetState      = "get-state"
	MsgTypePing          = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeStatus             = "tiktok-status"
	MsgTypeConnected          = "tiktok-connected"
	MsgTypeStreamError        = "tiktok-error"
	MsgTypeDisconnected       = "tiktok-disconnected"
	MsgTypeComment            = "tiktok-comment"
	MsgTypeCommentsUpdated    = "comments-updated"
	MsgTypeCommentHighlighted = "comment-highlighted"
	MsgTypePlaylistUpdated    = "playlist-updated"
	MsgTypeSongAdded          = "song-added"
	MsgTypeSongNotFound       = "song-not-found"
	MsgTypeSongError          = "song-error"
	MsgTypePlayNext           = "play-next"
	MsgTypeMember             = "tiktok-member"
	MsgTypeGift               = "tiktok-gift"
	MsgTypeSocial             = "tiktok-social"
	MsgTypeStatistics         = "statistics-updated"
	MsgTypeError              = "error"
	MsgTypePong               = "pong"
)

// Error codes
const (
	ErrCodeAlreadyConnected      = "ALREADY_CONNECTED"
	ErrCodeSingleConnectionLimit = "SINGLE_CONNECTION_LIMIT"
	ErrCodeBadRequest            = "BAD_REQUEST"
	ErrCodeInternalError         = "INTERNAL_ERROR"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type ConnectMessage struct {
	Type    string `json:"type"`
	Account string `json:"account"`
}

type DisconnectMessage struct {
	Type    string `json:"type"`
	Account string `json:"account,omitempty"`
}

type AddSongManualMessage struct {
	Type   string `json:"type"`
	Song   string `json:"song"`
	Artist string `json:"artist"`
}

type IndexMessage struct {
	Type  string `json:"type"`
	Index *int   `json:"index"`
}

// Server -> Client messages

// Envelope wraps a payload that is serialized under the "data" key.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type StatusPayload struct {
	IsConnected      bool     `json:"isConnected"`
	ConnectedUsers   []string `json:"connectedUsers"`
	TotalConnections int      `json:"totalConnections"`
	CommentsCount    int      `json:"commentsCount"`
	State            string   `json:"state"`
}

type AccountPayload struct {
	Account string `json:"account"`
}

type StreamErrorPayload struct {
	Error             string `json:"error"`
	Code              string `json:"code,omitempty"`
	CurrentConnection string `json:"currentConnection,omitempty"`
}

type HighlightedPayload struct {
	Comment
	IsHighlighted bool `json:"isHighlighted"`
}

type SongAddedPayload struct {
	Song            PlaylistEntry `json:"song"`
	Requester       string        `json:"requester"`
	OriginalRequest string        `json:"originalRequest"`
}

type SongFailedPayload struct {
	Request   string `json:"request"`
	Requester string `json:"requester"`
	Error     string `json:"error,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
