package audit

import (
	"context"

	"github.com/weiawesome/tt-live-music-player/pkg/log"
)

// Audit actions for operator sessions.
const (
	ActionConnect       = "jukebox.connect"
	ActionClaimRejected = "jukebox.claim_rejected"
	ActionDisconnect    = "jukebox.disconnect"
	ActionSongAdded     = "jukebox.song_added"
	ActionSongRemoved   = "jukebox.song_removed"
	ActionClearPlaylist = "jukebox.clear_playlist"
	ActionSessionClosed = "jukebox.session_closed"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit entry for sessionID via the context logger.
func Log(ctx context.Context, action, sessionID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldSessionID, sessionID).
		Msg(msg)
}

// LogAccount emits an audit entry that also names the external account involved.
func LogAccount(ctx context.Context, action, sessionID, account, detail, msg string) {
	l := log.Ctx(ctx)
	evt := l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldSessionID, sessionID).
		Str(log.FieldAccount, account)
	if detail != "" {
		evt = evt.Str(FieldDetail, detail)
	}
	evt.Msg(msg)
}
