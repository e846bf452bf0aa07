package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/weiawesome/tt-live-music-player/pkg/log"
)

func capture(t *testing.T) (context.Context, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: "info"}, &buf)
	return log.WithLogger(context.Background(), logger), &buf
}

func TestLog_WritesAuditFields(t *testing.T) {
	req := require.New(t)
	ctx, buf := capture(t)

	Log(ctx, ActionSessionClosed, "s1", "session closed")

	var entry map[string]interface{}
	req.NoError(json.Unmarshal(buf.Bytes(), &entry))
	req.Equal(log.LogTypeAudit, entry[log.FieldLogType])
	req.Equal(ActionSessionClosed, entry[FieldAction])
	req.Equal("s1", entry[log.FieldSessionID])
	req.Equal("session closed", entry["message"])
}

func TestLogAccount_OmitsEmptyDetail(t *testing.T) {
	req := require.New(t)
	ctx, buf := capture(t)

	LogAccount(ctx, ActionConnect, "s1", "streamer", "", "connect requested")

	var entry map[string]interface{}
	req.NoError(json.Unmarshal(buf.Bytes(), &entry))
	req.Equal("streamer", entry[log.FieldAccount])
	req.NotContains(entry, FieldDetail)
}
