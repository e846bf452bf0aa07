package log

import (
	"context"

	"github.com/rs/zerolog"
)

type loggerKey struct{}

func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Ctx returns the logger carried by ctx, or the process logger.
func Ctx(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
			return l
		}
	}
	return L()
}

// WithSession tags the context logger with an operator session id.
func WithSession(ctx context.Context, sessionID string) context.Context {
	l := Ctx(ctx).With().Str(FieldSessionID, sessionID).Logger()
	return WithLogger(ctx, l)
}

// WithAccount tags the context logger with the live account a session is bound to.
func WithAccount(ctx context.Context, account string) context.Context {
	l := Ctx(ctx).With().Str(FieldAccount, account).Logger()
	return WithLogger(ctx, l)
}
