package log

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level, output format and the static fields stamped on every entry.
type Config struct {
	Level    string
	Pretty   bool
	Service  string
	Instance string
}

var global atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	global.Store(&l)
}

// New builds a logger writing JSON lines to w, or console output when cfg.Pretty is set.
func New(cfg Config, w io.Writer) zerolog.Logger {
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	lc := zerolog.New(w).Level(level(cfg.Level)).With().Timestamp()
	if cfg.Service != "" {
		lc = lc.Str(FieldService, cfg.Service)
	}
	if cfg.Instance != "" {
		lc = lc.Str(FieldInstance, cfg.Instance)
	}
	return lc.Logger()
}

// Init replaces the process logger. Safe to call again; the last call wins.
func Init(cfg Config) {
	l := New(cfg, os.Stdout)
	global.Store(&l)
}

// L returns the process logger.
func L() zerolog.Logger {
	return *global.Load()
}

// level falls back to info for empty or unknown names.
func level(name string) zerolog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "off" {
		return zerolog.Disabled
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
