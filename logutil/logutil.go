// logutil.go - slog Logger-Setup fuer Server und Runner
//
// Dieses Modul enthaelt:
// - LevelTrace: zusaetzliches Level unterhalb von DEBUG
// - NewLogger: Text-Handler mit gekuerztem Source-Pfad
// - Trace/TraceContext: Helfer fuer das TRACE Level
// - WithRequestID/RequestID: Request-Korrelation ueber den Context
package logutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
)

// LevelTrace liegt unterhalb von slog.LevelDebug (DREAMO_DEBUG=2)
const LevelTrace slog.Level = -8

// NewLogger erstellt einen Text-Logger mit dem gegebenen Level
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				if lvl, ok := attr.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					attr.Value = slog.StringValue("TRACE")
				}
			case slog.SourceKey:
				if source, ok := attr.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
				}
			}
			return attr
		},
	}))
}

// Trace loggt auf TRACE Level mit dem Default-Logger
func Trace(msg string, args ...any) {
	TraceContext(context.Background(), msg, args...)
}

// TraceContext loggt auf TRACE Level mit Context
func TraceContext(ctx context.Context, msg string, args ...any) {
	slog.Log(ctx, LevelTrace, msg, args...)
}

type requestIDKey struct{}

// WithRequestID haengt eine Request-ID an den Context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID liest die Request-ID aus dem Context (leer wenn keine gesetzt)
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
