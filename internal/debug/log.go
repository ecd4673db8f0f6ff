package debug

import (
	"io"
	"log/slog"
)

var nop = slog.New(slog.NewTextHandler(io.Discard, nil))

// Logger returns l, or a logger that drops every record when l is nil.
func Logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return nop
	}
	return l
}
