package codec

import (
	"log/slog"

	"github.com/blastbao/gomem/fbreflect/internal/debug"
)

// Option configures a Reader or a Writer.
type Option func(*options)

type options struct {
	forceDefaults bool
	log           *slog.Logger
}

// WithForceDefaults makes a Reader return nil for scalar fields absent from
// the buffer instead of their declared default.
func WithForceDefaults() Option {
	return func(o *options) { o.forceDefaults = true }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.log = debug.Logger(o.log)
	return o
}
