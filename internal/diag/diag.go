// Package diag is the engine's diagnostic channel: non-fatal warnings (an
// infinite loop_find timeout, a failed retina backup preparation) are logged here
// unless the engine was constructed with suppress_warnings=true (spec §7).
//
// Grounded on the teacher's log/slog usage throughout domain/capture and
// debug/memstats.go; Channel generalizes that ad hoc *slog.Logger.Warn
// calling convention into a single gated entry point.
package diag

import "log/slog"

// Channel gates warnings behind a suppress flag, per the engine's
// suppress_warnings constructor option.
type Channel struct {
	logger   *slog.Logger
	suppress bool
}

// New returns a Channel that logs through logger unless suppress is true.
// A nil logger falls back to slog.Default().
func New(logger *slog.Logger, suppress bool) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{logger: logger, suppress: suppress}
}

// Warn emits a warning unless the channel was constructed with suppress=true.
func (c *Channel) Warn(msg string, args ...any) {
	if c == nil || c.suppress {
		return
	}
	c.logger.Warn(msg, args...)
}

// Logger exposes the underlying structured logger for non-warning,
// always-on diagnostics (e.g. GPU device selection at startup).
func (c *Channel) Logger() *slog.Logger {
	if c == nil {
		return slog.Default()
	}
	return c.logger
}
