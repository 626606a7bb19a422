// Package logging provides the single slog.Logger this module's
// background workers and teardown paths log through, following the
// direct log/slog usage pattern used elsewhere in the wider dora-rs Go
// ecosystem's server components.
package logging

import (
	"log/slog"
	"os"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

// L returns the logger this module currently logs through.
func L() *slog.Logger {
	return current.Load()
}

// SetDefault overrides the logger used by this module, letting an
// embedding application route dora-node-go's logs into its own
// structured logging pipeline.
func SetDefault(l *slog.Logger) {
	current.Store(l)
}
