package kms

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// The original C library exposes two knobs on its logger: a priority
// (silent/error/debug) and a pluggable handler, with a nil handler
// restoring the stderr default. We keep that same two-knob shape but
// build it on charmbracelet/log's leveled, structured logger instead
// of a raw vfprintf callback.

var (
	logMu     sync.Mutex
	logger    = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	logOutput io.Writer = os.Stderr
)

func init() {
	logger.SetLevel(log.ErrorLevel)
}

// SetLogPriority controls which log lines are emitted. Debug enables
// the allocator's per-Apply trace (reuse decisions, layer dump, plane
// disables and assignments); Error restricts logging to
// driver failures; Silent disables logging entirely.
func SetLogPriority(level log.Level) {
	logMu.Lock()
	defer logMu.Unlock()
	logger.SetLevel(level)
}

// SetLogHandler redirects log output to w. Passing nil restores the
// stderr default, matching the original library's "null handler
// restores stderr" behavior.
func SetLogHandler(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	logOutput = w
	logger.SetOutput(w)
}

func logHasDebug() bool {
	logMu.Lock()
	defer logMu.Unlock()
	return logger.GetLevel() <= log.DebugLevel
}
