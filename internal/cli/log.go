// Package cli implements the sceneweaver command-line interface.
//
// The commands load a video spec, resolve scene durations and render the
// scenes into a single video file, reusing cached scenes when a scene asks
// for it. The CLI is built using cobra and logs through charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - generate: Render a spec, or one of its top-level scenes, to video
//   - validate: Load a spec and resolve its durations without rendering
//   - timeline: Print the resolved start and duration of every scene
//   - graph: Draw the scene tree with Graphviz
//   - create: Write an example spec
//   - cache, clean: Inspect and clear the rendered scene cache
//   - serve: Read-only preview API
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
//
// # Configuration
//
// Optional settings live in $XDG_CONFIG_HOME/sceneweaver/config.toml; see
// [Config] for the keys.
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
// It is safe for sequential use by a single goroutine; concurrent calls to done will race.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as start.
// The returned progress should call done when the operation completes.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// The duration is rounded to the nearest millisecond.
// Example output: "Resolved 42 packages (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}
