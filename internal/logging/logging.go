// Package logging configures the per-run structured logger: JSON lines to
// stdout and to a per-run log file simultaneously, following the teacher
// pack's zerolog setup (jhkimqd-chaos-utils' reporting.NewLogger) rather
// than a hand-rolled log.Logger wrapper.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// New opens (creating if absent) the log file at logPath and returns a
// zerolog.Logger that writes every record to both stdout and that file,
// tagged with run_id. The returned io.Closer must be closed once the run
// completes; closing it does not affect stdout.
func New(runID, logPath string, level zerolog.Level) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return zerolog.Logger{}, nil, err
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}
	mw := io.MultiWriter(os.Stdout, f)
	logger := zerolog.New(mw).Level(level).With().Timestamp().Str("run_id", runID).Logger()
	return logger, f, nil
}
