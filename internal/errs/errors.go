// Package errs declares the sentinel error values used across the
// simulator, following the taxonomy each component is expected to raise.
package errs

import "github.com/pkg/errors"

// Sentinel errors. Wrap with errors.Wrapf/errors.Wrap to attach context;
// test with errors.Is against these values.
var (
	// ErrBadConfig covers JSON schema violations, out-of-range numeric
	// fields, and unknown enum strings in a scenario or agent config.
	ErrBadConfig = errors.New("bad config")

	// ErrBadMap covers a missing map directory, an unreadable image, or
	// inconsistent shapes across floor layers.
	ErrBadMap = errors.New("bad map")

	// ErrUnknownZone is raised when an agent schedule or spec references
	// a mask name that is not present in the scenario.
	ErrUnknownZone = errors.New("unknown zone")

	// ErrNoRoute is raised when the pathfinder cannot connect a start and
	// destination cell (isolated transit clusters).
	ErrNoRoute = errors.New("no route")

	// ErrUnknownCell is raised when a coordinate is absent from the
	// optimized pathfinder's precomputed tables.
	ErrUnknownCell = errors.New("unknown cell")

	// ErrOutputConflict is raised when batch mode is refused because a
	// target output file already exists.
	ErrOutputConflict = errors.New("output conflict")

	// ErrWorkerFault wraps an exception raised inside a pipeline worker.
	ErrWorkerFault = errors.New("worker fault")

	// ErrWriteFault wraps an I/O failure while writing a result artifact.
	ErrWriteFault = errors.New("write fault")
)

// Wrap attaches a formatted message to a sentinel error while preserving
// errors.Is/errors.As compatibility with the sentinel.
func Wrap(sentinel error, format string, args ...interface{}) error {
	return errors.Wrapf(sentinel, format, args...)
}
