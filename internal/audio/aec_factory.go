package audio

import (
	"errors"
	"log/slog"
)

// errAEC3Unavailable means no high-fidelity canceller is linked into
// this build.
var errAEC3Unavailable = errors.New("AEC3 engine not linked in this build")

// newAEC3 constructs the high-fidelity echo canceller. The default
// build carries none; a cgo integration can replace this constructor
// without touching any caller.
func newAEC3() (Canceller, error) {
	return nil, errAEC3Unavailable
}

// NewCanceller returns the best canceller available: the high-fidelity
// engine when it initializes, otherwise the built-in adaptive filter.
// Callers never see an error from the degradation, only a debug log.
func NewCanceller(logger *slog.Logger) Canceller {
	if logger == nil {
		logger = slog.Default()
	}
	if c, err := newAEC3(); err == nil {
		logger.Debug("echo canceller: using AEC3 engine")
		return c
	} else {
		logger.Debug("echo canceller: using adaptive filter", "reason", err)
	}
	return NewAdaptiveCanceller()
}
