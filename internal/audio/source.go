package audio

import (
	"context"
	"errors"
	"log/slog"

	"github.com/emmett/echotap/internal/observe"
)

// Kind selects which side of the machine a source captures.
type Kind int

const (
	// Microphone captures the default input device (near-end signal).
	Microphone Kind = iota

	// SystemOutput captures what the machine is playing (far-end
	// reference signal).
	SystemOutput
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case Microphone:
		return "microphone"
	case SystemOutput:
		return "system-output"
	default:
		return "unknown"
	}
}

// Method identifies which capture strategy a session ended up using.
// The shell reports it to the user, since some methods carry a visible
// capture indicator.
type Method int

const (
	// MethodDeviceTap attaches directly to the default device at the OS
	// mixer level. Lowest latency; invalidated by default-device changes.
	MethodDeviceTap Method = iota

	// MethodVirtualDriver reads the shared-memory ring fed by the
	// out-of-process virtual device. Immune to default-device changes
	// but requires the driver to be installed.
	MethodVirtualDriver

	// MethodScreenShare captures audio as a side effect of a screen
	// capture grant. Highest latency, visible indicator; last resort.
	MethodScreenShare
)

// String returns the human-readable name of the method.
func (m Method) String() string {
	switch m {
	case MethodDeviceTap:
		return "device-tap"
	case MethodVirtualDriver:
		return "virtual-driver"
	case MethodScreenShare:
		return "screen-share"
	default:
		return "unknown"
	}
}

// Sentinel errors surfaced by sources and the session.
var (
	// ErrAllSourcesFailed means every capture variant in the fallback
	// order refused to start.
	ErrAllSourcesFailed = errors.New("all capture sources failed to start")

	// ErrDriverUnavailable means the virtual device's shared-memory
	// ring is absent or not producing.
	ErrDriverUnavailable = errors.New("virtual audio driver unavailable")

	// ErrNoLoopbackDevice means no monitor/loopback input could be
	// found for system-output capture.
	ErrNoLoopbackDevice = errors.New("no loopback capture device found")

	// ErrAlreadyCapturing means Start was called on a session that is
	// already delivering samples.
	ErrAlreadyCapturing = errors.New("session already capturing")

	// ErrDeviceLost means the capture device disappeared and could not
	// be reattached.
	ErrDeviceLost = errors.New("capture device lost")
)

// Source is one capture strategy. It produces raw interleaved float32
// PCM at its native format and delivers it through the Samples channel.
//
// Start returns an error (rather than panicking or blocking) when the
// targeted device or driver cannot be found, format negotiation fails,
// or the OS capture API rejects the request; the caller then tries the
// next variant in the fallback order. Delivery never blocks the
// producing context: when the consumer falls behind, chunks are dropped
// and an error is posted on the Errors channel.
type Source interface {
	// Start begins capture. The context bounds the source's lifetime;
	// cancelling it is equivalent to Stop.
	Start(ctx context.Context) error

	// Stop tears down capture. Idempotent.
	Stop() error

	// IsActive reports whether the source is currently delivering.
	IsActive() bool

	// Format returns the native sample rate and channel count, valid
	// after a successful Start.
	Format() (sampleRate, channels int)

	// Samples delivers chunks of interleaved native-format samples.
	Samples() <-chan []float32

	// Errors delivers non-fatal capture errors (overflow drops, device
	// loss after failed reattachment).
	Errors() <-chan error

	// Method identifies the capture strategy.
	Method() Method
}

// SourceConfig carries the knobs shared by all capture variants.
type SourceConfig struct {
	// Kind selects microphone or system-output capture.
	Kind Kind

	// DeviceName optionally pins capture to a named device instead of
	// the default.
	DeviceName string

	// RingName is the shared-memory segment fed by the virtual driver.
	RingName string

	// Logger receives capture diagnostics. Must not be nil.
	Logger *slog.Logger

	// Metrics receives capture instrumentation; nil means the
	// package-level default.
	Metrics *observe.Metrics
}

// sourceChanDepth is the buffer depth of a source's sample channel:
// enough to absorb scheduler jitter on the consumer side without adding
// meaningful latency.
const sourceChanDepth = 32

// FallbackOrder returns the capture variants to try for a kind, in
// fixed preference order.
func FallbackOrder(cfg SourceConfig) []Source {
	switch cfg.Kind {
	case SystemOutput:
		return []Source{
			NewDeviceTap(cfg),
			NewDriverTap(cfg),
			NewScreenShareTap(cfg),
		}
	default:
		// Near-end capture has no driver or screen-share route; the
		// microphone is an ordinary input device.
		return []Source{NewDeviceTap(cfg)}
	}
}
