package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/emmett/echotap/internal/observe"
	"github.com/emmett/echotap/internal/transport"
)

// drainInterval paces the ring consumer at roughly one pipeline frame.
const drainInterval = 10 * time.Millisecond

// DriverTap consumes system-output audio from the shared-memory ring
// populated by the virtual audio driver. It works regardless of which
// application is playing audio, at the cost of requiring the driver to
// be installed and active.
type DriverTap struct {
	cfg     SourceConfig
	metrics *observe.Metrics

	mu      sync.Mutex
	running bool
	ring    *transport.Ring

	samples  chan []float32
	errs     chan error
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewDriverTap creates an unstarted driver tap reading the named
// segment (falls back to transport.DefaultName when unset).
func NewDriverTap(cfg SourceConfig) *DriverTap {
	if cfg.RingName == "" {
		cfg.RingName = transport.DefaultName
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &DriverTap{
		cfg:      cfg,
		metrics:  metrics,
		samples:  make(chan []float32, sourceChanDepth),
		errs:     make(chan error, sourceChanDepth),
		stopChan: make(chan struct{}),
	}
}

// DriverAvailable reports whether the virtual driver's shared-memory
// segment exists, without attaching to it. Used by device listing and
// the probe command.
func DriverAvailable(name string) bool {
	if name == "" {
		name = transport.DefaultName
	}
	return transport.Exists(name)
}

// Method identifies this variant.
func (t *DriverTap) Method() Method { return MethodVirtualDriver }

// Format returns the rate and channel count advertised by the driver.
func (t *DriverTap) Format() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ring == nil {
		return 0, 0
	}
	return t.ring.SampleRate(), t.ring.Channels()
}

// Samples delivers chunks of interleaved float32 PCM.
func (t *DriverTap) Samples() <-chan []float32 { return t.samples }

// Errors delivers non-fatal capture errors.
func (t *DriverTap) Errors() <-chan error { return t.errs }

// IsActive reports whether the tap is draining the ring.
func (t *DriverTap) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Start attaches to the driver's ring and begins draining it. Fails
// cleanly with ErrDriverUnavailable when the segment does not exist so
// the session can fall through to the next variant.
func (t *DriverTap) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return fmt.Errorf("driver tap already running")
	}
	t.mu.Unlock()

	ring, err := transport.Attach(t.cfg.RingName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDriverUnavailable, err)
	}
	if ring.SampleRate() == 0 || ring.Channels() == 0 {
		ring.Close()
		return fmt.Errorf("%w: segment %q has no negotiated format", ErrDriverUnavailable, t.cfg.RingName)
	}

	ring.SetActive(true)

	t.mu.Lock()
	t.ring = ring
	t.running = true
	t.mu.Unlock()

	t.wg.Add(1)
	go t.drain(ctx)
	return nil
}

// drain polls the ring on a frame-sized cadence and forwards whatever
// has accumulated. Partial and empty reads are normal; the driver side
// may pause between songs or screen shares.
func (t *DriverTap) drain(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	// Size the scratch buffer for one tick at the ring's own format.
	frames := t.ringFrameSize()
	buf := make([]float32, frames*4)
	var seenOverruns uint64

	for {
		select {
		case <-ctx.Done():
			go t.Stop()
			return
		case <-t.stopChan:
			return
		case <-ticker.C:
			t.mu.Lock()
			ring := t.ring
			t.mu.Unlock()
			if ring == nil {
				return
			}
			n := ring.Read(buf)
			if o := ring.Overruns(); o > seenOverruns {
				t.metrics.RingOverruns.Add(ctx, int64(o-seenOverruns))
				seenOverruns = o
			}
			if n == 0 {
				continue
			}
			chunk := make([]float32, n)
			copy(chunk, buf[:n])
			select {
			case t.samples <- chunk:
			default:
				select {
				case t.errs <- fmt.Errorf("driver tap overflow, dropping %d samples", n):
				default:
				}
			}
		}
	}
}

func (t *DriverTap) ringFrameSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ring == nil {
		return FrameSize
	}
	n := t.ring.SampleRate() / 100 * t.ring.Channels()
	if n <= 0 {
		n = FrameSize
	}
	return n
}

// Stop clears the active flag so the driver can stop producing, then
// detaches. Safe to call more than once.
func (t *DriverTap) Stop() error {
	t.mu.Lock()
	if !t.running && t.ring == nil {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	ring := t.ring
	t.ring = nil
	t.mu.Unlock()

	select {
	case <-t.stopChan:
	default:
		close(t.stopChan)
	}
	t.wg.Wait()

	if ring != nil {
		ring.SetActive(false)
		ring.Close()
	}
	return nil
}
