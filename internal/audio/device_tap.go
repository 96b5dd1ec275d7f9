package audio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// deviceWatchInterval is how often the tap re-checks which device is
// the system default.
const deviceWatchInterval = time.Second

// DeviceTap attaches directly to the default input device (microphone
// capture) or the default output device in loopback mode (system-output
// capture) through the OS mixer. It is the lowest-latency variant but
// is invalidated when the default device changes, so it watches for
// that and reattaches.
type DeviceTap struct {
	cfg SourceConfig

	mu       sync.Mutex
	running  bool
	device   *malgo.Device
	malgoCtx *malgo.AllocatedContext
	rate     int
	channels int
	deviceID string

	samples  chan []float32
	errs     chan error
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewDeviceTap creates an unstarted device tap.
func NewDeviceTap(cfg SourceConfig) *DeviceTap {
	return &DeviceTap{
		cfg:      cfg,
		samples:  make(chan []float32, sourceChanDepth),
		errs:     make(chan error, sourceChanDepth),
		stopChan: make(chan struct{}),
	}
}

// Method identifies this variant.
func (d *DeviceTap) Method() Method { return MethodDeviceTap }

// Format returns the negotiated sample rate and channel count.
func (d *DeviceTap) Format() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rate, d.channels
}

// Samples delivers chunks of interleaved float32 PCM.
func (d *DeviceTap) Samples() <-chan []float32 { return d.samples }

// Errors delivers non-fatal capture errors.
func (d *DeviceTap) Errors() <-chan error { return d.errs }

// IsActive reports whether the tap is delivering samples.
func (d *DeviceTap) IsActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Start attaches to the default device and begins delivery. Returns an
// error without side effects when the device cannot be found, format
// negotiation fails, or the OS capture API rejects the request, letting
// the caller fall back to the next variant.
func (d *DeviceTap) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("device tap already running")
	}
	d.mu.Unlock()

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}

	// Loopback capture of the render device is only available on some
	// backends (WASAPI notably); elsewhere InitDevice refuses and the
	// session falls through to the virtual driver.
	if err := d.initDevice(malgoCtx); err != nil {
		malgoCtx.Uninit()
		malgoCtx.Free()
		return err
	}

	d.mu.Lock()
	d.malgoCtx = malgoCtx
	d.running = true
	d.deviceID = d.defaultDeviceName()
	d.mu.Unlock()

	d.wg.Add(1)
	go d.watchDevices(ctx)

	return nil
}

// initDevice negotiates and starts the malgo device. Callers hold no
// lock; the device is published under the lock on success.
func (d *DeviceTap) initDevice(malgoCtx *malgo.AllocatedContext) error {
	deviceType := malgo.Capture
	channels := uint32(1)
	if d.cfg.Kind == SystemOutput {
		deviceType = malgo.Loopback
		channels = 2
	}

	deviceConfig := malgo.DefaultDeviceConfig(deviceType)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = channels
	deviceConfig.SampleRate = SampleRate
	deviceConfig.PeriodSizeInFrames = FrameSize

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			if len(input) == 0 {
				return
			}
			chunk := bytesToFloat32(input)
			select {
			case d.samples <- chunk:
			default:
				// Consumer behind; drop rather than block the
				// audio callback.
				select {
				case d.errs <- fmt.Errorf("device tap overflow, dropping %d frames", frameCount):
				default:
				}
			}
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize %s device: %w", d.cfg.Kind, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start %s device: %w", d.cfg.Kind, err)
	}

	d.mu.Lock()
	d.device = device
	d.rate = SampleRate
	d.channels = int(channels)
	d.mu.Unlock()
	return nil
}

// watchDevices polls the default device identity and reattaches when it
// changes. Runs until Stop or context cancellation.
func (d *DeviceTap) watchDevices(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(deviceWatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			go d.Stop()
			return
		case <-d.stopChan:
			return
		case <-ticker.C:
			current := d.defaultDeviceName()
			d.mu.Lock()
			changed := current != "" && d.deviceID != "" && current != d.deviceID
			d.mu.Unlock()
			if changed {
				d.HandleDeviceChange(current)
			}
		}
	}
}

// HandleDeviceChange quiesces capture, locates the new default device,
// and resumes on it. If reattachment fails the tap goes inactive and
// the failure is reported through the error channel, not a crash.
func (d *DeviceTap) HandleDeviceChange(newDefault string) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	malgoCtx := d.malgoCtx
	old := d.device
	d.device = nil
	d.mu.Unlock()

	d.cfg.Logger.Info("default device changed, reattaching",
		"kind", d.cfg.Kind.String(), "device", newDefault)

	if old != nil {
		old.Stop()
		old.Uninit()
	}

	if err := d.initDevice(malgoCtx); err != nil {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		select {
		case d.errs <- fmt.Errorf("%w: %v", ErrDeviceLost, err):
		default:
		}
		return
	}

	d.mu.Lock()
	d.deviceID = newDefault
	d.mu.Unlock()
}

// defaultDeviceName returns the name of the current default device of
// the tap's kind, or "" when enumeration fails.
func (d *DeviceTap) defaultDeviceName() string {
	d.mu.Lock()
	malgoCtx := d.malgoCtx
	d.mu.Unlock()
	if malgoCtx == nil {
		return ""
	}

	deviceType := malgo.Capture
	if d.cfg.Kind == SystemOutput {
		deviceType = malgo.Playback
	}
	infos, err := malgoCtx.Devices(deviceType)
	if err != nil {
		return ""
	}
	for _, info := range infos {
		if info.IsDefault > 0 {
			return info.Name()
		}
	}
	if len(infos) > 0 {
		return infos[0].Name()
	}
	return ""
}

// Stop tears down the device and context. Safe to call more than once.
func (d *DeviceTap) Stop() error {
	d.mu.Lock()
	if !d.running && d.device == nil && d.malgoCtx == nil {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	device := d.device
	malgoCtx := d.malgoCtx
	d.device = nil
	d.malgoCtx = nil
	d.mu.Unlock()

	select {
	case <-d.stopChan:
	default:
		close(d.stopChan)
	}

	if device != nil {
		device.Stop()
		device.Uninit()
	}
	if malgoCtx != nil {
		malgoCtx.Uninit()
		malgoCtx.Free()
	}
	d.wg.Wait()
	return nil
}

// bytesToFloat32 reinterprets little-endian float32 PCM bytes as
// samples, copying so the audio callback's buffer can be reused.
func bytesToFloat32(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}
