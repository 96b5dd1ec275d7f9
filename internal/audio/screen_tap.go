package audio

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// monitorHints match the names loopback and monitor inputs carry on
// the host APIs where they show up as regular capture devices.
var monitorHints = []string{"monitor", "loopback", "stereo mix", "what u hear"}

// ScreenShareTap is the last-resort system-output variant. It opens a
// monitor style input device through PortAudio, which on most systems
// is the capture path screen-sharing apps use. Higher latency and
// lower fidelity than the other variants, but it needs no driver.
type ScreenShareTap struct {
	cfg SourceConfig

	mu      sync.Mutex
	running bool
	stream  *portaudio.Stream
	rate    int

	samples  chan []float32
	errs     chan error
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScreenShareTap creates an unstarted screen-share tap.
func NewScreenShareTap(cfg SourceConfig) *ScreenShareTap {
	return &ScreenShareTap{
		cfg:      cfg,
		samples:  make(chan []float32, sourceChanDepth),
		errs:     make(chan error, sourceChanDepth),
		stopChan: make(chan struct{}),
	}
}

// Method identifies this variant.
func (s *ScreenShareTap) Method() Method { return MethodScreenShare }

// Format returns the negotiated sample rate; the tap always opens mono.
func (s *ScreenShareTap) Format() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate, 1
}

// Samples delivers chunks of mono float32 PCM.
func (s *ScreenShareTap) Samples() <-chan []float32 { return s.samples }

// Errors delivers non-fatal capture errors.
func (s *ScreenShareTap) Errors() <-chan error { return s.errs }

// IsActive reports whether the tap is delivering samples.
func (s *ScreenShareTap) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start locates a monitor input device and begins streaming from it.
// Returns ErrNoLoopbackDevice when the host exposes none.
func (s *ScreenShareTap) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("screen share tap already running")
	}
	s.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	device, err := s.findMonitorDevice()
	if err != nil {
		portaudio.Terminate()
		return err
	}

	rate := int(device.DefaultSampleRate)
	if rate <= 0 {
		rate = SampleRate
	}

	buffer := make([]float32, rate/100)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: len(buffer),
	}, buffer)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open monitor stream on %q: %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start monitor stream: %w", err)
	}

	s.mu.Lock()
	s.stream = stream
	s.rate = rate
	s.running = true
	s.mu.Unlock()

	s.cfg.Logger.Info("screen share tap attached",
		"device", device.Name, "sample_rate", rate)

	s.wg.Add(1)
	go s.readLoop(ctx, stream, buffer)
	return nil
}

// findMonitorDevice scans input devices for a monitor or loopback
// endpoint, honoring an explicit device name from the config first.
func (s *ScreenShareTap) findMonitorDevice() (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	if s.cfg.DeviceName != "" {
		for _, d := range devices {
			if d.MaxInputChannels > 0 && d.Name == s.cfg.DeviceName {
				return d, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrNoLoopbackDevice, s.cfg.DeviceName)
	}

	for _, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		name := strings.ToLower(d.Name)
		for _, hint := range monitorHints {
			if strings.Contains(name, hint) {
				return d, nil
			}
		}
	}
	return nil, ErrNoLoopbackDevice
}

func (s *ScreenShareTap) readLoop(ctx context.Context, stream *portaudio.Stream, buffer []float32) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			go s.Stop()
			return
		case <-s.stopChan:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			s.mu.Lock()
			active := s.running
			s.mu.Unlock()
			if active {
				select {
				case s.errs <- fmt.Errorf("%w: monitor read: %v", ErrDeviceLost, err):
				default:
				}
			}
			return
		}

		chunk := make([]float32, len(buffer))
		copy(chunk, buffer)
		select {
		case s.samples <- chunk:
		default:
			select {
			case s.errs <- fmt.Errorf("screen share tap overflow, dropping %d samples", len(chunk)):
			default:
			}
		}
	}
}

// Stop halts the stream and releases the host API. Safe to call more
// than once.
func (s *ScreenShareTap) Stop() error {
	s.mu.Lock()
	if !s.running && s.stream == nil {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}

	if stream != nil {
		stream.Stop()
		stream.Close()
		portaudio.Terminate()
	}
	s.wg.Wait()
	return nil
}
