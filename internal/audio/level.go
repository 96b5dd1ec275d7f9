package audio

import (
	"math"
)

// MeterConfig holds configuration for the level meter
type MeterConfig struct {
	// Smoothing is the exponential smoothing factor applied to RMS
	// readings. 0 disables smoothing; values near 1 respond slowly.
	Smoothing float64

	// SilenceThreshold is the RMS level below which a frame counts as
	// silent. Typical values: 0.001 to 0.01
	SilenceThreshold float64

	// SilenceFrames is the number of consecutive silent frames before
	// the meter reports the stream as silent. 100 frames = 1s at the
	// pipeline's 10ms cadence.
	SilenceFrames int
}

// DefaultMeterConfig returns a default meter configuration
func DefaultMeterConfig() MeterConfig {
	return MeterConfig{
		Smoothing:        0.8,
		SilenceThreshold: 0.003,
		SilenceFrames:    100, // 1s of silence
	}
}

// Meter tracks the level of one audio stream: smoothed RMS, peak, and
// a silence gate used by the console VU display
type Meter struct {
	config       MeterConfig
	smoothed     float64
	peak         float64
	silentFrames int
	active       bool
}

// NewMeter creates a new level meter
func NewMeter(config MeterConfig) *Meter {
	return &Meter{config: config}
}

// ProcessFrame updates the meter with one frame of samples and returns
// the smoothed RMS level
func (m *Meter) ProcessFrame(samples []float32) float64 {
	rms := RMS(samples)

	if m.smoothed == 0 {
		m.smoothed = rms
	} else {
		a := m.config.Smoothing
		m.smoothed = a*m.smoothed + (1-a)*rms
	}
	if rms > m.peak {
		m.peak = rms
	}

	if rms < m.config.SilenceThreshold {
		m.silentFrames++
		if m.silentFrames >= m.config.SilenceFrames {
			m.active = false
		}
	} else {
		m.silentFrames = 0
		m.active = true
	}

	return m.smoothed
}

// Level returns the current smoothed RMS level
func (m *Meter) Level() float64 {
	return m.smoothed
}

// Peak returns the highest RMS seen since the last Reset
func (m *Meter) Peak() float64 {
	return m.peak
}

// IsActive reports whether the stream has carried signal recently
func (m *Meter) IsActive() bool {
	return m.active
}

// Reset clears the meter state
func (m *Meter) Reset() {
	m.smoothed = 0
	m.peak = 0
	m.silentFrames = 0
	m.active = false
}

// RMS calculates the root mean square energy of a sample buffer
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// LevelDB converts an RMS level to decibels relative to full scale,
// clamped at -96 dB for silence
func LevelDB(rms float64) float64 {
	if rms <= 0 {
		return -96
	}
	db := 20 * math.Log10(rms)
	if db < -96 {
		return -96
	}
	return db
}
