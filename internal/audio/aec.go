package audio

import "math"

// Canceller removes acoustic echo of the reference (far-end) signal
// from the near-end (microphone) signal, one FrameSize frame at a time.
//
// Ordering matters: ProcessReverseStream for a time slice must be called
// before ProcessStream for the same or any later slice. The canceller
// cannot remove an echo it has not yet seen a reference for, so a
// near-end frame arriving before any reference passes through unmodified.
//
// Implementations are not safe for concurrent use; the pipeline invokes
// them from a single consumer goroutine.
type Canceller interface {
	// ProcessReverseStream appends one reference frame to the rolling
	// far-end history. Frames of the wrong length are ignored.
	ProcessReverseStream(farEnd []float32)

	// ProcessStream returns the echo-suppressed version of one near-end
	// frame. The returned slice is freshly allocated.
	ProcessStream(nearEnd []float32) []float32

	// Reset clears history and estimate state. Used on device change
	// and session restart.
	Reset()
}

// Adaptive-filter tuning. The gain estimate is a pragmatic
// correlation-based approximation, not a textbook NLMS canceller; the
// bounds keep it stable when the correlation estimate is noisy.
const (
	adaptationRate = 0.3
	minEchoGain    = 0.1
	maxEchoGain    = 0.8
	powerEpsilon   = 1e-4

	// historyFrames is the far-end lookback, sized to cover typical
	// acoustic delay (40ms at 48kHz).
	historyFrames = 4
)

// AdaptiveCanceller is the built-in echo canceller: a per-sample
// weighted-lookback echo estimate with a correlation-bounded gain, an
// NLMS-style correction step, and residual-echo cleanup. Output is
// clamped to [-1, 1] at every stage.
type AdaptiveCanceller struct {
	history       []float32 // rolling far-end history, newest at the end
	seenReference bool
}

// NewAdaptiveCanceller creates a canceller with an empty reference
// history.
func NewAdaptiveCanceller() *AdaptiveCanceller {
	return &AdaptiveCanceller{
		history: make([]float32, historyFrames*FrameSize),
	}
}

// ProcessReverseStream shifts the rolling history left by one frame and
// appends the new reference samples at the end.
func (c *AdaptiveCanceller) ProcessReverseStream(farEnd []float32) {
	if len(farEnd) != FrameSize {
		return
	}
	copy(c.history, c.history[FrameSize:])
	copy(c.history[len(c.history)-FrameSize:], farEnd)
	c.seenReference = true
}

// ProcessStream estimates the echo present in one near-end frame from
// recent reference history and subtracts it. Without any buffered
// reference the frame passes through unmodified: silence is worse than
// a temporarily uncancelled signal.
func (c *AdaptiveCanceller) ProcessStream(nearEnd []float32) []float32 {
	out := make([]float32, len(nearEnd))
	if len(nearEnd) != FrameSize || !c.seenReference {
		copy(out, nearEnd)
		return out
	}

	histLen := len(c.history)
	for i := 0; i < FrameSize; i++ {
		histIdx := histLen - FrameSize + i

		// Weighted average over the last FrameSize history samples,
		// more weight on more-recent ones. This stands in for the room
		// impulse response.
		var echoEst, weightSum float32
		for j := 0; j < FrameSize && histIdx >= j; j++ {
			w := 1.0 / (1.0 + float32(j)*0.1)
			echoEst += c.history[histIdx-j] * w
			weightSum += w
		}
		if weightSum > 0 {
			echoEst /= weightSum
		}

		// Gain from the instantaneous correlation between near-end and
		// estimated echo, bounded to keep a noisy estimate stable.
		nearPower := nearEnd[i] * nearEnd[i]
		refPower := echoEst * echoEst

		gain := float32(minEchoGain)
		if refPower > powerEpsilon && nearPower > powerEpsilon {
			corr := abs32(nearEnd[i]*echoEst) / (sqrt32(nearPower*refPower) + powerEpsilon)
			if corr > 1 {
				corr = 1
			}
			gain = minEchoGain + (maxEchoGain-minEchoGain)*corr
		}
		echoEst *= gain

		// One NLMS-style correction step toward the residual error.
		err := nearEnd[i] - echoEst
		step := adaptationRate * err / (refPower + powerEpsilon)
		echoEst += step * c.history[histIdx]
		echoEst = clamp1(echoEst)

		sample := nearEnd[i] - echoEst

		// Residual cleanup: an output that still closely resembles the
		// echo estimate in magnitude is mostly leftover echo.
		outMag := abs32(sample)
		echoMag := abs32(echoEst)
		if outMag > 0.01 && echoMag > 0.05 && outMag < echoMag*1.5 {
			sample *= 0.2
		}

		out[i] = clamp1(sample)
	}
	return out
}

// Reset clears the far-end history and returns the canceller to the
// pass-through state.
func (c *AdaptiveCanceller) Reset() {
	clear(c.history)
	c.seenReference = false
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func sqrt32(v float32) float32 {
	if v <= 0 {
		return 0
	}
	return float32(math.Sqrt(float64(v)))
}

func clamp1(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
