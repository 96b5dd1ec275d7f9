package audio

// Pipeline format. Every stage downstream of a capture source operates
// on mono float32 samples at this rate.
const (
	// SampleRate is the pipeline sample rate in Hz.
	SampleRate = 48000

	// FrameSize is the number of mono samples in one canceller frame
	// (10ms at 48kHz).
	FrameSize = 480
)

// Downmix reduces interleaved multi-channel audio to mono by averaging
// the channels of each frame. A channel count of 1 returns the input
// unchanged; degenerate inputs (no frames, non-positive channels) yield
// an empty output rather than a fault.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels == 1 {
		return interleaved
	}
	if channels <= 0 || len(interleaved) == 0 {
		return nil
	}

	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	inv := 1.0 / float32(channels)
	for i := 0; i < frames; i++ {
		var sum float32
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += interleaved[base+c]
		}
		mono[i] = sum * inv
	}
	return mono
}

// Resample converts mono audio from inRate to outRate using linear
// interpolation: output index i maps to source position i*inRate/outRate
// and blends the two neighbouring samples by the fractional part. The
// trailing edge holds the last valid sample. Equal rates return the
// input unchanged; zero-length input or non-positive rates yield a
// zero-filled (empty) output, never a fault.
func Resample(mono []float32, inRate, outRate int) []float32 {
	if inRate == outRate {
		return mono
	}
	if len(mono) == 0 || inRate <= 0 || outRate <= 0 {
		return nil
	}

	outLen := int(int64(len(mono)) * int64(outRate) / int64(inRate))
	if outLen == 0 {
		return nil
	}

	out := make([]float32, outLen)
	ratio := float64(inRate) / float64(outRate)
	for i := range out {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := float32(srcPos - float64(idx))

		if idx >= len(mono)-1 {
			out[i] = mono[len(mono)-1]
			continue
		}
		out[i] = mono[idx]*(1-frac) + mono[idx+1]*frac
	}
	return out
}

// Normalizer converts a source's native format to the pipeline format.
// It is pure aside from the rate parameters; one instance per stream.
type Normalizer struct {
	InRate   int
	Channels int
}

// Normalize downmixes and resamples one chunk of interleaved native
// samples into mono samples at the pipeline rate.
func (n Normalizer) Normalize(interleaved []float32) []float32 {
	mono := Downmix(interleaved, n.Channels)
	return Resample(mono, n.InRate, SampleRate)
}
