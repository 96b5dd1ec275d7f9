package audio

import (
	"math"
	"math/rand"
	"testing"
)

// toneFrame generates one frame of a sine tone at the given frequency
// and amplitude, continuing from sample offset.
func toneFrame(freq float64, amp float32, offset int) []float32 {
	frame := make([]float32, FrameSize)
	for i := range frame {
		phase := 2 * math.Pi * freq * float64(offset+i) / float64(SampleRate)
		frame[i] = amp * float32(math.Sin(phase))
	}
	return frame
}

func energy(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return sum / float64(len(samples))
}

func TestAdaptiveCanceller_PassThroughBeforeReference(t *testing.T) {
	c := NewAdaptiveCanceller()
	in := toneFrame(440, 0.5, 0)
	out := c.ProcessStream(in)
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d modified before any reference: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestAdaptiveCanceller_SuppressesCorrelatedEcho(t *testing.T) {
	c := NewAdaptiveCanceller()

	// Feed the same tone as both playback and mic pickup; the near end
	// is pure echo, so its energy should drop noticeably.
	var inTotal, outTotal float64
	for f := 0; f < 50; f++ {
		offset := f * FrameSize
		ref := toneFrame(440, 0.8, offset)
		near := toneFrame(440, 0.4, offset)

		c.ProcessReverseStream(ref)
		out := c.ProcessStream(near)

		// Skip the first few frames while the estimate settles.
		if f >= 5 {
			inTotal += energy(near)
			outTotal += energy(out)
		}
	}

	if outTotal >= inTotal {
		t.Fatalf("echo not reduced: in energy %v, out energy %v", inTotal, outTotal)
	}
	if ratio := outTotal / inTotal; ratio > 0.8 {
		t.Errorf("echo reduction too weak: output/input energy ratio = %v", ratio)
	}
}

func TestAdaptiveCanceller_OutputStaysInRange(t *testing.T) {
	c := NewAdaptiveCanceller()
	rng := rand.New(rand.NewSource(7))

	for f := 0; f < 20; f++ {
		ref := make([]float32, FrameSize)
		near := make([]float32, FrameSize)
		for i := range ref {
			// Deliberately hot signals to push the estimator around.
			ref[i] = rng.Float32()*4 - 2
			near[i] = rng.Float32()*4 - 2
		}
		c.ProcessReverseStream(ref)
		out := c.ProcessStream(near)
		for i, s := range out {
			if s > 1 || s < -1 {
				t.Fatalf("frame %d sample %d = %v out of range", f, i, s)
			}
		}
	}
}

func TestAdaptiveCanceller_ResetRestoresPassThrough(t *testing.T) {
	c := NewAdaptiveCanceller()
	c.ProcessReverseStream(toneFrame(440, 0.8, 0))
	c.ProcessStream(toneFrame(440, 0.4, 0))

	c.Reset()

	in := toneFrame(300, 0.3, 0)
	out := c.ProcessStream(in)
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d modified after reset: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestAdaptiveCanceller_ShortFramePassesThrough(t *testing.T) {
	c := NewAdaptiveCanceller()
	c.ProcessReverseStream(toneFrame(440, 0.8, 0))

	in := []float32{0.1, 0.2, 0.3}
	out := c.ProcessStream(in)
	if len(out) != len(in) {
		t.Fatalf("got %d samples, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestNewCanceller_FallsBackToAdaptive(t *testing.T) {
	c := NewCanceller(nil)
	if _, ok := c.(*AdaptiveCanceller); !ok {
		t.Fatalf("got %T, want *AdaptiveCanceller", c)
	}
}
