package audio

import (
	"math"
	"testing"
)

func TestDownmix_StereoAveragesChannels(t *testing.T) {
	in := []float32{1, -1, 0.5, 0.5, 0, 0.8}
	got := Downmix(in, 2)
	want := []float32{0, 0.5, 0.4}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDownmix_MonoPassesThrough(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	got := Downmix(in, 1)
	if len(got) != 3 {
		t.Fatalf("got %d samples, want 3", len(got))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], in[i])
		}
	}
}

func TestDownmix_IdenticalChannelsPreserved(t *testing.T) {
	in := []float32{0.7, 0.7, -0.3, -0.3}
	got := Downmix(in, 2)
	if got[0] != 0.7 || got[1] != -0.3 {
		t.Errorf("got %v, want [0.7 -0.3]", got)
	}
}

func TestResample_EqualRatesPassThrough(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	got := Resample(in, 48000, 48000)
	if len(got) != 3 {
		t.Fatalf("got %d samples, want 3", len(got))
	}
}

func TestResample_OutputLength(t *testing.T) {
	cases := []struct {
		name           string
		inRate, n      int
		outRate, wantN int
	}{
		{"44100_to_48000", 44100, 441, 48000, 480},
		{"16000_to_48000", 16000, 160, 48000, 480},
		{"96000_to_48000", 96000, 960, 48000, 480},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := make([]float32, tc.n)
			got := Resample(in, tc.inRate, tc.outRate)
			if len(got) != tc.wantN {
				t.Errorf("got %d samples, want %d", len(got), tc.wantN)
			}
		})
	}
}

func TestResample_ConstantSignalStaysConstant(t *testing.T) {
	in := make([]float32, 441)
	for i := range in {
		in[i] = 0.25
	}
	got := Resample(in, 44100, 48000)
	for i, s := range got {
		if math.Abs(float64(s-0.25)) > 1e-6 {
			t.Fatalf("sample %d = %v, want 0.25", i, s)
		}
	}
}

func TestResample_LinearRampInterpolates(t *testing.T) {
	// A straight ramp should survive linear interpolation exactly at
	// interior points.
	in := make([]float32, 100)
	for i := range in {
		in[i] = float32(i) / 100
	}
	got := Resample(in, 24000, 48000)
	for i := 1; i < len(got)-2; i++ {
		prev, next := got[i-1], got[i+1]
		if got[i] < prev || got[i] > next {
			t.Fatalf("sample %d = %v breaks monotonic ramp (%v, %v)", i, got[i], prev, next)
		}
	}
}

func TestNormalize_StereoHighRateToPipelineFormat(t *testing.T) {
	n := Normalizer{InRate: 96000, Channels: 2}
	// 20ms of stereo audio at 96kHz: 1920 frames, 3840 samples.
	in := make([]float32, 3840)
	for i := range in {
		in[i] = 0.5
	}
	got := n.Normalize(in)
	if len(got) != 2*FrameSize {
		t.Fatalf("got %d samples, want %d", len(got), 2*FrameSize)
	}
	for i, s := range got {
		if math.Abs(float64(s-0.5)) > 1e-6 {
			t.Fatalf("sample %d = %v, want 0.5", i, s)
		}
	}
}

func TestNormalize_PipelineFormatPassesThrough(t *testing.T) {
	n := Normalizer{InRate: SampleRate, Channels: 1}
	in := make([]float32, FrameSize)
	got := n.Normalize(in)
	if len(got) != FrameSize {
		t.Fatalf("got %d samples, want %d", len(got), FrameSize)
	}
}
