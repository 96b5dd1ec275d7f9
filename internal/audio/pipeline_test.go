package audio

import (
	"context"
	"testing"
	"time"
)

// scriptedCanceller records the order of canceller calls.
type scriptedCanceller struct {
	calls []string
}

func (s *scriptedCanceller) ProcessReverseStream(farEnd []float32) {
	s.calls = append(s.calls, "reverse")
}

func (s *scriptedCanceller) ProcessStream(nearEnd []float32) []float32 {
	s.calls = append(s.calls, "stream")
	out := make([]float32, len(nearEnd))
	copy(out, nearEnd)
	return out
}

func (s *scriptedCanceller) Reset() {}

// runPipeline feeds the given chunk sequences through a pipeline and
// returns the emitted frames after both inputs close.
func runPipeline(t *testing.T, c Canceller, refChunks, nearChunks [][]float32) []Frame {
	t.Helper()

	refCh := make(chan []float32)
	nearCh := make(chan []float32)
	p := NewPipeline(c, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		var ref *StreamInput
		if refChunks != nil {
			ref = &StreamInput{Samples: refCh, Rate: SampleRate, Channels: 1}
		}
		p.Run(ctx, ref, &StreamInput{Samples: nearCh, Rate: SampleRate, Channels: 1})
	}()

	// Unbuffered sends so delivery order is deterministic.
	for _, chunk := range refChunks {
		refCh <- chunk
	}
	for _, chunk := range nearChunks {
		nearCh <- chunk
	}
	close(refCh)
	close(nearCh)

	var frames []Frame
	for frame := range p.Out() {
		frames = append(frames, frame)
	}
	<-done
	return frames
}

func TestPipeline_ReferenceProcessedBeforeNearEnd(t *testing.T) {
	c := &scriptedCanceller{}
	runPipeline(t, c,
		[][]float32{make([]float32, FrameSize)},
		[][]float32{make([]float32, FrameSize)},
	)

	if len(c.calls) != 2 {
		t.Fatalf("got %d canceller calls, want 2: %v", len(c.calls), c.calls)
	}
	if c.calls[0] != "reverse" || c.calls[1] != "stream" {
		t.Errorf("call order = %v, want [reverse stream]", c.calls)
	}
}

func TestPipeline_QueuedReferenceDrainedFirst(t *testing.T) {
	c := &scriptedCanceller{}
	runPipeline(t, c,
		[][]float32{make([]float32, 3*FrameSize)},
		[][]float32{make([]float32, FrameSize)},
	)

	want := []string{"reverse", "reverse", "reverse", "stream"}
	if len(c.calls) != len(want) {
		t.Fatalf("got %d canceller calls, want %d: %v", len(c.calls), len(want), c.calls)
	}
	for i := range want {
		if c.calls[i] != want[i] {
			t.Fatalf("call order = %v, want %v", c.calls, want)
		}
	}
}

func TestPipeline_EmitsTaggedFrames(t *testing.T) {
	frames := runPipeline(t, &scriptedCanceller{},
		[][]float32{make([]float32, FrameSize)},
		[][]float32{make([]float32, 2*FrameSize)},
	)

	var refs, nears int
	for _, f := range frames {
		switch f.Tag {
		case Reference:
			refs++
		case NearEnd:
			nears++
		}
		if len(f.Samples) != FrameSize {
			t.Fatalf("frame has %d samples, want %d", len(f.Samples), FrameSize)
		}
	}
	if refs != 1 || nears != 2 {
		t.Errorf("got %d reference and %d near-end frames, want 1 and 2", refs, nears)
	}
}

func TestPipeline_MicOnlyWithoutReference(t *testing.T) {
	in := make([]float32, FrameSize)
	for i := range in {
		in[i] = 0.3
	}
	frames := runPipeline(t, NewAdaptiveCanceller(), nil, [][]float32{in})

	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	for i, s := range frames[0].Samples {
		if s != 0.3 {
			t.Fatalf("sample %d = %v, want pass-through 0.3", i, s)
		}
	}
}

func TestPipeline_NormalizesInputFormats(t *testing.T) {
	// Stereo at 96kHz: 20ms is 3840 interleaved samples, which should
	// normalize down to exactly two pipeline frames.
	in := make([]float32, 3840)
	nearCh := make(chan []float32)
	p := NewPipeline(&scriptedCanceller{}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx, nil, &StreamInput{Samples: nearCh, Rate: 96000, Channels: 2})
	}()
	nearCh <- in
	close(nearCh)

	count := 0
	for frame := range p.Out() {
		count++
		if len(frame.Samples) != FrameSize {
			t.Fatalf("frame has %d samples, want %d", len(frame.Samples), FrameSize)
		}
	}
	<-done
	if count != 2 {
		t.Errorf("got %d frames, want 2", count)
	}
}
