package audio

import (
	"testing"
)

func TestAssembler_NoFrameUntilFull(t *testing.T) {
	a := NewAssembler(NearEnd)
	a.AddSamples(make([]float32, FrameSize-1))
	if _, ok := a.TryGetFrame(); ok {
		t.Fatal("got a frame from fewer than FrameSize samples")
	}
	a.AddSamples(make([]float32, 1))
	frame, ok := a.TryGetFrame()
	if !ok {
		t.Fatal("expected a frame after FrameSize samples")
	}
	if len(frame.Samples) != FrameSize {
		t.Errorf("frame has %d samples, want %d", len(frame.Samples), FrameSize)
	}
	if frame.Tag != NearEnd {
		t.Errorf("frame tag = %v, want %v", frame.Tag, NearEnd)
	}
}

func TestAssembler_FramesAreDisjointAndOrdered(t *testing.T) {
	a := NewAssembler(Reference)
	in := make([]float32, 3*FrameSize+100)
	for i := range in {
		in[i] = float32(i)
	}
	// Deliver in uneven chunks, as capture callbacks do.
	a.AddSamples(in[:700])
	a.AddSamples(in[700:1100])
	a.AddSamples(in[1100:])

	next := float32(0)
	frames := 0
	for {
		frame, ok := a.TryGetFrame()
		if !ok {
			break
		}
		frames++
		for i, s := range frame.Samples {
			if s != next {
				t.Fatalf("frame %d sample %d = %v, want %v", frames, i, s, next)
			}
			next++
		}
	}
	if frames != 3 {
		t.Errorf("extracted %d frames, want 3", frames)
	}
	if a.Buffered() != 100 {
		t.Errorf("buffered = %d, want 100", a.Buffered())
	}
}

func TestAssembler_ResetDiscardsPending(t *testing.T) {
	a := NewAssembler(NearEnd)
	a.AddSamples(make([]float32, FrameSize+5))
	a.Reset()
	if a.Buffered() != 0 {
		t.Errorf("buffered after reset = %d, want 0", a.Buffered())
	}
	if _, ok := a.TryGetFrame(); ok {
		t.Error("got a frame after reset")
	}
}

func TestAssembler_FrameIsACopy(t *testing.T) {
	a := NewAssembler(NearEnd)
	in := make([]float32, FrameSize)
	for i := range in {
		in[i] = 0.5
	}
	a.AddSamples(in)
	frame, ok := a.TryGetFrame()
	if !ok {
		t.Fatal("expected a frame")
	}
	a.AddSamples(make([]float32, FrameSize))
	if frame.Samples[0] != 0.5 {
		t.Error("frame aliases assembler storage")
	}
}
