package audio

import (
	"math"
	"testing"
)

func TestRMS_KnownSignal(t *testing.T) {
	samples := []float32{0.5, -0.5, 0.5, -0.5}
	if got := RMS(samples); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("RMS = %v, want 0.5", got)
	}
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS of empty = %v, want 0", got)
	}
}

func TestLevelDB_Bounds(t *testing.T) {
	if got := LevelDB(1); got != 0 {
		t.Errorf("LevelDB(1) = %v, want 0", got)
	}
	if got := LevelDB(0); got != -96 {
		t.Errorf("LevelDB(0) = %v, want -96", got)
	}
	if got := LevelDB(1e-10); got != -96 {
		t.Errorf("LevelDB(1e-10) = %v, want clamped -96", got)
	}
}

func TestMeter_SilenceGate(t *testing.T) {
	cfg := DefaultMeterConfig()
	cfg.SilenceFrames = 3
	m := NewMeter(cfg)

	loud := make([]float32, FrameSize)
	for i := range loud {
		loud[i] = 0.3
	}
	quiet := make([]float32, FrameSize)

	m.ProcessFrame(loud)
	if !m.IsActive() {
		t.Fatal("meter inactive after a loud frame")
	}

	for i := 0; i < 3; i++ {
		m.ProcessFrame(quiet)
	}
	if m.IsActive() {
		t.Error("meter still active after the silence window")
	}
}

func TestMeter_PeakAndReset(t *testing.T) {
	m := NewMeter(DefaultMeterConfig())
	frame := make([]float32, FrameSize)
	for i := range frame {
		frame[i] = 0.6
	}
	m.ProcessFrame(frame)
	if m.Peak() < 0.5 {
		t.Errorf("peak = %v, want close to 0.6", m.Peak())
	}
	m.Reset()
	if m.Peak() != 0 || m.Level() != 0 || m.IsActive() {
		t.Error("meter state survived Reset")
	}
}
