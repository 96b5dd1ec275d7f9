package output

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/emmett/echotap/internal/audio"
)

func TestRawSink_WritesFloat32LE(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewSink("raw", &buf)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	if err := s.WriteSamples([]float32{0.5, -0.25}); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if buf.Len() != 8 {
		t.Fatalf("wrote %d bytes, want 8", buf.Len())
	}
	var back [2]float32
	if err := binary.Read(&buf, binary.LittleEndian, &back); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if back[0] != 0.5 || back[1] != -0.25 {
		t.Errorf("round trip = %v, want [0.5 -0.25]", back)
	}
}

func TestPCM16Sink_ConvertsSamples(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewSink("pcm16", &buf)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	if err := s.WriteSamples([]float32{1, 0}); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	got := buf.Bytes()
	if len(got) != 4 {
		t.Fatalf("wrote %d bytes, want 4", len(got))
	}
	if v := int16(got[0]) | int16(got[1])<<8; v != 32767 {
		t.Errorf("first sample = %d, want 32767", v)
	}
}

func TestNewSink_UnknownFormat(t *testing.T) {
	if _, err := NewSink("ogg", &bytes.Buffer{}); err == nil {
		t.Error("unknown format should error")
	}
}

func TestNewSink_WAVNeedsSeeker(t *testing.T) {
	if _, err := NewSink("wav", &bytes.Buffer{}); err == nil {
		t.Error("wav on a non-seekable writer should error")
	}
}

func TestWAVSink_HeaderAndSizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	s, err := NewWAVSink(f)
	if err != nil {
		t.Fatalf("NewWAVSink: %v", err)
	}
	samples := make([]float32, audio.FrameSize)
	if err := s.WriteSamples(samples); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(data) != 44+audio.FrameSize*2 {
		t.Fatalf("file is %d bytes, want %d", len(data), 44+audio.FrameSize*2)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != uint32(audio.SampleRate) {
		t.Errorf("sample rate = %d, want %d", rate, audio.SampleRate)
	}
	if size := binary.LittleEndian.Uint32(data[40:44]); size != uint32(audio.FrameSize*2) {
		t.Errorf("data size = %d, want %d", size, audio.FrameSize*2)
	}
	if riff := binary.LittleEndian.Uint32(data[4:8]); riff != uint32(36+audio.FrameSize*2) {
		t.Errorf("riff size = %d, want %d", riff, 36+audio.FrameSize*2)
	}
}
