package output

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/emmett/echotap/internal/audio"
)

// Sink receives processed audio from the pipeline
type Sink interface {
	// WriteSamples writes one chunk of mono float32 samples
	WriteSamples(samples []float32) error

	// Close finalizes the output and releases resources
	Close() error
}

// NewSink creates a sink for the given format name: "raw" (float32
// little-endian), "pcm16", or "wav".
func NewSink(format string, w io.Writer) (Sink, error) {
	switch format {
	case "raw":
		return &RawSink{writer: w}, nil
	case "pcm16":
		return &PCM16Sink{writer: w}, nil
	case "wav":
		ws, ok := w.(io.WriteSeeker)
		if !ok {
			return nil, fmt.Errorf("wav output requires a seekable destination")
		}
		return NewWAVSink(ws)
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

// RawSink writes float32 little-endian samples as-is
type RawSink struct {
	writer io.Writer
}

// WriteSamples writes one chunk of samples
func (s *RawSink) WriteSamples(samples []float32) error {
	return binary.Write(s.writer, binary.LittleEndian, samples)
}

// Close is a no-op for raw output
func (s *RawSink) Close() error {
	return nil
}

// PCM16Sink converts samples to 16-bit signed PCM before writing
type PCM16Sink struct {
	writer io.Writer
}

// WriteSamples writes one chunk of samples as PCM16
func (s *PCM16Sink) WriteSamples(samples []float32) error {
	_, err := s.writer.Write(audio.FloatToPCM16(samples))
	return err
}

// Close is a no-op for PCM16 output
func (s *PCM16Sink) Close() error {
	return nil
}

// WAVSink writes a PCM16 WAV file: mono at the pipeline sample rate.
// The header is written up front with zero sizes and patched on Close.
type WAVSink struct {
	writer    io.WriteSeeker
	dataBytes uint32
}

// NewWAVSink writes the WAV header and returns the sink
func NewWAVSink(w io.WriteSeeker) (*WAVSink, error) {
	s := &WAVSink{writer: w}
	if err := s.writeHeader(); err != nil {
		return nil, fmt.Errorf("failed to write wav header: %w", err)
	}
	return s, nil
}

func (s *WAVSink) writeHeader() error {
	var header [44]byte
	copy(header[0:4], "RIFF")
	// RIFF size patched on Close
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], 1) // mono
	binary.LittleEndian.PutUint32(header[24:28], uint32(audio.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(audio.SampleRate)*2)
	binary.LittleEndian.PutUint16(header[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(header[34:36], 16) // bits per sample
	copy(header[36:40], "data")
	// data size patched on Close

	_, err := s.writer.Write(header[:])
	return err
}

// WriteSamples writes one chunk of samples as PCM16
func (s *WAVSink) WriteSamples(samples []float32) error {
	data := audio.FloatToPCM16(samples)
	n, err := s.writer.Write(data)
	s.dataBytes += uint32(n)
	return err
}

// Close patches the RIFF and data chunk sizes
func (s *WAVSink) Close() error {
	var size [4]byte

	if _, err := s.writer.Seek(4, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek wav header: %w", err)
	}
	binary.LittleEndian.PutUint32(size[:], 36+s.dataBytes)
	if _, err := s.writer.Write(size[:]); err != nil {
		return err
	}

	if _, err := s.writer.Seek(40, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek wav data header: %w", err)
	}
	binary.LittleEndian.PutUint32(size[:], s.dataBytes)
	if _, err := s.writer.Write(size[:]); err != nil {
		return err
	}

	_, err := s.writer.Seek(0, io.SeekEnd)
	return err
}
