// Command ringfeed stands in for the virtual audio driver: it creates
// the shared-memory ring and feeds it a test tone or PCM from stdin, in
// real time. Useful for exercising the virtual-driver capture path on
// machines without the driver installed.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emmett/echotap/internal/transport"
)

var (
	Version = "dev"
)

var (
	ringName   = flag.String("ring-name", transport.DefaultName, "Shared-memory segment name to create")
	sampleRate = flag.Int("rate", 48000, "Sample rate of the fed audio")
	channels   = flag.Int("channels", 2, "Channel count of the fed audio")
	toneFreq   = flag.Float64("tone", 440, "Test tone frequency in Hz; 0 reads float32 PCM from stdin")
	amplitude  = flag.Float64("amplitude", 0.5, "Test tone amplitude")
	duration   = flag.Duration("duration", 0, "Stop after this long (0 runs until Ctrl+C)")
	showVer    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("ringfeed v%s\n", Version)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	capacity := *sampleRate * *channels * transport.RingSeconds
	ring, err := transport.Create(*ringName, capacity, *sampleRate, *channels)
	if err != nil {
		return fmt.Errorf("failed to create ring %q: %w", *ringName, err)
	}
	defer func() {
		ring.SetActive(false)
		ring.Close()
		transport.Unlink(*ringName)
	}()

	ring.SetActive(true)
	fmt.Fprintf(os.Stderr, "Feeding %q at %d Hz, %d channel(s). Ctrl+C to stop.\n",
		*ringName, *sampleRate, *channels)

	// One 10ms chunk per tick, matching the pipeline cadence.
	chunkFrames := *sampleRate / 100
	chunk := make([]float32, chunkFrames**channels)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	var phase int
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if *toneFreq > 0 {
				fillTone(chunk, *channels, phase)
				phase += chunkFrames
			} else {
				if err := readStdin(chunk); err != nil {
					if err == io.EOF {
						return nil
					}
					return fmt.Errorf("failed to read stdin: %w", err)
				}
			}
			ring.Write(chunk)
		}
	}
}

// fillTone writes the next chunk of the test tone, same signal on every
// channel.
func fillTone(chunk []float32, channels, phase int) {
	frames := len(chunk) / channels
	for i := 0; i < frames; i++ {
		s := float32(*amplitude * math.Sin(2*math.Pi**toneFreq*float64(phase+i)/float64(*sampleRate)))
		for c := 0; c < channels; c++ {
			chunk[i*channels+c] = s
		}
	}
}

// readStdin fills the chunk with float32 little-endian PCM from stdin.
func readStdin(chunk []float32) error {
	buf := make([]byte, len(chunk)*4)
	if _, err := io.ReadFull(os.Stdin, buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			return io.EOF
		}
		return err
	}
	for i := range chunk {
		bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
		chunk[i] = math.Float32frombits(bits)
	}
	return nil
}
