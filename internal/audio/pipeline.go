package audio

import (
	"context"
	"log/slog"
	"time"

	"github.com/emmett/echotap/internal/observe"
)

// pipelineOutDepth bounds the processed-frame channel. About a quarter
// second of audio; slower sinks lose the oldest frames.
const pipelineOutDepth = 32

// StreamInput feeds one capture stream into the pipeline: raw chunks
// plus the format they arrive in.
type StreamInput struct {
	Samples  <-chan []float32
	Rate     int
	Channels int
}

// Pipeline normalizes, frames, and echo-cancels captured audio. One
// goroutine (Run) owns the assemblers and the canceller, so reference
// frames always reach the canceller before the near-end frames they
// overlap with and no locking is needed around adaptation state.
type Pipeline struct {
	canceller Canceller
	logger    *slog.Logger
	metrics   *observe.Metrics

	refNorm  Normalizer
	nearNorm Normalizer
	refAsm   *Assembler
	nearAsm  *Assembler

	out chan Frame
}

// NewPipeline builds a pipeline around the given canceller. A nil
// canceller makes the pipeline pass near-end frames through untouched.
func NewPipeline(canceller Canceller, logger *slog.Logger, metrics *observe.Metrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Pipeline{
		canceller: canceller,
		logger:    logger,
		metrics:   metrics,
		refAsm:    NewAssembler(Reference),
		nearAsm:   NewAssembler(NearEnd),
		out:       make(chan Frame, pipelineOutDepth),
	}
}

// Out delivers processed frames: echo-cancelled near-end frames plus
// the reference frames that conditioned them, each tagged.
func (p *Pipeline) Out() <-chan Frame { return p.out }

// Run consumes both streams until the context is cancelled or both
// input channels close. ref may be nil for microphone-only capture.
// Closes Out on return.
func (p *Pipeline) Run(ctx context.Context, ref, near *StreamInput) {
	defer close(p.out)

	var refCh, nearCh <-chan []float32
	if ref != nil {
		p.refNorm = Normalizer{InRate: ref.Rate, Channels: ref.Channels}
		refCh = ref.Samples
	}
	if near != nil {
		p.nearNorm = Normalizer{InRate: near.Rate, Channels: near.Channels}
		nearCh = near.Samples
	}

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-refCh:
			if !ok {
				refCh = nil
				if nearCh == nil {
					return
				}
				continue
			}
			p.refAsm.AddSamples(p.refNorm.Normalize(chunk))
			p.drainReference(ctx)
		case chunk, ok := <-nearCh:
			if !ok {
				nearCh = nil
				if refCh == nil {
					return
				}
				continue
			}
			p.nearAsm.AddSamples(p.nearNorm.Normalize(chunk))
			// Feed any queued reference audio first so the canceller
			// has seen the playback these mic samples overlap with.
			p.drainReference(ctx)
			p.drainNearEnd(ctx)
		}
	}
}

func (p *Pipeline) drainReference(ctx context.Context) {
	for {
		frame, ok := p.refAsm.TryGetFrame()
		if !ok {
			return
		}
		if p.canceller != nil {
			p.canceller.ProcessReverseStream(frame.Samples)
		}
		p.metrics.RecordFrame(ctx, "reference")
		p.emit(ctx, frame)
	}
}

func (p *Pipeline) drainNearEnd(ctx context.Context) {
	for {
		frame, ok := p.nearAsm.TryGetFrame()
		if !ok {
			return
		}
		if p.canceller != nil {
			inEnergy := frameEnergy(frame.Samples)
			start := time.Now()
			frame.Samples = p.canceller.ProcessStream(frame.Samples)
			p.metrics.ProcessDuration.Record(ctx, time.Since(start).Seconds())
			if inEnergy > 0 {
				p.metrics.EchoReduction.Record(ctx, float64(frameEnergy(frame.Samples)/inEnergy))
			}
		}
		p.metrics.RecordFrame(ctx, "near_end")
		p.emit(ctx, frame)
	}
}

// emit posts a frame without blocking; when the sink lags, the frame is
// dropped and counted rather than stalling the capture path.
func (p *Pipeline) emit(ctx context.Context, frame Frame) {
	select {
	case p.out <- frame:
	default:
		p.metrics.RecordDrop(ctx, "pipeline_out")
	}
}

// frameEnergy returns the mean squared amplitude of a frame.
func frameEnergy(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float32
	for _, s := range samples {
		sum += s * s
	}
	return sum / float32(len(samples))
}
