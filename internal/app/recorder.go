package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/emmett/echotap/internal/audio"
	"github.com/emmett/echotap/internal/observe"
	"github.com/emmett/echotap/internal/output"
)

// RecorderConfig holds configuration for a capture run
type RecorderConfig struct {
	// Duplex captures system output alongside the microphone and runs
	// echo cancellation between them
	Duplex bool

	// EchoCancel toggles the canceller; ignored outside duplex mode
	EchoCancel bool

	OutputFormat string
	OutputFile   string

	// RingName overrides the virtual driver's shared-memory segment name
	RingName string

	MicDevice     string
	MonitorDevice string

	// ShowMeter draws a live VU line on the console
	ShowMeter bool

	Logger *slog.Logger
}

// Recorder orchestrates the capture run: sessions, pipeline, and sink
type Recorder struct {
	config  RecorderConfig
	logger  *slog.Logger
	metrics *observe.Metrics
}

// NewRecorder creates a new Recorder instance
func NewRecorder(config RecorderConfig) *Recorder {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		config:  config,
		logger:  logger,
		metrics: observe.DefaultMetrics(),
	}
}

// Run starts capturing and blocks until Ctrl+C or a fatal error
func (r *Recorder) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.RunContext(ctx)
}

// RunContext is Run with caller-controlled lifetime
func (r *Recorder) RunContext(ctx context.Context) error {
	// Status output goes to stderr when audio goes to stdout, so the
	// two never interleave.
	statusOut := output.DefaultConsoleOutput()
	if r.config.OutputFile == "" {
		statusOut = output.NewConsoleOutput(output.ConsoleConfig{
			ShowTimestamp: true,
			Writer:        os.Stderr,
		})
	}

	sink, closeSink, err := r.openSink()
	if err != nil {
		return err
	}
	defer closeSink()

	// Microphone session always runs; the system-output session only in
	// duplex mode.
	micSession := audio.NewSession(audio.SourceConfig{
		Kind:       audio.Microphone,
		DeviceName: r.config.MicDevice,
		Logger:     r.logger,
	}, r.metrics)

	micMethod, err := micSession.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start microphone capture: %w", err)
	}
	defer micSession.Stop()
	statusOut.Info(fmt.Sprintf("Microphone capture via %s", micMethod))

	var sysSession *audio.Session
	if r.config.Duplex {
		sysSession = audio.NewSession(audio.SourceConfig{
			Kind:       audio.SystemOutput,
			DeviceName: r.config.MonitorDevice,
			RingName:   r.config.RingName,
			Logger:     r.logger,
		}, r.metrics)

		sysMethod, err := sysSession.Start(ctx)
		if err != nil {
			return fmt.Errorf("failed to start system output capture: %w", err)
		}
		defer sysSession.Stop()
		statusOut.Info(fmt.Sprintf("System output capture via %s", sysMethod))
	}

	var canceller audio.Canceller
	if r.config.Duplex && r.config.EchoCancel {
		canceller = audio.NewCanceller(r.logger)
		statusOut.Info("Echo cancellation enabled")
	}

	pipeline := audio.NewPipeline(canceller, r.logger, r.metrics)

	statusOut.Info("Capturing. Press Ctrl+C to stop.")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var ref *audio.StreamInput
		if sysSession != nil {
			ref = streamInput(sysSession.Source())
		}
		pipeline.Run(ctx, ref, streamInput(micSession.Source()))
		return nil
	})

	g.Go(func() error {
		return r.consume(ctx, pipeline, sink, statusOut)
	})

	g.Go(func() error {
		r.drainErrors(ctx, statusOut, micSession, sysSession)
		return nil
	})

	err = g.Wait()
	statusOut.Clear()
	statusOut.Info("Capture stopped")
	return err
}

// openSink resolves the output destination and format.
func (r *Recorder) openSink() (output.Sink, func(), error) {
	format := strings.ToLower(r.config.OutputFormat)

	if r.config.OutputFile != "" {
		f, err := os.Create(r.config.OutputFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file: %w", err)
		}
		sink, err := output.NewSink(format, f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		return sink, func() {
			sink.Close()
			f.Close()
		}, nil
	}

	// Stdout cannot seek, so wav has to go to a file.
	if format == "wav" {
		return nil, nil, fmt.Errorf("wav output requires --output FILE")
	}
	sink, err := output.NewSink(format, os.Stdout)
	if err != nil {
		return nil, nil, err
	}
	return sink, func() { sink.Close() }, nil
}

// consume drains the pipeline, writes near-end audio to the sink, and
// keeps the meters fresh.
func (r *Recorder) consume(ctx context.Context, pipeline *audio.Pipeline, sink output.Sink, statusOut *output.ConsoleOutput) error {
	micMeter := audio.NewMeter(audio.DefaultMeterConfig())
	sysMeter := audio.NewMeter(audio.DefaultMeterConfig())

	frames := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-pipeline.Out():
			if !ok {
				return nil
			}
			switch frame.Tag {
			case audio.NearEnd:
				micMeter.ProcessFrame(frame.Samples)
				if err := sink.WriteSamples(frame.Samples); err != nil {
					return fmt.Errorf("failed to write output: %w", err)
				}
			case audio.Reference:
				sysMeter.ProcessFrame(frame.Samples)
			}

			frames++
			if r.config.ShowMeter && frames%10 == 0 {
				statusOut.WriteLevels(micMeter.Level(), sysMeter.Level())
			}
		}
	}
}

// drainErrors surfaces non-fatal capture errors without stopping the run.
func (r *Recorder) drainErrors(ctx context.Context, statusOut *output.ConsoleOutput, sessions ...*audio.Session) {
	var cases []<-chan error
	for _, s := range sessions {
		if s == nil {
			continue
		}
		cases = append(cases, s.Errors())
	}

	for _, errCh := range cases {
		errCh := errCh
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case err, ok := <-errCh:
					if !ok {
						return
					}
					r.logger.Warn("capture error", "error", err)
					statusOut.Error(fmt.Sprintf("Capture error: %v", err))
				}
			}
		}()
	}
	<-ctx.Done()
}

// streamInput adapts an active source to a pipeline input.
func streamInput(src audio.Source) *audio.StreamInput {
	rate, channels := src.Format()
	return &audio.StreamInput{
		Samples:  src.Samples(),
		Rate:     rate,
		Channels: channels,
	}
}
