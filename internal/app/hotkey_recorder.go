package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/emmett/echotap/internal/input"
	"github.com/emmett/echotap/internal/output"
)

// HotkeyRecorderConfig holds configuration for hotkey-toggled capture
type HotkeyRecorderConfig struct {
	RecorderConfig
	Hotkey string
}

// HotkeyRecorder toggles capture runs with a global hotkey instead of
// capturing continuously
type HotkeyRecorder struct {
	config HotkeyRecorderConfig
}

// NewHotkeyRecorder creates a new HotkeyRecorder
func NewHotkeyRecorder(config HotkeyRecorderConfig) *HotkeyRecorder {
	return &HotkeyRecorder{config: config}
}

// Run waits for hotkey toggles and runs a capture session while toggled
// on. Blocks until Ctrl+C.
func (h *HotkeyRecorder) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	statusOut := output.DefaultConsoleOutput()

	hotkeyMgr := input.NewHotkeyManager()
	if err := hotkeyMgr.Start(ctx, h.config.Hotkey); err != nil {
		return fmt.Errorf("failed to start hotkey listener: %w", err)
	}
	defer hotkeyMgr.Stop()

	statusOut.Info(fmt.Sprintf("Press %s to toggle capture, Ctrl+C to exit", h.config.Hotkey))

	var (
		runCancel context.CancelFunc
		runDone   chan error
	)
	stopRun := func() {
		if runCancel == nil {
			return
		}
		runCancel()
		if err := <-runDone; err != nil {
			statusOut.Error(fmt.Sprintf("Capture run: %v", err))
		}
		runCancel = nil
		runDone = nil
	}

	for {
		select {
		case <-ctx.Done():
			stopRun()
			return nil

		case capturing := <-hotkeyMgr.Toggles():
			if capturing {
				if runCancel != nil {
					continue
				}
				statusOut.Info("Capture on")
				var runCtx context.Context
				runCtx, runCancel = context.WithCancel(ctx)
				runDone = make(chan error, 1)
				recorder := NewRecorder(h.config.RecorderConfig)
				go func() { runDone <- recorder.RunContext(runCtx) }()
			} else {
				statusOut.Info("Capture off")
				stopRun()
			}

		case err := <-waitRun(runDone):
			// The run ended on its own, a fatal capture error most
			// likely. Reset so the next toggle starts fresh.
			if err != nil {
				statusOut.Error(fmt.Sprintf("Capture run ended: %v", err))
			}
			if runCancel != nil {
				runCancel()
				runCancel = nil
			}
			runDone = nil
		}
	}
}

// waitRun makes a nil-safe receive case for the run's completion.
func waitRun(done chan error) <-chan error {
	if done == nil {
		return nil
	}
	return done
}
