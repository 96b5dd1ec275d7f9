package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/emmett/echotap/internal/app"
	"github.com/emmett/echotap/internal/config"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file (default: ~/.echotaprc or /etc/echotap/config.yaml)")
	duplex        = flag.Bool("duplex", true, "Capture system output alongside the microphone")
	echoCancel    = flag.Bool("echo-cancel", true, "Run echo cancellation between the two streams (duplex only)")
	outputFormat  = flag.String("format", "wav", "Output format: raw, pcm16, wav")
	outputFile    = flag.String("output", "", "Output file (default: stdout; wav requires a file)")
	ringName      = flag.String("ring-name", "", "Shared-memory segment name of the virtual audio driver")
	micDevice     = flag.String("mic-device", "", "Microphone device name (use --list-devices to see available devices)")
	monitorDevice = flag.String("monitor-device", "", "Monitor input device name for screen-share capture")
	showMeter     = flag.Bool("meter", true, "Show a live level meter")
	hotkeyStr     = flag.String("hotkey", "", "Global hotkey to toggle capture (e.g. ctrl+shift+space); empty captures continuously")
	listDevices   = flag.Bool("list-devices", false, "List all available audio devices")
	probeDriver   = flag.Bool("probe-driver", false, "Check whether the virtual audio driver is available")
	logLevel      = flag.String("log-level", "", "Log level: debug, info, warn, error")
	showVersion   = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v\n", err)
		cfg = config.DefaultConfig()
	}

	applyConfigDefaults(cfg)

	if *showVersion {
		fmt.Printf("echotap v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	if *listDevices {
		dm := app.NewDeviceManager()
		if err := dm.ListDevices(*ringName); err != nil {
			os.Exit(1)
		}
		return
	}

	if *probeDriver {
		dm := app.NewDeviceManager()
		if err := dm.ProbeDriver(*ringName); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := run(logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func applyConfigDefaults(cfg *config.Config) {
	flagsSet := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		flagsSet[f.Name] = true
	})

	if !flagsSet["duplex"] {
		*duplex = cfg.Capture.Duplex
	}
	if !flagsSet["echo-cancel"] {
		*echoCancel = cfg.Echo.Enabled
	}
	if !flagsSet["format"] && cfg.Output.Format != "" {
		*outputFormat = cfg.Output.Format
	}
	if !flagsSet["output"] && cfg.Output.File != "" {
		*outputFile = cfg.Output.File
	}
	if !flagsSet["ring-name"] && cfg.Capture.RingName != "" {
		*ringName = cfg.Capture.RingName
	}
	if !flagsSet["mic-device"] && cfg.Capture.MicDevice != "" {
		*micDevice = cfg.Capture.MicDevice
	}
	if !flagsSet["monitor-device"] && cfg.Capture.MonitorDevice != "" {
		*monitorDevice = cfg.Capture.MonitorDevice
	}
	if !flagsSet["meter"] {
		*showMeter = cfg.Meter.Enabled
	}
	if !flagsSet["hotkey"] && cfg.Hotkey.Enabled && cfg.Hotkey.Combo != "" {
		*hotkeyStr = cfg.Hotkey.Combo
	}
	if !flagsSet["log-level"] && cfg.Log.Level != "" {
		*logLevel = cfg.Log.Level
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func run(logger *slog.Logger) error {
	recorderCfg := app.RecorderConfig{
		Duplex:        *duplex,
		EchoCancel:    *echoCancel,
		OutputFormat:  *outputFormat,
		OutputFile:    *outputFile,
		RingName:      *ringName,
		MicDevice:     *micDevice,
		MonitorDevice: *monitorDevice,
		ShowMeter:     *showMeter,
		Logger:        logger,
	}

	if *hotkeyStr != "" {
		recorder := app.NewHotkeyRecorder(app.HotkeyRecorderConfig{
			RecorderConfig: recorderCfg,
			Hotkey:         *hotkeyStr,
		})
		return recorder.Run()
	}

	recorder := app.NewRecorder(recorderCfg)
	return recorder.Run()
}
