package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arkq/svar/internal/config"
	"github.com/arkq/svar/internal/pcm"
	"github.com/arkq/svar/internal/recorder"
	"github.com/arkq/svar/internal/writer"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile   = flag.String("config", "", "Path to configuration file (default: ~/.svarrc or /etc/svar/config.yaml)")
	listDevices  = flag.Bool("list-devices", false, "List all available audio capture devices")
	backendName  = flag.String("backend", "malgo", "Audio capture backend: malgo, portaudio")
	audioDevice  = flag.String("device", "default", "Audio capture device name or index")
	pcmFormat    = flag.String("format", "s16le", "PCM sample format: u8, s16le")
	channels     = flag.Int("channels", 1, "Number of capture channels")
	rate         = flag.Int("rate", 44100, "Sampling rate in Hz")
	outputFormat = flag.String("output-format", "wav", "Output file format: raw, wav, opus")
	outputFile   = flag.String("output", "rec-02-15:04:05", "Output file name template (Go time layout, extension appended)")
	sigLevel     = flag.Float64("sig-level", -50.0, "Activation threshold in dBFS")
	fadeoutMs    = flag.Int("fadeout", 500, "Fadeout time in milliseconds after the signal drops below the threshold")
	splitS       = flag.Int("split", 0, "Maximum output file duration in seconds (0 disables splitting)")
	bitrate      = flag.Int("bitrate", 64000, "Encoder bitrate in bits per second (compressed formats only)")
	monitor      = flag.Bool("monitor", false, "Report the live signal level instead of recording")
	verbose      = flag.Int("verbose", 0, "Logging verbosity: 0=errors, 1=info, 2=debug")
	showVersion  = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("SVAR v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		return
	}

	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v\n", err)
		cfg = config.DefaultConfig()
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags overrides configuration values with flags explicitly set
// on the command line. Flags left at their defaults do not clobber
// values loaded from the configuration file.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Audio.Backend = *backendName
		case "device":
			cfg.Audio.Device = *audioDevice
		case "format":
			cfg.Audio.Format = *pcmFormat
		case "channels":
			cfg.Audio.Channels = *channels
		case "rate":
			cfg.Audio.Rate = *rate
		case "output-format":
			cfg.Output.Format = *outputFormat
		case "output":
			cfg.Output.Template = *outputFile
		case "sig-level":
			cfg.Activation.ThresholdDB = *sigLevel
		case "fadeout":
			cfg.Activation.FadeoutMs = *fadeoutMs
		case "split":
			cfg.Output.SplitS = *splitS
		case "bitrate":
			cfg.Output.Bitrate = *bitrate
		case "verbose":
			cfg.Verbose = *verbose
		}
	})
}

func newLogger(verbose int) *slog.Logger {
	level := slog.LevelError
	switch {
	case verbose == 1:
		level = slog.LevelInfo
	case verbose >= 2:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// printBanner reports the selected device, hardware parameters and
// output format before the capture starts. In the monitor mode there
// is no output file, so the output format lines are skipped.
func printBanner(out io.Writer, cfg *config.Config, format pcm.Format, outFormat writer.Format, monitor bool) {
	plural := ""
	if cfg.Audio.Channels > 1 {
		plural = "s"
	}
	fmt.Fprintf(out, "Selected PCM device: %s\n", cfg.Audio.Device)
	fmt.Fprintf(out, "Hardware parameters: %d Hz, %s, %d channel%s\n",
		cfg.Audio.Rate, format, cfg.Audio.Channels, plural)
	if monitor {
		return
	}
	fmt.Fprintf(out, "Output file format: %s\n", outFormat)
	if outFormat == writer.FormatOpus {
		fmt.Fprintf(out, "Output bit rate: %d kbit/s\n", cfg.Output.Bitrate/1000)
	}
}

func run(cfg *config.Config) error {
	log := newLogger(cfg.Verbose)
	slog.SetDefault(log)

	format, err := pcm.ParseFormat(cfg.Audio.Format)
	if err != nil {
		return err
	}

	session := recorder.New(recorder.Config{
		Format:      format,
		Channels:    cfg.Audio.Channels,
		Rate:        cfg.Audio.Rate,
		ThresholdDB: cfg.Activation.ThresholdDB,
		Fadeout:     time.Duration(cfg.Activation.FadeoutMs) * time.Millisecond,
		Split:       time.Duration(cfg.Output.SplitS) * time.Second,
		Template:    cfg.Output.Template,
		Monitor:     *monitor,
		Logger:      log,
	})

	backend, err := recorder.NewBackend(cfg.Audio.Backend, session)
	if err != nil {
		return err
	}
	defer backend.Close()

	if *listDevices {
		listing, err := backend.Devices()
		if err != nil {
			return fmt.Errorf("failed to list capture devices: %w", err)
		}
		fmt.Print(listing)
		return nil
	}

	if err := backend.Open(cfg.Audio.Device); err != nil {
		return fmt.Errorf("failed to open capture device: %w", err)
	}

	outFormat, err := writer.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	printBanner(os.Stdout, cfg, format, outFormat, *monitor)

	var w writer.Writer
	if !*monitor {
		w, err = writer.New(outFormat, format, cfg.Audio.Channels, cfg.Audio.Rate,
			writer.Options{Bitrate: cfg.Output.Bitrate})
		if err != nil {
			return err
		}
		log.Info("Starting recording",
			"backend", cfg.Audio.Backend,
			"threshold_db", cfg.Activation.ThresholdDB,
			"fadeout_ms", cfg.Activation.FadeoutMs,
			"split_s", cfg.Output.SplitS)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("Received signal, stopping")
		session.Stop()
		// A second signal terminates without waiting for the
		// consumer to drain.
		<-sig
		os.Exit(130)
	}()

	return session.Run(backend, w)
}
