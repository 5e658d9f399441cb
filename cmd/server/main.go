package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pitchcast/pitchcast/internal/config"
	"github.com/pitchcast/pitchcast/internal/frontend"
	"github.com/pitchcast/pitchcast/internal/logging"
	"github.com/pitchcast/pitchcast/internal/pitch"
	"github.com/pitchcast/pitchcast/internal/procstat"
	"github.com/pitchcast/pitchcast/internal/session"
	"github.com/pitchcast/pitchcast/internal/ws"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	devMode := flag.Bool("dev", false, "Development mode (serve frontend from filesystem)")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	mode := flag.String("mode", "", "Override source mode: device, simulated, client or hybrid")
	wavPath := flag.String("wav", "", "WAV file to play as the capture device (implies -mode device)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	loaded := *cfg
	getenv, err := config.DotEnv(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *wavPath != "" {
		cfg.Source.WAVPath = *wavPath
		cfg.Source.Mode = config.SourceDevice
	}
	if *mode != "" {
		cfg.Source.Mode = *mode
	}

	logger := logging.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	for _, change := range config.Diff(&loaded, cfg) {
		logger.Info("config override", "change", change)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	src, err := newSource(cfg, logger)
	if err != nil {
		logger.Error("failed to build pitch source", "error", err)
		os.Exit(1)
	}

	sess := session.New(src.source, session.Config{
		Mode:       src.mode,
		Interval:   cfg.Broadcast.Interval,
		MaxClients: cfg.Server.MaxConnections,
		Push:       src.push,
		Logger:     logger,
	})

	stats, err := procstat.New()
	if err != nil {
		logger.Warn("process stats unavailable", "error", err)
	}

	server := ws.NewServer(sess, ws.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SendBuffer:     cfg.Broadcast.SendBuffer,
		WriteTimeout:   cfg.Broadcast.WriteTimeout,
		PingInterval:   cfg.Broadcast.PingInterval,
		MessageRate:    cfg.Client.MessageRate,
		MessageBurst:   cfg.Client.MessageBurst,
		Frontend:       frontendHandler(*devMode, logger),
		Health:         src.health,
		Stats:          statsSampler(stats),
		Version:        version,
		Logger:         logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting pitchcast",
		"version", version,
		"source", cfg.Source.Mode,
		"session_mode", src.mode,
		"interval", cfg.Broadcast.Interval)

	err = ws.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port, server.Handler(), logger)
	logger.Info("shutting down")
	server.Close()
	sess.Stop()
	if err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

type sourceSet struct {
	source pitch.Source
	mode   session.Mode
	push   pitch.Pusher
	health *pitch.Health
}

// newSource maps the configured source mode onto a pitch source and the
// session mode that drives it.
func newSource(cfg *config.Config, logger *slog.Logger) (sourceSet, error) {
	switch cfg.Source.Mode {
	case config.SourceDevice:
		device, err := newCapturer(cfg.Source)
		if err != nil {
			return sourceSet{}, err
		}
		capture := pitch.NewCapture(device, logger)
		return sourceSet{source: capture, mode: session.ModePull, health: capture.Health()}, nil
	case config.SourceSimulated:
		return sourceSet{source: pitch.NewSimulator(cfg.Source.Seed), mode: session.ModePull}, nil
	case config.SourceClient:
		client := pitch.NewClientSource()
		return sourceSet{source: client, mode: session.ModePush, push: client}, nil
	case config.SourceHybrid:
		return sourceSet{source: pitch.NewSimulator(cfg.Source.Seed), mode: session.ModeHybrid}, nil
	}
	return sourceSet{}, fmt.Errorf("unknown source mode %q", cfg.Source.Mode)
}

// newCapturer plays the configured WAV file, or opens the microphone when
// none is set.
func newCapturer(src config.SourceConfig) (pitch.Capturer, error) {
	if src.WAVPath == "" {
		if !pitch.MicAvailable {
			return nil, fmt.Errorf("capture input: %w; set source.wav_path instead", pitch.ErrMicUnavailable)
		}
		return pitch.NewMicCapturer(
			pitch.WithMicBlockSize(src.BlockSize),
			pitch.WithSampleRate(src.SampleRate)), nil
	}
	if _, err := os.Stat(src.WAVPath); err != nil {
		return nil, fmt.Errorf("capture input: %w", err)
	}
	return pitch.NewWAVCapturer(src.WAVPath,
		pitch.WithBlockSize(src.BlockSize),
		pitch.WithLoop(src.Loop)), nil
}

func frontendHandler(dev bool, logger *slog.Logger) http.Handler {
	if dev {
		dir := filepath.Join("internal", "frontend", "static")
		logger.Info("serving frontend from filesystem", "dir", dir)
		return frontend.Dir(dir)
	}
	if h := frontend.Handler(); h != nil {
		return h
	}
	logger.Info("no embedded frontend; build with -tags embed to bundle it")
	return nil
}

// statsSampler avoids handing the server a typed nil.
func statsSampler(s *procstat.Sampler) ws.StatsSampler {
	if s == nil {
		return nil
	}
	return s
}
