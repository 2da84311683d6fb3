package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/snarg/voxrelay/internal/api"
	"github.com/snarg/voxrelay/internal/config"
	"github.com/snarg/voxrelay/internal/metrics"
	"github.com/snarg/voxrelay/internal/transcribe"
)

var version = "dev"

func main() {
	var overrides config.Overrides
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().
		Str("version", version).
		Str("model", cfg.UpstreamModel).
		Str("base_url", cfg.UpstreamBaseURL).
		Bool("has_key", cfg.HasAPIKey()).
		Msg("voxrelay starting")

	if !cfg.HasAPIKey() {
		log.Warn().Msg("UPSTREAM_API_KEY not set; transcription requests will fail")
	}

	ffmpegFound := transcribe.LookupFFmpeg(cfg.FFmpegPath)
	if !ffmpegFound {
		log.Warn().Str("path", cfg.FFmpegPath).Msg("ffmpeg not found; only WAV uploads can be transcribed")
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Pipeline
	normalizer := transcribe.NewFFmpegNormalizer(transcribe.FFmpegOptions{
		Path:       cfg.FFmpegPath,
		ScratchDir: cfg.ScratchDir,
		Timeout:    cfg.TranscodeTimeout,
		Log:        log.With().Str("component", "ffmpeg").Logger(),
	})
	client := transcribe.NewChatClient(transcribe.ChatOptions{
		BaseURL: cfg.UpstreamBaseURL,
		APIKey:  cfg.APIKey(),
		Model:   cfg.UpstreamModel,
		Referer: cfg.UpstreamReferer,
		Title:   cfg.UpstreamTitle,
		Timeout: cfg.UpstreamTimeout,
	})
	pipeline := transcribe.NewPipeline(normalizer, client, log.With().Str("component", "pipeline").Logger())

	if cfg.MetricsEnabled {
		prometheus.MustRegister(metrics.NewCollector(pipeline))
	}

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, api.NewRouter(cfg, pipeline, ffmpegFound, httpLog), httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("voxrelay stopped")
}
