package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipframe/clipframe/internal/api"
	"github.com/clipframe/clipframe/internal/config"
	"github.com/clipframe/clipframe/internal/download"
	"github.com/clipframe/clipframe/internal/lifecycle"
	"github.com/clipframe/clipframe/internal/logging"
	"github.com/clipframe/clipframe/internal/media"
	"github.com/clipframe/clipframe/internal/render"
	"github.com/clipframe/clipframe/internal/transcribe"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.EnvConfig) error {
	startTime := time.Now()

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	logger := a.logger
	logger.Info("starting clipframe",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"config", cfg.Source(),
	)

	runner := media.NewSubprocessRunner(logging.WithComponent(logger, "media"))
	prober := media.NewProber(cfg.FFprobe(), runner, cfg.ProbeTimeout())
	encoder := media.NewEncoder(cfg.FFmpeg(), runner, cfg.EncodeTimeout())
	engine := transcribe.New(transcribe.Config{
		Binary:     cfg.WhisperBinary(),
		Model:      cfg.WhisperModel(),
		Threads:    cfg.WhisperThreads(),
		ScratchDir: cfg.ScratchDir(),
		Timeout:    cfg.TranscribeTimeout(),
	}, encoder, runner, logging.WithComponent(logger, "transcribe"))

	doctor := media.NewCachedDoctor(&media.ToolChecker{
		FFmpeg:       cfg.FFmpeg(),
		FFprobe:      cfg.FFprobe(),
		Whisper:      cfg.WhisperBinary(),
		WhisperModel: cfg.WhisperModel(),
		Runner:       runner,
	}, cfg.DoctorTTL(), logging.WithComponent(logger, "doctor"))
	if caps, err := doctor.Refresh(parent); err != nil {
		logger.Warn("initial tool probe failed", "error", err)
	} else if !caps.CanCrop {
		logger.Warn("ffmpeg or ffprobe missing, crops will fail")
	}

	pipeline := render.NewService(a.manager, prober, encoder, engine, cfg.BurnFailurePolicy(), logger)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sweeper := lifecycle.NewSweeper(a.manager, cfg.OutputTTL(), cfg.SweepInterval(), logging.WithComponent(logger, "sweeper"))
	go sweeper.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Pipeline:       pipeline,
		Downloads:      download.NewServer(logging.WithComponent(logger, "download")),
		Doctor:         doctor,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Logger:         logger,
		StartTime:      startTime,
		Version:        config.Version,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
