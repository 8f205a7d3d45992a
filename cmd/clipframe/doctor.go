package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/clipframe/clipframe/internal/config"
	"github.com/clipframe/clipframe/internal/logging"
	"github.com/clipframe/clipframe/internal/media"
)

func newDoctorCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg, ffprobe and whisper.cpp are usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			checker := &media.ToolChecker{
				FFmpeg:       cfg.FFmpeg(),
				FFprobe:      cfg.FFprobe(),
				Whisper:      cfg.WhisperBinary(),
				WhisperModel: cfg.WhisperModel(),
				Runner:       media.NewSubprocessRunner(logging.Discard()),
			}
			caps, err := checker.Check(cmd.Context())
			if err != nil {
				return err
			}
			printCapabilities(cmd.OutOrStdout(), cfg, caps)
			if !caps.CanCrop {
				return errors.New("ffmpeg and ffprobe are required")
			}
			return nil
		},
	}
}

func printCapabilities(w io.Writer, cfg *config.EnvConfig, caps *media.Capabilities) {
	source := cfg.Source()
	if source == "" {
		source = "(environment only)"
	}
	fmt.Fprintf(w, "config:         %s\n", source)
	fmt.Fprintf(w, "data dir:       %s\n", logging.SanitizePath(cfg.DataDir()))
	fmt.Fprintf(w, "upload limit:   %s\n", humanize.IBytes(uint64(cfg.MaxUploadBytes())))
	fmt.Fprintf(w, "output ttl:     %s\n", cfg.OutputTTL())
	fmt.Fprintln(w)
	printTool(w, "ffmpeg", caps.FFmpeg)
	printTool(w, "ffprobe", caps.FFprobe)
	printTool(w, "whisper", caps.Whisper)
	printTool(w, "whisper model", caps.WhisperModel)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "crop:           %s\n", yesNo(caps.CanCrop))
	fmt.Fprintf(w, "transcribe:     %s\n", yesNo(caps.CanTranscribe))
}

func printTool(w io.Writer, name string, t media.ToolInfo) {
	label := fmt.Sprintf("%s:", name)
	switch {
	case !t.Available:
		fmt.Fprintf(w, "%-15s missing (%s)\n", label, t.Error)
	case t.Version != "":
		fmt.Fprintf(w, "%-15s %s [%s]\n", label, logging.SanitizePath(t.Path), t.Version)
	default:
		fmt.Fprintf(w, "%-15s %s\n", label, logging.SanitizePath(t.Path))
	}
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
