// Package transcribe runs speech-to-text through a whisper.cpp binary.
//
// The Engine is constructed once at startup and shared. Its model is checked
// at most once per process; the outcome, including a failure, is cached so a
// broken install fails fast on every request instead of retrying the load.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/clipframe/clipframe/internal/apperr"
	"github.com/clipframe/clipframe/internal/captions"
	"github.com/clipframe/clipframe/internal/language"
	"github.com/clipframe/clipframe/internal/media"
)

// AudioExtractor writes a 16 kHz mono WAV of a media file.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, input, wav string) error
}

// Config holds the engine's configuration.
type Config struct {
	Binary     string // whisper.cpp CLI, e.g. whisper-cli
	Model      string // GGML model file
	Threads    int    // 0 = whisper default
	ScratchDir string // parent for per-call work dirs; empty = os.TempDir()
	Timeout    time.Duration
}

type Engine struct {
	cfg       Config
	extractor AudioExtractor
	runner    media.Runner
	logger    *slog.Logger

	once    sync.Once
	bin     string
	loadErr error
}

func New(cfg Config, extractor AudioExtractor, runner media.Runner, logger *slog.Logger) *Engine {
	return &Engine{cfg: cfg, extractor: extractor, runner: runner, logger: logger}
}

// load resolves the binary and verifies the model file. It runs once.
func (e *Engine) load() error {
	e.once.Do(func() {
		start := time.Now()
		bin, err := exec.LookPath(e.cfg.Binary)
		if err != nil {
			e.loadErr = fmt.Errorf("whisper binary %q: %w", e.cfg.Binary, err)
			return
		}
		st, err := os.Stat(e.cfg.Model)
		if err != nil {
			e.loadErr = fmt.Errorf("whisper model: %w", err)
			return
		}
		if st.IsDir() || st.Size() == 0 {
			e.loadErr = fmt.Errorf("whisper model %s is not a model file", e.cfg.Model)
			return
		}
		e.bin = bin
		e.logger.Info("whisper engine loaded",
			"binary", bin,
			"model", filepath.Base(e.cfg.Model),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
	return e.loadErr
}

// Transcribe returns timed segments for the speech in videoPath. hint is an
// ISO 639-1 code or language.Auto.
func (e *Engine) Transcribe(ctx context.Context, videoPath, hint string) ([]captions.Segment, error) {
	if err := e.load(); err != nil {
		return nil, apperr.Transcription("transcription engine unavailable", err)
	}

	work, err := os.MkdirTemp(e.cfg.ScratchDir, "whisper-*")
	if err != nil {
		return nil, apperr.Transcription("cannot create scratch dir", err)
	}
	defer os.RemoveAll(work)

	wav := filepath.Join(work, "audio.wav")
	if err := e.extractor.ExtractAudio(ctx, videoPath, wav); err != nil {
		return nil, apperr.Transcription("audio extraction failed", err)
	}

	prefix := filepath.Join(work, "out")
	inv := media.Invocation{Binary: e.bin, Args: e.args(wav, prefix, hint), Timeout: e.cfg.Timeout}

	start := time.Now()
	res := e.runner.Run(ctx, inv)
	if !res.IsSuccess() {
		return nil, apperr.Transcription("whisper failed",
			fmt.Errorf("exit %d: %s", res.ExitCode, strings.TrimSpace(res.Diagnostic())))
	}

	data, err := os.ReadFile(prefix + ".json")
	if err != nil {
		return nil, apperr.Transcription("whisper produced no output", err)
	}
	segs, err := parseOutput(data)
	if err != nil {
		return nil, apperr.Transcription("cannot parse whisper output", err)
	}

	e.logger.Info("transcription complete",
		"segments", len(segs),
		"language", hintLabel(hint),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return segs, nil
}

func (e *Engine) args(wav, prefix, hint string) []string {
	args := []string{
		"-m", e.cfg.Model,
		"-f", wav,
		"-oj",
		"-of", prefix,
		"-np",
		"-l", hintLabel(hint),
	}
	if e.cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(e.cfg.Threads))
	}
	return args
}

// whisper.cpp defaults to English when -l is omitted.
func hintLabel(hint string) string {
	if hint == language.Auto {
		return "auto"
	}
	return hint
}

type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseOutput reads whisper.cpp -oj output. Offsets are milliseconds.
func parseOutput(data []byte) ([]captions.Segment, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	segs := make([]captions.Segment, 0, len(out.Transcription))
	for _, t := range out.Transcription {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		start := float64(t.Offsets.From) / 1000
		end := max(float64(t.Offsets.To)/1000, start)
		segs = append(segs, captions.Segment{Start: start, End: end, Text: text})
	}
	return segs, nil
}
