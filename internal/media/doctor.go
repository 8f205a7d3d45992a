package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// ToolInfo is the availability of one external tool or resource.
type ToolInfo struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Capabilities reports what the host can do right now.
type Capabilities struct {
	FFmpeg        ToolInfo  `json:"ffmpeg"`
	FFprobe       ToolInfo  `json:"ffprobe"`
	Whisper       ToolInfo  `json:"whisper"`
	WhisperModel  ToolInfo  `json:"whisper_model"`
	CanCrop       bool      `json:"can_crop"`
	CanTranscribe bool      `json:"can_transcribe"`
	ProbedAt      time.Time `json:"probed_at"`
}

// Checker inspects the environment for the tools the pipeline needs.
type Checker interface {
	Check(ctx context.Context) (*Capabilities, error)
}

// ToolChecker is the production Checker.
type ToolChecker struct {
	FFmpeg       string
	FFprobe      string
	Whisper      string
	WhisperModel string
	Runner       Runner
}

func (c *ToolChecker) Check(ctx context.Context) (*Capabilities, error) {
	caps := &Capabilities{
		FFmpeg:       c.versioned(ctx, c.FFmpeg),
		FFprobe:      c.versioned(ctx, c.FFprobe),
		Whisper:      lookup(c.Whisper),
		WhisperModel: fileInfo(c.WhisperModel),
		ProbedAt:     time.Now(),
	}
	caps.CanCrop = caps.FFmpeg.Available && caps.FFprobe.Available
	caps.CanTranscribe = caps.FFmpeg.Available && caps.Whisper.Available && caps.WhisperModel.Available
	return caps, nil
}

func (c *ToolChecker) versioned(ctx context.Context, bin string) ToolInfo {
	info := lookup(bin)
	if !info.Available || c.Runner == nil {
		return info
	}
	res := c.Runner.Run(ctx, Invocation{Binary: info.Path, Args: []string{"-version"}, Timeout: 10 * time.Second})
	if !res.IsSuccess() {
		info.Available = false
		info.Error = truncate(res.Diagnostic(), 256)
		return info
	}
	first, _, _ := strings.Cut(res.Stdout, "\n")
	info.Version = strings.TrimSpace(first)
	return info
}

func lookup(bin string) ToolInfo {
	if bin == "" {
		return ToolInfo{Error: "not configured"}
	}
	p, err := exec.LookPath(bin)
	if err != nil {
		return ToolInfo{Path: bin, Error: err.Error()}
	}
	return ToolInfo{Available: true, Path: p}
}

func fileInfo(path string) ToolInfo {
	if path == "" {
		return ToolInfo{Error: "not configured"}
	}
	st, err := os.Stat(path)
	if err != nil {
		return ToolInfo{Path: path, Error: err.Error()}
	}
	if st.IsDir() {
		return ToolInfo{Path: path, Error: fmt.Sprintf("%s is a directory", path)}
	}
	return ToolInfo{Available: true, Path: path}
}

// CachedDoctor wraps a Checker to cache results with a configurable TTL.
// This avoids spawning ffmpeg on every health check.
type CachedDoctor struct {
	checker Checker
	ttl     time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

// NewCachedDoctor creates a caching wrapper around capability checks.
func NewCachedDoctor(checker Checker, ttl time.Duration, logger *slog.Logger) *CachedDoctor {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedDoctor{checker: checker, ttl: ttl, logger: logger}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

func (d *CachedDoctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh forces a new probe regardless of cache freshness.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.checker.Check(ctx)
	if err != nil {
		d.logger.Warn("capability probe failed", "error", err)
		// Return stale cache if available
		if d.cached != nil {
			return d.cached, nil
		}
		return nil, err
	}

	d.logger.Info("capability probe complete",
		"can_crop", caps.CanCrop,
		"can_transcribe", caps.CanTranscribe,
	)
	d.cached = caps
	return caps, nil
}
