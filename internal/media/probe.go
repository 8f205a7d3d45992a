package media

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clipframe/clipframe/internal/apperr"
)

// Prober reads video stream metadata with ffprobe.
type Prober struct {
	ffprobe string
	runner  Runner
	timeout time.Duration
}

func NewProber(ffprobe string, runner Runner, timeout time.Duration) *Prober {
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	return &Prober{ffprobe: ffprobe, runner: runner, timeout: timeout}
}

// Dimensions returns the width and height of the first video stream.
func (p *Prober) Dimensions(ctx context.Context, path string) (int, int, error) {
	inv := BuildProbeCommand(p.ffprobe, path)
	inv.Timeout = p.timeout

	res := p.runner.Run(ctx, inv)
	if !res.IsSuccess() {
		return 0, 0, apperr.Probe("could not process video file", res.Diagnostic(),
			fmt.Errorf("ffprobe exited %d", res.ExitCode))
	}

	w, h, err := parseDimensions(res.Stdout)
	if err != nil {
		return 0, 0, apperr.Probe("could not read video dimensions", strings.TrimSpace(res.Stdout), err)
	}
	return w, h, nil
}

// parseDimensions reads the first "WxH" line of ffprobe csv output.
func parseDimensions(out string) (int, int, error) {
	var line string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	if line == "" {
		return 0, 0, fmt.Errorf("no video stream found")
	}

	parts := strings.Split(strings.Trim(line, "x"), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected ffprobe output %q", line)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse width %q: %w", parts[0], err)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse height %q: %w", parts[1], err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid dimensions %dx%d", w, h)
	}
	return w, h, nil
}
