package media

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"
)

const (
	maxStderrBytes = 8 * 1024  // 8 KB tail of stderr kept for diagnostics
	maxStdoutBytes = 64 * 1024 // probes print a line or two; whisper writes to files

	// waitDelay bounds how long Wait blocks on output pipes held open by
	// grandchildren after the tool itself was killed.
	waitDelay = 5 * time.Second
)

// Runner executes a single external tool invocation.
type Runner interface {
	Run(ctx context.Context, inv Invocation) RunResult
}

// RunResult is the structured outcome of executing a subprocess.
type RunResult struct {
	ExitCode   int
	Stdout     string
	StderrTail string // last N bytes of stderr
	Duration   time.Duration
	Err        error // start failure or context error; nil on a clean or non-zero exit
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 && r.Err == nil }

// Diagnostic is the best text to show a user for a failed run.
func (r RunResult) Diagnostic() string {
	if r.StderrTail != "" {
		return r.StderrTail
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return ""
}

// SubprocessRunner is the production Runner. It never goes through a shell.
type SubprocessRunner struct {
	logger *slog.Logger
}

func NewSubprocessRunner(logger *slog.Logger) *SubprocessRunner {
	return &SubprocessRunner{logger: logger}
}

func (r *SubprocessRunner) Run(ctx context.Context, inv Invocation) RunResult {
	start := time.Now()

	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Binary, inv.Args...)
	cmd.WaitDelay = waitDelay

	// Capture output with bounded buffers
	var stderrBuf, stdoutBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, limit: maxStdoutBytes}

	r.logger.Debug("executing command", "binary", inv.Binary, "args", inv.Args)

	err := cmd.Run()
	elapsed := time.Since(start)

	result := RunResult{
		Stdout:     stdoutBuf.String(),
		StderrTail: stderrBuf.String(),
		Duration:   elapsed,
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
			result.Err = err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.Err = ctxErr
		}
	}

	if !result.IsSuccess() {
		r.logger.Warn("command failed",
			"binary", inv.Binary,
			"exit_code", result.ExitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(result.Diagnostic(), 512),
		)
	} else {
		r.logger.Debug("command succeeded",
			"binary", inv.Binary,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	return result
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
