package media

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/clipframe/clipframe/internal/apperr"
)

// Encoder runs ffmpeg for crop-and-encode jobs and audio extraction.
type Encoder struct {
	ffmpeg  string
	runner  Runner
	timeout time.Duration
}

func NewEncoder(ffmpeg string, runner Runner, timeout time.Duration) *Encoder {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &Encoder{ffmpeg: ffmpeg, runner: runner, timeout: timeout}
}

// Encode produces job.Output. A non-zero exit, or a missing or empty output
// after a clean exit, is a retryable encode error carrying ffmpeg's stderr.
func (e *Encoder) Encode(ctx context.Context, job EncodeJob) error {
	inv := BuildEncodeCommand(e.ffmpeg, job)
	inv.Timeout = e.timeout

	res := e.runner.Run(ctx, inv)
	if !res.IsSuccess() {
		return apperr.Encode("Failed to process video", res.Diagnostic(),
			fmt.Errorf("ffmpeg exited %d", res.ExitCode))
	}

	info, err := os.Stat(job.Output)
	if err != nil || info.Size() == 0 {
		return apperr.Encode("Output file was not created", res.Diagnostic(), err)
	}
	return nil
}

// ExtractAudio writes the audio track of input as 16 kHz mono WAV.
func (e *Encoder) ExtractAudio(ctx context.Context, input, wav string) error {
	inv := BuildAudioExtractCommand(e.ffmpeg, input, wav)
	inv.Timeout = e.timeout

	res := e.runner.Run(ctx, inv)
	if !res.IsSuccess() {
		return fmt.Errorf("ffmpeg extract audio exited %d: %s", res.ExitCode, truncate(res.Diagnostic(), 512))
	}
	return nil
}
