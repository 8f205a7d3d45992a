// Package media wraps the ffmpeg and ffprobe command-line tools: probing
// source dimensions, building encode invocations, running them with bounded
// diagnostics, and reporting tool availability.
package media

import (
	"strconv"
	"strings"
	"time"

	"github.com/clipframe/clipframe/internal/geometry"
)

// Invocation is one external tool call: a binary and its argument list.
// Arguments are passed to the process as-is, never through a shell.
type Invocation struct {
	Binary  string
	Args    []string
	Timeout time.Duration // 0 means bound only by the caller's context
}

// String renders the invocation for logs.
func (inv Invocation) String() string {
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, inv.Binary)
	for _, a := range inv.Args {
		if a == "" || strings.ContainsAny(a, " \t'\"[];") {
			a = strconv.Quote(a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// EncodeJob describes one crop-and-encode run.
type EncodeJob struct {
	Input       string
	Output      string
	Crop        geometry.Crop
	Volume      float64 // percent, 100 = unchanged
	OverlayPath string  // ASS script to burn in; empty for none
}

// Encoder settings shared by every output.
var encodeFlags = []string{
	"-c:v", "libx264",
	"-preset", "medium",
	"-crf", "23",
	"-profile:v", "main",
	"-pix_fmt", "yuv420p",
	"-movflags", "+faststart",
	"-c:a", "aac",
	"-b:a", "192k",
}

// FilterGraph returns the -filter_complex expression for job. The final
// streams are labelled [v] and [a].
func FilterGraph(job EncodeJob) string {
	var b strings.Builder
	b.WriteString("[0:v]")
	b.WriteString(job.Crop.Filter())
	if job.OverlayPath != "" {
		b.WriteString("[vc];[vc]ass=filename=")
		b.WriteString(escapeFilterPath(job.OverlayPath))
	}
	b.WriteString("[v];[0:a]volume=")
	b.WriteString(VolumeFactor(job.Volume))
	b.WriteString("[a]")
	return b.String()
}

// VolumeFactor formats percent/100 with the fewest digits that round-trip.
func VolumeFactor(percent float64) string {
	return strconv.FormatFloat(percent/100, 'f', -1, 64)
}

// BuildEncodeCommand assembles the ffmpeg invocation for job.
func BuildEncodeCommand(ffmpeg string, job EncodeJob) Invocation {
	args := []string{
		"-y",
		"-i", job.Input,
		"-filter_complex", FilterGraph(job),
		"-map", "[v]",
		"-map", "[a]",
	}
	args = append(args, encodeFlags...)
	args = append(args, job.Output)
	return Invocation{Binary: ffmpeg, Args: args}
}

// BuildProbeCommand asks ffprobe for the first video stream's dimensions.
func BuildProbeCommand(ffprobe, path string) Invocation {
	return Invocation{
		Binary: ffprobe,
		Args: []string{
			"-v", "error",
			"-select_streams", "v:0",
			"-show_entries", "stream=width,height",
			"-of", "csv=s=x:p=0",
			"--", path,
		},
	}
}

// BuildAudioExtractCommand writes a 16 kHz mono WAV suitable for whisper.
func BuildAudioExtractCommand(ffmpeg, input, wav string) Invocation {
	return Invocation{
		Binary: ffmpeg,
		Args: []string{
			"-y",
			"-i", input,
			"-vn",
			"-ac", "1",
			"-ar", "16000",
			"-f", "wav",
			wav,
		},
	}
}

// escapeFilterPath quotes p for use as a filter option inside a filter
// graph. The option parser sees backslash escapes; the graph parser sees
// the single-quoted form.
func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, `\\`)
	p = strings.ReplaceAll(p, ":", `\:`)
	p = strings.ReplaceAll(p, "'", `\'`)
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}
