package media

import (
	"reflect"
	"strings"
	"testing"

	"github.com/clipframe/clipframe/internal/geometry"
)

func TestBuildEncodeCommand_ArgumentOrder(t *testing.T) {
	job := EncodeJob{
		Input:  "/data/uploads/abc_in.mp4",
		Output: "/data/outputs/cropped_abc.mp4",
		Crop:   geometry.Crop{Width: 606, Height: 1080, X: 656},
		Volume: 150,
	}
	inv := BuildEncodeCommand("ffmpeg", job)

	want := []string{
		"-y",
		"-i", "/data/uploads/abc_in.mp4",
		"-filter_complex", "[0:v]crop=606:1080:656:0[v];[0:a]volume=1.5[a]",
		"-map", "[v]",
		"-map", "[a]",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-profile:v", "main",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-c:a", "aac",
		"-b:a", "192k",
		"/data/outputs/cropped_abc.mp4",
	}
	if inv.Binary != "ffmpeg" {
		t.Errorf("Binary = %q", inv.Binary)
	}
	if !reflect.DeepEqual(inv.Args, want) {
		t.Errorf("Args =\n%q\nwant\n%q", inv.Args, want)
	}
}

func TestFilterGraph_WithOverlay(t *testing.T) {
	job := EncodeJob{
		Crop:        geometry.Crop{Width: 1280, Height: 720, Y: 40},
		Volume:      100,
		OverlayPath: "/data/transcripts/temp_1.ass",
	}
	got := FilterGraph(job)
	want := "[0:v]crop=1280:720:0:40[vc];[vc]ass=filename='/data/transcripts/temp_1.ass'[v];[0:a]volume=1[a]"
	if got != want {
		t.Errorf("FilterGraph =\n%s\nwant\n%s", got, want)
	}
}

func TestVolumeFactor(t *testing.T) {
	tests := map[float64]string{0: "0", 25: "0.25", 100: "1", 150: "1.5", 300: "3", 33: "0.33"}
	for in, want := range tests {
		if got := VolumeFactor(in); got != want {
			t.Errorf("VolumeFactor(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestEscapeFilterPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/tmp/a.ass", `'/tmp/a.ass'`},
		{`C:\subs\a.ass`, `'C\:\\subs\\a.ass'`},
		{"/tmp/it's.ass", `'/tmp/it\'\''s.ass'`},
	}
	for _, tt := range tests {
		if got := escapeFilterPath(tt.in); got != tt.want {
			t.Errorf("escapeFilterPath(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestBuildProbeCommand(t *testing.T) {
	inv := BuildProbeCommand("ffprobe", "-weird.mp4")
	got := strings.Join(inv.Args, " ")
	want := "-v error -select_streams v:0 -show_entries stream=width,height -of csv=s=x:p=0 -- -weird.mp4"
	if got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestBuildAudioExtractCommand(t *testing.T) {
	inv := BuildAudioExtractCommand("ffmpeg", "in.mp4", "out.wav")
	want := []string{"-y", "-i", "in.mp4", "-vn", "-ac", "1", "-ar", "16000", "-f", "wav", "out.wav"}
	if !reflect.DeepEqual(inv.Args, want) {
		t.Errorf("Args = %q, want %q", inv.Args, want)
	}
}

func TestInvocation_String(t *testing.T) {
	inv := Invocation{Binary: "ffmpeg", Args: []string{"-i", "a b.mp4", "-map", "[v]"}}
	if got := inv.String(); got != `ffmpeg -i "a b.mp4" -map "[v]"` {
		t.Errorf("String() = %s", got)
	}
}
