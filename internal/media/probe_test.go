package media

import (
	"context"
	"testing"

	"github.com/clipframe/clipframe/internal/apperr"
)

func TestParseDimensions(t *testing.T) {
	tests := []struct {
		out     string
		w, h    int
		wantErr bool
	}{
		{"1920x1080\n", 1920, 1080, false},
		{"\n  1080x1920  \n", 1080, 1920, false},
		{"640x480x\n", 640, 480, false},
		{"", 0, 0, true},
		{"N/AxN/A", 0, 0, true},
		{"0x1080", 0, 0, true},
		{"1920", 0, 0, true},
	}
	for _, tt := range tests {
		w, h, err := parseDimensions(tt.out)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDimensions(%q) err = %v, wantErr %v", tt.out, err, tt.wantErr)
			continue
		}
		if w != tt.w || h != tt.h {
			t.Errorf("parseDimensions(%q) = %dx%d, want %dx%d", tt.out, w, h, tt.w, tt.h)
		}
	}
}

func TestProber_Dimensions(t *testing.T) {
	fake := &fakeRunner{result: RunResult{Stdout: "1920x1080\n"}}
	p := NewProber("/usr/bin/ffprobe", fake, 0)

	w, h, err := p.Dimensions(context.Background(), "/data/uploads/a.mp4")
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 1920 || h != 1080 {
		t.Errorf("got %dx%d", w, h)
	}
	if len(fake.calls) != 1 || fake.calls[0].Binary != "/usr/bin/ffprobe" {
		t.Errorf("unexpected calls: %+v", fake.calls)
	}
	if args := fake.calls[0].Args; args[len(args)-1] != "/data/uploads/a.mp4" {
		t.Errorf("path not last argument: %q", args)
	}
}

func TestProber_DimensionsFailure(t *testing.T) {
	fake := &fakeRunner{result: RunResult{ExitCode: 1, StderrTail: "moov atom not found"}}
	p := NewProber("", fake, 0)

	_, _, err := p.Dimensions(context.Background(), "bad.mp4")
	if !apperr.IsKind(err, apperr.KindProbe) {
		t.Fatalf("err = %v, want probe error", err)
	}
	if apperr.As(err).Detail != "moov atom not found" {
		t.Errorf("Detail = %q", apperr.As(err).Detail)
	}
	if fake.calls[0].Binary != "ffprobe" {
		t.Errorf("default binary = %q", fake.calls[0].Binary)
	}
}

func TestProber_UnparseableOutput(t *testing.T) {
	p := NewProber("ffprobe", &fakeRunner{result: RunResult{Stdout: "garbage"}}, 0)
	_, _, err := p.Dimensions(context.Background(), "a.mp4")
	if !apperr.IsKind(err, apperr.KindProbe) {
		t.Errorf("err = %v, want probe error", err)
	}
}
