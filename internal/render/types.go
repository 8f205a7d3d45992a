package render

import (
	"github.com/clipframe/clipframe/internal/captions"
	"github.com/clipframe/clipframe/internal/lifecycle"
)

type UploadResult struct {
	FileID           string
	OriginalFilename string
	Width            int
	Height           int
	Size             int64
}

type CropRequest struct {
	FileID        string
	TargetRatio   string
	Position      float64
	Volume        float64
	Language      string
	BurnSubtitles bool
}

type CropResult struct {
	OutputFile string
	// TranscriptFiles maps "srt" and "txt" to downloadable file names. It is
	// empty unless a language was requested without burn-in.
	TranscriptFiles map[string]string
	Captions        bool
	Cleanup         lifecycle.CleanupReport
}

type TranscribeRequest struct {
	FileID      string
	Language    string
	TargetRatio string
	Position    float64
	Volume      float64
}

// Params echoes the rendering parameters a client passes back to Render.
type Params struct {
	TargetRatio string  `json:"target_ratio"`
	Position    float64 `json:"position"`
	Volume      float64 `json:"volume"`
	Language    string  `json:"language"`
}

type TranscribeResult struct {
	SRTContent string
	Params     Params
}

type RenderRequest struct {
	FileID      string
	SkipEdit    bool
	SRTContent  string
	TargetRatio string
	Position    float64
	Volume      float64
	Language    string
	Style       *captions.Style
}

type RenderResult struct {
	OutputFile string
	Captions   bool
	Cleanup    lifecycle.CleanupReport
}
