package api

import (
	"time"

	"github.com/clipframe/clipframe/internal/captions"
	"github.com/clipframe/clipframe/internal/lifecycle"
	"github.com/clipframe/clipframe/internal/media"
	"github.com/clipframe/clipframe/internal/render"
)

type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	UptimeS int64          `json:"uptime_s"`
	Tools   *ToolsResponse `json:"tools,omitempty"`
}

type ToolsResponse struct {
	FFmpeg        media.ToolInfo `json:"ffmpeg"`
	FFprobe       media.ToolInfo `json:"ffprobe"`
	Whisper       media.ToolInfo `json:"whisper"`
	WhisperModel  media.ToolInfo `json:"whisper_model"`
	CanCrop       bool           `json:"can_crop"`
	CanTranscribe bool           `json:"can_transcribe"`
	LastProbeAt   string         `json:"last_probe_at"`
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type UploadResponse struct {
	FileID           string     `json:"file_id"`
	OriginalFilename string     `json:"original_filename"`
	Dimensions       Dimensions `json:"dimensions"`
}

type CropResponse struct {
	OutputFile      string            `json:"output_file"`
	TranscriptFiles map[string]string `json:"transcript_files"`
}

type TranscribeResponse struct {
	SRTContent       string        `json:"srt_content"`
	ProcessingParams render.Params `json:"processing_params"`
}

// RenderBody is the JSON body of POST /render. Absent fields take the
// defaults applied in toRequest.
type RenderBody struct {
	SkipEdit       *bool           `json:"skip_edit"`
	SRTContent     string          `json:"srt_content"`
	TargetRatio    string          `json:"target_ratio"`
	Position       *float64        `json:"position"`
	Volume         *float64        `json:"volume"`
	Language       string          `json:"language"`
	SubtitleStyles *captions.Style `json:"subtitle_styles"`
}

type RenderResponse struct {
	OutputFile string `json:"output_file"`
	Message    string `json:"message"`
}

type ConfirmResponse struct {
	Status  string            `json:"status"`
	Cleanup lifecycle.Outcome `json:"cleanup"`
}

type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Detail   string `json:"detail,omitempty"`
	CanRetry bool   `json:"can_retry"`
}

func (b RenderBody) toRequest(fileID string) render.RenderRequest {
	req := render.RenderRequest{
		FileID:      fileID,
		SkipEdit:    true,
		SRTContent:  b.SRTContent,
		TargetRatio: "9:16",
		Position:    50,
		Volume:      100,
		Language:    b.Language,
		Style:       b.SubtitleStyles,
	}
	if b.SkipEdit != nil {
		req.SkipEdit = *b.SkipEdit
	}
	if b.TargetRatio != "" {
		req.TargetRatio = b.TargetRatio
	}
	if b.Position != nil {
		req.Position = *b.Position
	}
	if b.Volume != nil {
		req.Volume = *b.Volume
	}
	return req
}

func ToolsToResponse(c *media.Capabilities) *ToolsResponse {
	if c == nil {
		return nil
	}
	return &ToolsResponse{
		FFmpeg:        c.FFmpeg,
		FFprobe:       c.FFprobe,
		Whisper:       c.Whisper,
		WhisperModel:  c.WhisperModel,
		CanCrop:       c.CanCrop,
		CanTranscribe: c.CanTranscribe,
		LastProbeAt:   c.ProbedAt.Format(time.RFC3339),
	}
}
