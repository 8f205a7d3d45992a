// Package render runs the clipframe pipeline: upload and probe a source,
// crop and encode it, and optionally transcribe and burn in captions.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/clipframe/clipframe/internal/apperr"
	"github.com/clipframe/clipframe/internal/captions"
	"github.com/clipframe/clipframe/internal/config"
	"github.com/clipframe/clipframe/internal/geometry"
	"github.com/clipframe/clipframe/internal/language"
	"github.com/clipframe/clipframe/internal/lifecycle"
	"github.com/clipframe/clipframe/internal/logging"
	"github.com/clipframe/clipframe/internal/media"
)

const (
	maxNameLength = 100
	maxVolume     = 300
)

type Prober interface {
	Dimensions(ctx context.Context, path string) (int, int, error)
}

type Encoder interface {
	Encode(ctx context.Context, job media.EncodeJob) error
}

type Transcriber interface {
	Transcribe(ctx context.Context, videoPath, hint string) ([]captions.Segment, error)
}

// Pipeline is the set of operations served over HTTP.
type Pipeline interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*UploadResult, error)
	Crop(ctx context.Context, req CropRequest) (*CropResult, error)
	Transcribe(ctx context.Context, req TranscribeRequest) (*TranscribeResult, error)
	Render(ctx context.Context, req RenderRequest) (*RenderResult, error)
	Confirm(ctx context.Context, fileID string) (lifecycle.CleanupReport, error)
	Locate(ctx context.Context, filename string) (*lifecycle.Artifact, error)
}

type Service struct {
	manager     *lifecycle.Manager
	prober      Prober
	encoder     Encoder
	transcriber Transcriber
	policy      config.BurnFailurePolicy
	logger      *slog.Logger
}

func NewService(manager *lifecycle.Manager, prober Prober, encoder Encoder, transcriber Transcriber, policy config.BurnFailurePolicy, logger *slog.Logger) *Service {
	if policy == "" {
		policy = config.BurnSkip
	}
	return &Service{
		manager:     manager,
		prober:      prober,
		encoder:     encoder,
		transcriber: transcriber,
		policy:      policy,
		logger:      logging.WithComponent(logger, "render"),
	}
}

// Upload stores body as the source of a new session and probes it. A source
// that cannot be probed is deleted and its session cleaned.
func (s *Service) Upload(ctx context.Context, filename string, body io.Reader) (*UploadResult, error) {
	sess, err := s.manager.Open(ctx, filename)
	if err != nil {
		return nil, err
	}
	logger := logging.WithSessionID(s.logger, sess.ID)

	name := sess.ID + "_" + lifecycle.SanitizeName(filename, maxNameLength)
	src, err := s.manager.Reserve(ctx, sess.ID, lifecycle.RoleSource, name)
	if err != nil {
		s.discard(ctx, sess.ID, err)
		return nil, err
	}

	size, err := writeFrom(src.Path, body)
	if err != nil {
		s.discard(ctx, sess.ID, err)
		return nil, apperr.Unexpected("cannot save upload", err)
	}

	width, height, err := s.prober.Dimensions(ctx, src.Path)
	if err != nil {
		logger.Warn("probe failed, discarding upload", "error", err)
		s.discard(ctx, sess.ID, err)
		return nil, err
	}
	if err := s.manager.SetDimensions(ctx, sess.ID, width, height); err != nil {
		s.discard(ctx, sess.ID, err)
		return nil, apperr.Unexpected("cannot record dimensions", err)
	}
	if err := s.manager.Transition(ctx, sess.ID, lifecycle.StateProbed, nil); err != nil {
		s.discard(ctx, sess.ID, err)
		return nil, err
	}

	logger.Info("upload stored",
		"file", logging.SanitizePath(src.Path),
		logging.Size("size", size),
		"width", width,
		"height", height,
	)
	return &UploadResult{
		FileID:           sess.ID,
		OriginalFilename: filename,
		Width:            width,
		Height:           height,
		Size:             size,
	}, nil
}

// discard removes everything a failed upload left behind.
func (s *Service) discard(ctx context.Context, id string, cause error) {
	report := s.manager.ReleaseRoles(ctx, id)
	if err := s.manager.Transition(ctx, id, lifecycle.StateCleaned, cause); err != nil {
		s.logger.Warn("cannot clean failed upload", "session_id", id, "error", err)
	}
	s.logger.Debug("upload discarded", "session_id", id, "cleanup", report.Outcome())
}

// Crop encodes the source to the requested ratio. When a language is given
// without burn-in, SRT and TXT transcripts are exported alongside; failing
// to produce them does not fail the crop.
func (s *Service) Crop(ctx context.Context, req CropRequest) (*CropResult, error) {
	p, err := validate(req.TargetRatio, req.Position, req.Volume, req.Language, nil)
	if err != nil {
		return nil, err
	}

	lang := language.Requested(req.Language)
	out, err := s.process(ctx, job{
		fileID:     req.FileID,
		params:     p,
		burn:       lang && req.BurnSubtitles,
		export:     lang && !req.BurnSubtitles,
		outputName: "cropped_" + req.FileID + ".mp4",
	})
	if err != nil {
		return nil, err
	}
	return &CropResult{
		OutputFile:      out.output.Name,
		TranscriptFiles: out.transcripts,
		Captions:        out.captions,
		Cleanup:         out.cleanup,
	}, nil
}

// Transcribe returns SRT content for the source so it can be edited before
// Render. The session stays probed and the source is kept.
func (s *Service) Transcribe(ctx context.Context, req TranscribeRequest) (*TranscribeResult, error) {
	if !language.Requested(req.Language) {
		return nil, apperr.Validation("language is required")
	}
	p, err := validate(req.TargetRatio, req.Position, req.Volume, req.Language, nil)
	if err != nil {
		return nil, err
	}

	sess, err := s.manager.Active(ctx, req.FileID)
	if err != nil {
		return nil, err
	}
	src, err := s.source(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	segments, err := s.transcriber.Transcribe(ctx, src.Path, p.language)
	if err != nil {
		return nil, asTranscription(err)
	}
	content := captions.SRT(segments)

	logging.WithSessionID(s.logger, sess.ID).Info("transcript ready", "segments", len(segments))
	return &TranscribeResult{
		SRTContent: content,
		Params: Params{
			TargetRatio: req.TargetRatio,
			Position:    req.Position,
			Volume:      req.Volume,
			Language:    req.Language,
		},
	}, nil
}

// Render encodes the source with optional captions. Captions are burned
// when a language is set and either editing was skipped or edited SRT
// content is supplied; edited content wins over a fresh transcription.
func (s *Service) Render(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	p, err := validate(req.TargetRatio, req.Position, req.Volume, req.Language, req.Style)
	if err != nil {
		return nil, err
	}

	j := job{
		fileID:     req.FileID,
		params:     p,
		burn:       language.Requested(req.Language) && (req.SkipEdit || req.SRTContent != ""),
		style:      req.Style,
		outputName: "cropped_" + lifecycle.NewID() + ".mp4",
	}
	if !req.SkipEdit {
		j.edited = req.SRTContent
	}

	out, err := s.process(ctx, j)
	if err != nil {
		return nil, err
	}
	return &RenderResult{
		OutputFile: out.output.Name,
		Captions:   out.captions,
		Cleanup:    out.cleanup,
	}, nil
}

// Confirm deletes every file of the session once the caller has its
// download.
func (s *Service) Confirm(ctx context.Context, fileID string) (lifecycle.CleanupReport, error) {
	return s.manager.Confirm(ctx, fileID)
}

// Locate resolves a downloadable file name to its artifact.
func (s *Service) Locate(ctx context.Context, filename string) (*lifecycle.Artifact, error) {
	a, err := s.manager.Lookup(ctx, filename)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(a.Path); err != nil {
		return nil, apperr.NotFound("File not found")
	}
	return a, nil
}

// source returns the session's uploaded video.
func (s *Service) source(ctx context.Context, sessionID string) (*lifecycle.Artifact, error) {
	arts, err := s.manager.Artifacts(ctx, sessionID, lifecycle.RoleSource)
	if err != nil {
		return nil, apperr.Unexpected("cannot look up source", err)
	}
	if len(arts) == 0 {
		return nil, apperr.NotFound("Video file not found")
	}
	if _, err := os.Stat(arts[0].Path); err != nil {
		return nil, apperr.NotFound("Video file was removed or is no longer accessible")
	}
	return arts[0], nil
}

type params struct {
	ratio    geometry.Ratio
	position float64
	volume   float64
	language string
}

// validate checks request parameters before anything touches disk.
func validate(ratio string, position, volume float64, lang string, style *captions.Style) (params, error) {
	r, err := geometry.ParseRatio(ratio)
	if err != nil {
		return params{}, err
	}
	if !finite(position) || position < 0 || position > 100 {
		return params{}, apperr.Validation("Position must be between 0 and 100")
	}
	if !finite(volume) || volume < 0 || volume > maxVolume {
		return params{}, apperr.Validation("Volume must be between 0 and %d", maxVolume)
	}
	code, err := language.Normalize(lang)
	if err != nil {
		return params{}, err
	}
	if err := style.Validate(); err != nil {
		return params{}, err
	}
	return params{ratio: r, position: position, volume: volume, language: code}, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func writeFrom(path string, body io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("write %s: %w", path, err)
	}
	return n, nil
}

func asTranscription(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Transcription("transcription failed", err)
}
