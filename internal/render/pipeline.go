package render

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/clipframe/clipframe/internal/apperr"
	"github.com/clipframe/clipframe/internal/captions"
	"github.com/clipframe/clipframe/internal/config"
	"github.com/clipframe/clipframe/internal/geometry"
	"github.com/clipframe/clipframe/internal/lifecycle"
	"github.com/clipframe/clipframe/internal/logging"
	"github.com/clipframe/clipframe/internal/media"
)

// job is one crop or render attempt against a probed session.
type job struct {
	fileID     string
	params     params
	burn       bool
	export     bool
	style      *captions.Style
	edited     string
	outputName string
}

type outcome struct {
	output      *lifecycle.Artifact
	transcripts map[string]string
	captions    bool
	cleanup     lifecycle.CleanupReport
}

// process runs geometry, optional captions and the encode for j. Once the
// session is processing, every exit releases the source and the transient
// subtitle and overlay files; a failed attempt also drops its output.
func (s *Service) process(ctx context.Context, j job) (_ *outcome, err error) {
	sess, err := s.manager.Active(ctx, j.fileID)
	if err != nil {
		return nil, err
	}
	src, err := s.source(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if terr := s.manager.Transition(ctx, sess.ID, lifecycle.StateProcessing, nil); terr != nil {
		if errors.Is(terr, lifecycle.ErrInvalidTransition) || errors.Is(terr, lifecycle.ErrStateConflict) {
			return nil, apperr.Validation("file is not ready for processing")
		}
		return nil, apperr.Unexpected("cannot start processing", terr)
	}

	logger := logging.WithSessionID(s.logger, sess.ID)
	o := &outcome{transcripts: map[string]string{}}

	defer func() {
		cctx := context.WithoutCancel(ctx)
		report := s.manager.ReleaseRoles(cctx, sess.ID, lifecycle.RoleSubtitle, lifecycle.RoleOverlay)
		next := lifecycle.StateCompleted
		if err != nil {
			next = lifecycle.StateFailed
			report.Merge(s.manager.ReleaseRoles(cctx, sess.ID, lifecycle.RoleOutput, lifecycle.RoleTranscript))
		}
		report.Merge(s.manager.Release(cctx, src))
		if terr := s.manager.Transition(cctx, sess.ID, next, err); terr != nil {
			logger.Warn("cannot finish session", "state", next, "error", terr)
		}
		o.cleanup = report
		logger.Debug("attempt cleaned up", "state", next, "cleanup", report.Outcome())
	}()

	crop, err := geometry.Compute(sess.Width, sess.Height, j.params.ratio, j.params.position)
	if err != nil {
		return nil, err
	}
	if err = lifecycle.CheckWritable(s.manager.Namespaces().Outputs); err != nil {
		return nil, err
	}

	enc := media.EncodeJob{Input: src.Path, Crop: crop, Volume: j.params.volume}
	if j.burn {
		if enc.OverlayPath, err = s.overlay(ctx, logger, sess.ID, src, j, crop); err != nil {
			return nil, err
		}
		o.captions = enc.OverlayPath != ""
	}

	output, err := s.manager.Reserve(ctx, sess.ID, lifecycle.RoleOutput, j.outputName)
	if err != nil {
		return nil, err
	}
	enc.Output = output.Path

	start := time.Now()
	if err = s.encoder.Encode(ctx, enc); err != nil {
		logger.Error("encode failed", "crop", crop.Filter(), "error", err)
		return nil, err
	}
	o.output = output
	logger.Info("encode complete",
		"output", output.Name,
		"crop", crop.Filter(),
		"captions", o.captions,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if j.export {
		o.transcripts = s.exportTranscripts(ctx, logger, sess.ID, src, j.params.language)
	}
	return o, nil
}

// overlay writes the ASS script to burn into the output and returns its
// path, or "" when the encode should proceed without captions.
func (s *Service) overlay(ctx context.Context, logger *slog.Logger, sessionID string, src *lifecycle.Artifact, j job, crop geometry.Crop) (string, error) {
	segments, err := s.captionSegments(ctx, sessionID, src, j)
	if err != nil {
		if apperr.IsKind(err, apperr.KindTranscription) && s.policy == config.BurnSkip {
			logger.Warn("captions skipped", "error", err)
			return "", nil
		}
		return "", err
	}

	script, err := captions.Overlay(segments, captions.ResolveStyle(j.style, crop.Height), crop.Width, crop.Height)
	if err != nil {
		logger.Warn("no captions to burn in", "error", err)
		return "", nil
	}

	a, err := s.manager.Reserve(ctx, sessionID, lifecycle.RoleOverlay, "temp_"+lifecycle.NewID()+".ass")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(a.Path, []byte(script), 0o644); err != nil {
		return "", apperr.Unexpected("cannot write caption overlay", err)
	}
	return a.Path, nil
}

// captionSegments uses the edited SRT when there is one, otherwise it
// transcribes the source.
func (s *Service) captionSegments(ctx context.Context, sessionID string, src *lifecycle.Artifact, j job) ([]captions.Segment, error) {
	if j.edited == "" {
		segments, err := s.transcriber.Transcribe(ctx, src.Path, j.params.language)
		if err != nil {
			return nil, asTranscription(err)
		}
		return segments, nil
	}

	tmp, err := s.manager.Reserve(ctx, sessionID, lifecycle.RoleSubtitle, "temp_"+lifecycle.NewID()+".srt")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(tmp.Path, []byte(j.edited), 0o644); err != nil {
		return nil, apperr.Unexpected("Failed to process subtitle file", err)
	}
	return captions.ParseSRT(j.edited), nil
}

// exportTranscripts writes transcript_<id>.srt and .txt. Any failure is
// logged and leaves no transcript files behind.
func (s *Service) exportTranscripts(ctx context.Context, logger *slog.Logger, sessionID string, src *lifecycle.Artifact, hint string) map[string]string {
	files := map[string]string{}
	segments, err := s.transcriber.Transcribe(ctx, src.Path, hint)
	if err != nil {
		logger.Warn("transcript export failed", "error", err)
		return files
	}

	exports := []struct {
		key     string
		name    string
		content string
	}{
		{"srt", "transcript_" + sessionID + ".srt", captions.SRT(segments)},
		{"txt", "transcript_" + sessionID + ".txt", captions.PlainText(segments)},
	}

	var written []*lifecycle.Artifact
	for _, e := range exports {
		a, err := s.manager.Reserve(ctx, sessionID, lifecycle.RoleTranscript, e.name)
		if err == nil {
			written = append(written, a)
			err = os.WriteFile(a.Path, []byte(e.content), 0o644)
		}
		if err != nil {
			logger.Warn("transcript export failed", "file", e.name, "error", err)
			for _, w := range written {
				s.manager.Release(context.WithoutCancel(ctx), w)
			}
			return map[string]string{}
		}
		files[e.key] = a.Name
	}
	logger.Info("transcripts exported", "segments", len(segments))
	return files
}
