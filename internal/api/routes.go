package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"

	"github.com/clipframe/clipframe/internal/apperr"
	"github.com/clipframe/clipframe/internal/render"
)

// sniffLen is how much of an upload is inspected when the client sent no
// useful content type.
const sniffLen = 3072

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackCORS())

	r.Get("/health", healthHandler(cfg))

	r.With(MaxBodyMiddleware(cfg.MaxUploadBytes)).Post("/upload", uploadHandler(cfg))
	r.Post("/crop/{file_id}", cropHandler(cfg))
	r.Post("/transcribe/{file_id}", transcribeHandler(cfg))
	r.Post("/render/{file_id}", renderHandler(cfg))
	r.Get("/download/{filename}", downloadHandler(cfg))
	r.Head("/download/{filename}", downloadHandler(cfg))
	r.Post("/confirm-download/{file_id}", confirmHandler(cfg))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		}
		if cfg.Doctor != nil {
			if caps, err := cfg.Doctor.Get(r.Context()); err == nil {
				resp.Tools = ToolsToResponse(caps)
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "expected a multipart/form-data upload", "VALIDATION")
			return
		}

		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				WriteError(w, http.StatusBadRequest, "file is required", "VALIDATION")
				return
			}
			if err != nil {
				writeUploadError(w, r, cfg, err)
				return
			}
			if part.FormName() != "file" || part.FileName() == "" {
				part.Close()
				continue
			}

			body, ok, err := videoBody(part)
			if err != nil {
				part.Close()
				writeUploadError(w, r, cfg, err)
				return
			}
			if !ok {
				part.Close()
				WriteError(w, http.StatusBadRequest, "File must be a video", "VALIDATION")
				return
			}

			res, err := cfg.Pipeline.Upload(r.Context(), part.FileName(), body)
			part.Close()
			if err != nil {
				writeUploadError(w, r, cfg, err)
				return
			}
			WriteJSON(w, http.StatusOK, UploadResponse{
				FileID:           res.FileID,
				OriginalFilename: res.OriginalFilename,
				Dimensions:       Dimensions{Width: res.Width, Height: res.Height},
			})
			return
		}
	}
}

// videoBody accepts a part declared as video/*, or an untyped part whose
// leading bytes sniff as video.
func videoBody(part *multipart.Part) (io.Reader, bool, error) {
	ct := part.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "video/") {
		return part, true, nil
	}
	if ct != "" && ct != "application/octet-stream" {
		return nil, false, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(part, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, false, err
	}
	head = head[:n]
	if !strings.HasPrefix(mimetype.Detect(head).String(), "video/") {
		return nil, false, nil
	}
	return io.MultiReader(bytes.NewReader(head), part), true, nil
}

func writeUploadError(w http.ResponseWriter, r *http.Request, cfg ServerConfig, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WriteError(w, http.StatusRequestEntityTooLarge, "upload exceeds the size limit", "TOO_LARGE")
		return
	}
	WriteAppError(w, r, cfg.Logger, err)
}

func cropHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := render.CropRequest{
			FileID:      chi.URLParam(r, "file_id"),
			TargetRatio: q.Get("target_ratio"),
			Language:    q.Get("language"),
		}
		if req.TargetRatio == "" {
			WriteAppError(w, r, cfg.Logger, apperr.Validation("target_ratio is required"))
			return
		}

		var err error
		if req.Position, err = queryFloat(q, "position", 50); err == nil {
			if req.Volume, err = queryFloat(q, "volume", 100); err == nil {
				req.BurnSubtitles, err = queryBool(q, "burn_subtitles")
			}
		}
		if err != nil {
			WriteAppError(w, r, cfg.Logger, err)
			return
		}

		res, err := cfg.Pipeline.Crop(r.Context(), req)
		if err != nil {
			WriteAppError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, CropResponse{
			OutputFile:      res.OutputFile,
			TranscriptFiles: res.TranscriptFiles,
		})
	}
}

func transcribeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := render.TranscribeRequest{
			FileID:      chi.URLParam(r, "file_id"),
			Language:    q.Get("language"),
			TargetRatio: q.Get("target_ratio"),
		}
		if req.Language == "" || req.TargetRatio == "" {
			WriteAppError(w, r, cfg.Logger, apperr.Validation("language and target_ratio are required"))
			return
		}

		var err error
		if req.Position, err = queryFloat(q, "position", 50); err == nil {
			req.Volume, err = queryFloat(q, "volume", 100)
		}
		if err != nil {
			WriteAppError(w, r, cfg.Logger, err)
			return
		}

		res, err := cfg.Pipeline.Transcribe(r.Context(), req)
		if err != nil {
			WriteAppError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, TranscribeResponse{
			SRTContent:       res.SRTContent,
			ProcessingParams: res.Params,
		})
	}
}

func renderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body RenderBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "VALIDATION")
			return
		}

		res, err := cfg.Pipeline.Render(r.Context(), body.toRequest(chi.URLParam(r, "file_id")))
		if err != nil {
			WriteAppError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, RenderResponse{
			OutputFile: res.OutputFile,
			Message:    "Video processed successfully",
		})
	}
}

func downloadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := url.PathUnescape(chi.URLParam(r, "filename"))
		if err != nil {
			WriteAppError(w, r, cfg.Logger, apperr.Validation("invalid file name"))
			return
		}

		a, err := cfg.Pipeline.Locate(r.Context(), name)
		if err != nil {
			WriteAppError(w, r, cfg.Logger, err)
			return
		}
		if err := cfg.Downloads.Serve(w, r, a.Path, a.Name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				WriteAppError(w, r, cfg.Logger, apperr.NotFound("File not found"))
				return
			}
			WriteAppError(w, r, cfg.Logger, apperr.Unexpected("cannot read file", err))
		}
	}
}

func confirmHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := cfg.Pipeline.Confirm(r.Context(), chi.URLParam(r, "file_id"))
		if err != nil {
			WriteAppError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, ConfirmResponse{Status: "success", Cleanup: report.Outcome()})
	}
}

func queryFloat(q url.Values, key string, def float64) (float64, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, apperr.Validation("%s must be a number", key)
	}
	return f, nil
}

func queryBool(q url.Values, key string) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, apperr.Validation("%s must be true or false", key)
	}
	return b, nil
}
