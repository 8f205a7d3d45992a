// Package download streams finished outputs and transcripts to clients,
// honouring single byte-range requests so players can seek.
package download

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
)

var contentTypes = map[string]string{
	".mp4": "video/mp4",
	".srt": "application/x-subrip",
	".txt": "text/plain; charset=utf-8",
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// Serve writes the file at path as an attachment called name. A missing
// file is reported as os.ErrNotExist without writing a response.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}
	size := info.Size()

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", contentType(path))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))

	// A malformed range yields a nil span and the whole file is sent.
	span, err := ParseRange(r.Header.Get("Range"), size)
	if errors.Is(err, ErrUnsatisfiable) {
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}
	status, length := http.StatusOK, size
	if span != nil {
		if _, err := f.Seek(span.First, io.SeekStart); err != nil {
			return fmt.Errorf("seek %s: %w", name, err)
		}
		status, length = http.StatusPartialContent, span.Length()
		h.Set("Content-Range", span.Header(size))
	}
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return nil
	}
	n, err := io.CopyN(w, f, length)
	if err != nil {
		s.logger.Debug("download interrupted", "file", name, "sent", n, "error", err)
	}
	return nil
}

// contentType resolves by extension first and sniffs the file otherwise.
func contentType(path string) string {
	if ct, ok := contentTypes[filepath.Ext(path)]; ok {
		return ct
	}
	if mt, err := mimetype.DetectFile(path); err == nil {
		return mt.String()
	}
	return "application/octet-stream"
}
