package download

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformedRange = errors.New("malformed range header")
	ErrUnsatisfiable  = errors.New("range not satisfiable")
)

// Span is an inclusive byte range of a file.
type Span struct {
	First int64
	Last  int64
}

func (s Span) Length() int64 {
	return s.Last - s.First + 1
}

// Header renders the Content-Range value for a file of size bytes.
func (s Span) Header(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", s.First, s.Last, size)
}

// ParseRange interprets a Range header against a file of size bytes. An
// empty header yields nil. Only the first range of a multi-range request is
// honoured.
func ParseRange(header string, size int64) (*Span, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, ErrMalformedRange
	}
	if first, _, multi := strings.Cut(spec, ","); multi {
		spec = first
	}
	from, to, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return nil, ErrMalformedRange
	}

	var span Span
	switch {
	case from == "":
		n, err := strconv.ParseInt(to, 10, 64)
		if err != nil || n <= 0 {
			return nil, ErrMalformedRange
		}
		span = Span{First: max(size-n, 0), Last: size - 1}
	default:
		first, err := strconv.ParseInt(from, 10, 64)
		if err != nil || first < 0 {
			return nil, ErrMalformedRange
		}
		last := size - 1
		if to != "" {
			if last, err = strconv.ParseInt(to, 10, 64); err != nil {
				return nil, ErrMalformedRange
			}
		}
		span = Span{First: first, Last: last}
	}

	if span.First > span.Last || span.First >= size {
		return nil, ErrUnsatisfiable
	}
	span.Last = min(span.Last, size-1)
	return &span, nil
}
