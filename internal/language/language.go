// Package language maps the language names accepted by the HTTP surface
// to the ISO 639-1 hints whisper.cpp expects.
package language

import (
	"github.com/clipframe/clipframe/internal/apperr"
)

// Auto means no hint: whisper detects the spoken language itself.
const Auto = ""

// codes maps request names to whisper hints. Names are matched exactly.
var codes = map[string]string{
	"hebrew":  "he",
	"english": "en",
}

// Normalize returns the whisper language hint for name. An empty name maps
// to Auto. Anything other than hebrew or english is a validation error.
func Normalize(name string) (string, error) {
	if name == "" {
		return Auto, nil
	}
	if code, ok := codes[name]; ok {
		return code, nil
	}
	return "", apperr.Validation("Language must be either 'hebrew' or 'english'")
}

// Requested reports whether name asks for transcription at all.
func Requested(name string) bool {
	return name != ""
}
