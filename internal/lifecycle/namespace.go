package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/clipframe/clipframe/internal/apperr"
)

// Namespaces are the directories artifacts live in, one per kind of file.
type Namespaces struct {
	Uploads     string
	Outputs     string
	Transcripts string
}

func NewNamespaces(dataDir string) Namespaces {
	return Namespaces{
		Uploads:     filepath.Join(dataDir, "uploads"),
		Outputs:     filepath.Join(dataDir, "outputs"),
		Transcripts: filepath.Join(dataDir, "transcripts"),
	}
}

// Dir is the directory artifacts of role are stored in.
func (n Namespaces) Dir(role Role) string {
	switch role {
	case RoleSource:
		return n.Uploads
	case RoleOutput:
		return n.Outputs
	default:
		return n.Transcripts
	}
}

// Ensure creates every namespace and checks it can be written.
func (n Namespaces) Ensure() error {
	for _, dir := range []string{n.Uploads, n.Outputs, n.Transcripts} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.Permission(fmt.Sprintf("cannot create %s", dir), err)
		}
		if err := CheckWritable(dir); err != nil {
			return err
		}
	}
	return nil
}

// CheckWritable probes dir by creating and removing a file in it.
func CheckWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return apperr.Permission(fmt.Sprintf("no write permission for %s", filepath.Base(dir)), err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return nil
}

// ValidateName rejects artifact names that could escape their namespace.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("file name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." || strings.Contains(name, "..") {
		return apperr.Validation("invalid file name %q", name)
	}
	if filepath.Base(name) != name {
		return apperr.Validation("invalid file name %q", name)
	}
	return nil
}

// SanitizeName reduces an uploaded file name to letters, digits and a few
// punctuation marks, truncated to maxLen runes when maxLen > 0.
func SanitizeName(s string, maxLen int) string {
	s = filepath.Base(strings.ReplaceAll(s, `\`, "/"))
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(strings.TrimSpace(b.String()), ".")
	for strings.Contains(cleaned, "..") {
		cleaned = strings.ReplaceAll(cleaned, "..", ".")
	}
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = string(runes[len(runes)-maxLen:])
		}
	}
	if cleaned == "" {
		return "video"
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '-', '_', '.', '(', ')':
		return true
	default:
		return false
	}
}
