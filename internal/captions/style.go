package captions

import (
	"math"
	"strings"

	"github.com/clipframe/clipframe/internal/apperr"
)

// Style is the caption styling sent by the browser editor. Nil fields are
// absent in the request.
type Style struct {
	FontSize    *int     `json:"fontSize,omitempty"`
	FontColor   *string  `json:"fontColor,omitempty"`
	BorderSize  *int     `json:"borderSize,omitempty"`
	BorderColor *string  `json:"borderColor,omitempty"`
	YPosition   *float64 `json:"yPosition,omitempty"`
}

// Fallbacks for individual fields missing from a supplied Style.
const (
	fallbackFontSize    = 24
	fallbackFontColor   = "ffffff"
	fallbackBorderSize  = 2
	fallbackBorderColor = "000000"
	fallbackYPosition   = 90.0
)

// Resolved is a fully populated style. Colors are in ASS BBGGRR order.
type Resolved struct {
	FontSize    int
	FontColor   string
	BorderSize  int
	BorderColor string
	YPosition   float64
}

// Empty reports whether no field of s was supplied.
func (s *Style) Empty() bool {
	return s == nil || (s.FontSize == nil && s.FontColor == nil && s.BorderSize == nil &&
		s.BorderColor == nil && s.YPosition == nil)
}

// Validate rejects values that cannot produce a sane overlay.
func (s *Style) Validate() error {
	if s == nil {
		return nil
	}
	if s.YPosition != nil && (math.IsNaN(*s.YPosition) || *s.YPosition < 0 || *s.YPosition > 100) {
		return apperr.Validation("yPosition must be between 0 and 100")
	}
	if s.FontSize != nil && *s.FontSize <= 0 {
		return apperr.Validation("fontSize must be positive")
	}
	if s.BorderSize != nil && *s.BorderSize < 0 {
		return apperr.Validation("borderSize must not be negative")
	}
	return nil
}

// DefaultFontSize scales the font with the output height, within [32, 64].
func DefaultFontSize(height int) int {
	return max(32, min(64, height/15))
}

// DefaultStyle is applied when the request carries no style at all.
func DefaultStyle(height int) Resolved {
	return Resolved{
		FontSize:    DefaultFontSize(height),
		FontColor:   "FFFFFF",
		BorderSize:  3,
		BorderColor: "000000",
		YPosition:   90,
	}
}

// ResolveStyle fills every field for an output of the given height.
// A nil or empty style yields DefaultStyle; otherwise missing fields take
// the per-field fallbacks and colors are converted to ASS order.
func ResolveStyle(s *Style, height int) Resolved {
	if s.Empty() {
		return DefaultStyle(height)
	}
	r := Resolved{
		FontSize:    fallbackFontSize,
		FontColor:   fallbackFontColor,
		BorderSize:  fallbackBorderSize,
		BorderColor: fallbackBorderColor,
		YPosition:   fallbackYPosition,
	}
	if s.FontSize != nil {
		r.FontSize = *s.FontSize
	}
	if s.FontColor != nil {
		r.FontColor = *s.FontColor
	}
	if s.BorderSize != nil {
		r.BorderSize = *s.BorderSize
	}
	if s.BorderColor != nil {
		r.BorderColor = *s.BorderColor
	}
	if s.YPosition != nil {
		r.YPosition = *s.YPosition
	}
	r.FontColor = RGBToASS(r.FontColor)
	r.BorderColor = RGBToASS(r.BorderColor)
	return r
}

// RGBToASS converts RRGGBB (optionally #-prefixed) to ASS BBGGRR.
// Anything that is not six hex digits becomes white.
func RGBToASS(color string) string {
	color = strings.TrimLeft(color, "#")
	if len(color) != 6 || strings.IndexFunc(color, notHex) >= 0 {
		return "FFFFFF"
	}
	return color[4:6] + color[2:4] + color[0:2]
}

func notHex(r rune) bool {
	return !('0' <= r && r <= '9' || 'a' <= r && r <= 'f' || 'A' <= r && r <= 'F')
}

// MarginV is the bottom margin that places captions at yPosition percent
// of the frame height.
func (r Resolved) MarginV(height int) int {
	return int(float64(height) * (100 - r.YPosition) / 100)
}
