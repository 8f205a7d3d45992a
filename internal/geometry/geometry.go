// Package geometry derives the crop window that reframes a source video to a
// target aspect ratio.
package geometry

import (
	"fmt"
	"math"

	"github.com/clipframe/clipframe/internal/apperr"
)

// Ratio is a supported output aspect ratio.
type Ratio string

const (
	Vertical   Ratio = "9:16"
	Horizontal Ratio = "16:9"
)

// ParseRatio accepts only the two supported ratios.
func ParseRatio(s string) (Ratio, error) {
	switch Ratio(s) {
	case Vertical, Horizontal:
		return Ratio(s), nil
	default:
		return "", apperr.Validation("invalid aspect ratio %q: must be 9:16 or 16:9", s)
	}
}

// Crop is the rectangle of the source frame kept in the output.
type Crop struct {
	Width  int
	Height int
	X      int
	Y      int
}

// Filter renders the crop as an ffmpeg crop filter expression.
func (c Crop) Filter() string {
	return fmt.Sprintf("crop=%d:%d:%d:%d", c.Width, c.Height, c.X, c.Y)
}

// Compute returns the crop window for a srcW x srcH frame.
//
// For 9:16 the window spans the full height and slides horizontally; position
// is the percentage of the available horizontal travel. For 16:9 the window
// spans the full width and is centred vertically. Offsets are derived before
// width and height are rounded down to even values.
func Compute(srcW, srcH int, ratio Ratio, position float64) (Crop, error) {
	if srcW <= 0 || srcH <= 0 {
		return Crop{}, apperr.InvalidMedia("invalid source dimensions %dx%d", srcW, srcH)
	}
	if math.IsNaN(position) || position < 0 || position > 100 {
		return Crop{}, apperr.Validation("position must be between 0 and 100")
	}

	var c Crop
	switch ratio {
	case Vertical:
		c.Height = srcH
		c.Width = min(srcH*9/16, srcW)
		maxOffset := srcW - c.Width
		c.X = int(position / 100 * float64(maxOffset))
	case Horizontal:
		c.Width = srcW
		c.Height = min(srcW*9/16, srcH)
		c.Y = (srcH - c.Height) / 2
	default:
		return Crop{}, apperr.Validation("invalid aspect ratio %q", string(ratio))
	}

	c.Width -= c.Width % 2
	c.Height -= c.Height % 2
	return c, nil
}
