package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipframe/clipframe/internal/apperr"
)

func TestCompute_VerticalFromLandscape(t *testing.T) {
	got, err := Compute(1920, 1080, Vertical, 50)
	require.NoError(t, err)

	// 1080*9/16 = 607 -> 606 after the even step; offset uses the pre-even width.
	assert.Equal(t, Crop{Width: 606, Height: 1080, X: 656, Y: 0}, got)
	assert.Equal(t, "crop=606:1080:656:0", got.Filter())
}

func TestCompute_VerticalPositionExtremes(t *testing.T) {
	left, err := Compute(1920, 1080, Vertical, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, left.X)

	right, err := Compute(1920, 1080, Vertical, 100)
	require.NoError(t, err)
	assert.Equal(t, 1920-607, right.X)
	assert.LessOrEqual(t, right.X+right.Width, 1920)
}

func TestCompute_HorizontalFromPortrait(t *testing.T) {
	got, err := Compute(1080, 1920, Horizontal, 10)
	require.NoError(t, err)

	// 1080*9/16 = 607 -> 606; centred: (1920-607)/2 = 656.
	assert.Equal(t, Crop{Width: 1080, Height: 606, X: 0, Y: 656}, got)
}

func TestCompute_OddSourceDimensions(t *testing.T) {
	got, err := Compute(1281, 721, Horizontal, 50)
	require.NoError(t, err)
	assert.Equal(t, 1280, got.Width)
	assert.Equal(t, 0, got.Height%2)
}

func TestCompute_TallSourceClampsWidth(t *testing.T) {
	got, err := Compute(100, 1000, Vertical, 50)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Width)
	assert.Equal(t, 0, got.X)
}

func TestCompute_Properties(t *testing.T) {
	sizes := [][2]int{{2, 2}, {3, 7}, {640, 480}, {1920, 1080}, {1080, 1920}, {3840, 2160}, {1001, 999}}
	positions := []float64{0, 12.5, 33, 50, 99.9, 100}

	for _, sz := range sizes {
		w, h := sz[0], sz[1]
		for _, pos := range positions {
			v, err := Compute(w, h, Vertical, pos)
			require.NoError(t, err)
			assert.LessOrEqual(t, v.Width, w)
			assert.Equal(t, h-h%2, v.Height)
			assert.GreaterOrEqual(t, v.X, 0)
			assert.LessOrEqual(t, v.X, w-v.Width)
			assert.Zero(t, v.Width%2)

			hz, err := Compute(w, h, Horizontal, pos)
			require.NoError(t, err)
			assert.Equal(t, w-w%2, hz.Width)
			assert.Equal(t, 0, hz.X)
			assert.Equal(t, (h-min(w*9/16, h))/2, hz.Y)
			assert.LessOrEqual(t, hz.Y+hz.Height, h)
		}
	}
}

func TestCompute_Errors(t *testing.T) {
	_, err := Compute(0, 1080, Vertical, 50)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidMedia))

	_, err = Compute(1920, -1, Horizontal, 50)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidMedia))

	_, err = Compute(1920, 1080, Ratio("4:3"), 50)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = Compute(1920, 1080, Vertical, 101)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	for _, pos := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err = Compute(1920, 1080, Vertical, pos)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation), "position %v", pos)
	}
}

func TestParseRatio(t *testing.T) {
	r, err := ParseRatio("9:16")
	require.NoError(t, err)
	assert.Equal(t, Vertical, r)

	_, err = ParseRatio("1:1")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
