package faceswap

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cloneOpts = CloneOptions{MaxIterations: 2000, Tolerance: 1e-4}

func squareMask(bounds, square image.Rectangle) *image.Alpha {
	m := image.NewAlpha(bounds)
	for y := square.Min.Y; y < square.Max.Y; y++ {
		for x := square.Min.X; x < square.Max.X; x++ {
			m.SetAlpha(x, y, color.Alpha{A: 0xff})
		}
	}
	return m
}

func TestSeamlessClone_UniformSourceTakesBoundaryTone(t *testing.T) {
	src := solid(60, 60, white)
	dst := solid(60, 60, gray)
	mask := squareMask(src.Bounds(), image.Rect(20, 20, 40, 40))

	out, err := SeamlessClone(src, dst, mask, image.Pt(30, 30), cloneOpts)
	require.NoError(t, err)

	// A flat source has no gradients to transfer, so the region relaxes to
	// the destination tone.
	c := out.RGBAAt(30, 30)
	assert.InDelta(t, 128, c.R, 1)
	assert.InDelta(t, 128, c.G, 1)
	assert.Equal(t, gray, dst.RGBAAt(30, 30), "dst must not be modified")
}

func TestSeamlessClone_MatchingBoundaryKeepsSource(t *testing.T) {
	// Source equals destination outside the region and differs inside: the
	// guidance field then reproduces the source exactly.
	dst := gradient(80, 80)
	src := cloneRGBA(dst)
	for y := 30; y < 50; y++ {
		for x := 30; x < 50; x++ {
			src.SetRGBA(x, y, color.RGBA{R: 250, G: 10, B: 90, A: 255})
		}
	}
	mask := squareMask(src.Bounds(), image.Rect(25, 25, 55, 55))

	out, err := SeamlessClone(src, dst, mask, image.Pt(40, 40), cloneOpts)
	require.NoError(t, err)

	for _, p := range []image.Point{{35, 35}, {40, 40}, {49, 31}} {
		assert.Equal(t, src.RGBAAt(p.X, p.Y), out.RGBAAt(p.X, p.Y), "%v", p)
	}
	assert.Equal(t, dst.RGBAAt(5, 5), out.RGBAAt(5, 5))
}

func TestSeamlessClone_Offset(t *testing.T) {
	dst := solid(60, 60, gray)
	src := solid(60, 60, gray)
	// A bright spot in the middle of a flat source square.
	src.SetRGBA(15, 15, white)
	mask := squareMask(src.Bounds(), image.Rect(10, 10, 21, 21))

	out, err := SeamlessClone(src, dst, mask, image.Pt(40, 40), cloneOpts)
	require.NoError(t, err)

	// The spot lands at centre + (spot - box centre).
	assert.Greater(t, out.RGBAAt(40, 40).R, uint8(200))
	assert.Equal(t, gray, out.RGBAAt(15, 15))
}

func TestSeamlessClone_Empty(t *testing.T) {
	src := solid(20, 20, white)
	dst := solid(20, 20, gray)

	_, err := SeamlessClone(src, dst, image.NewAlpha(src.Bounds()), image.Pt(10, 10), cloneOpts)
	assert.ErrorIs(t, err, ErrEmptyBlendRegion)

	// A mask on the frame border only has no interior pixels.
	border := squareMask(src.Bounds(), image.Rect(0, 0, 20, 1))
	_, err = SeamlessClone(src, dst, border, image.Pt(10, 0), cloneOpts)
	assert.ErrorIs(t, err, ErrEmptyBlendRegion)
}

func TestMaskBounds(t *testing.T) {
	m := squareMask(image.Rect(0, 0, 30, 30), image.Rect(4, 7, 12, 9))
	assert.Equal(t, image.Rect(4, 7, 12, 9), maskBounds(m))
	assert.True(t, maskBounds(image.NewAlpha(image.Rect(0, 0, 5, 5))).Empty())
}
