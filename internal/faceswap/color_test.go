package faceswap

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransferColor(t *testing.T) {
	img := solid(20, 20, color.RGBA{200, 40, 40, 255})
	ref := solid(20, 20, color.RGBA{40, 60, 200, 255})
	mask := squareMask(img.Bounds(), image.Rect(5, 5, 15, 15))

	TransferColor(img, ref, mask)

	got := img.RGBAAt(10, 10)
	assert.InDelta(t, 40, got.R, 2)
	assert.InDelta(t, 60, got.G, 2)
	assert.InDelta(t, 200, got.B, 2)

	// Unmasked pixels keep their colour.
	assert.Equal(t, color.RGBA{200, 40, 40, 255}, img.RGBAAt(1, 1))
}

func TestTransferColor_EmptyMask(t *testing.T) {
	img := solid(10, 10, white)
	TransferColor(img, solid(10, 10, gray), image.NewAlpha(img.Bounds()))
	assert.Equal(t, white, img.RGBAAt(5, 5))
}
