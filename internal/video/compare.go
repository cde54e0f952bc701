package video

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// SideBySide scales both frames to the smaller of their heights, keeping the
// aspect ratio, and places them next to each other.
func SideBySide(left, right *image.RGBA) *image.RGBA {
	h := min(left.Bounds().Dy(), right.Bounds().Dy())
	l := fitHeight(left, h)
	r := fitHeight(right, h)

	out := image.NewRGBA(image.Rect(0, 0, l.Bounds().Dx()+r.Bounds().Dx(), h))
	draw.Draw(out, l.Bounds(), l, l.Bounds().Min, draw.Src)
	draw.Draw(out, r.Bounds().Add(image.Pt(l.Bounds().Dx(), 0)), r, r.Bounds().Min, draw.Src)
	return out
}

func fitHeight(img *image.RGBA, h int) *image.RGBA {
	b := img.Bounds()
	if b.Dy() == h {
		if b.Min == (image.Point{}) {
			return img
		}
		out := image.NewRGBA(image.Rect(0, 0, b.Dx(), h))
		draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
		return out
	}
	w := max(1, b.Dx()*h/b.Dy())
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), img, b, xdraw.Src, nil)
	return out
}

// SideBySideSize is the output size SideBySide produces for the given inputs.
func SideBySideSize(left, right image.Rectangle) (int, int) {
	h := min(left.Dy(), right.Dy())
	lw, rw := left.Dx(), right.Dx()
	if left.Dy() != h {
		lw = max(1, left.Dx()*h/left.Dy())
	}
	if right.Dy() != h {
		rw = max(1, right.Dx()*h/right.Dy())
	}
	return lw + rw, h
}
