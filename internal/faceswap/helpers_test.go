package faceswap

import (
	"image"
	"image/color"
	"math"

	"github.com/andresmejia3/mouthswap/internal/landmarks"
)

// faceMarks lays 68 points on a wobbly ring around (cx, cy) so that the
// filtered set has interior points as well as a proper hull. Every point gets
// its own radius, which keeps the hull free of cocircular runs.
func faceMarks(cx, cy, r float64) landmarks.Set {
	s := make(landmarks.Set, landmarks.FullCount)
	for i := range s {
		a := 2 * math.Pi * float64(i) / float64(len(s))
		rr := r * (0.6 + 0.4*float64((i*37)%len(s))/float64(len(s)-1))
		s[i] = landmarks.Point{X: cx + rr*math.Cos(a), Y: cy + rr*math.Sin(a)}
	}
	return s
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// gradient is a smooth test pattern, so interpolation errors stay small.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8((x + y) / 2), A: 255})
		}
	}
	return img
}

func polygonArea(pts landmarks.Set) float64 {
	var a float64
	for i := range pts {
		p, q := pts[i], pts[(i+1)%len(pts)]
		a += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(a) / 2
}

func centroid(a, b, c landmarks.Point) image.Point {
	return image.Pt(int(math.Round((a.X+b.X+c.X)/3)), int(math.Round((a.Y+b.Y+c.Y)/3)))
}

var (
	gray  = color.RGBA{128, 128, 128, 255}
	white = color.RGBA{255, 255, 255, 255}
)
