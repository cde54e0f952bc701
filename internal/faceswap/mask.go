package faceswap

import (
	"image"
	"math"

	"github.com/andresmejia3/mouthswap/internal/landmarks"
	"golang.org/x/image/vector"
)

// Pixel (i, j) is centred on the integer coordinate (i, j), the convention the
// landmark detector reports in. The rasterizer treats pixel i as the span
// [i, i+1], so polygons are shifted by half a pixel before drawing.
const pixelCentre = 0.5

// edgeEpsilon keeps centres lying on a shared edge inside both facets.
const edgeEpsilon = 1e-9

// polygonMask rasterizes the convex polygon poly, given in coordinates local to
// a w x h window, into an alpha mask. Pixels whose centres lie inside or on the
// polygon are opaque. With antiAlias set, pixels that the polygon only grazes
// keep their fractional coverage; otherwise they stay transparent.
func polygonMask(poly []landmarks.Point, w, h int, antiAlias bool) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	if w <= 0 || h <= 0 || len(poly) < 3 {
		return mask
	}

	if antiAlias {
		z := vector.NewRasterizer(w, h)
		z.MoveTo(float32(poly[0].X+pixelCentre), float32(poly[0].Y+pixelCentre))
		for _, p := range poly[1:] {
			z.LineTo(float32(p.X+pixelCentre), float32(p.Y+pixelCentre))
		}
		z.ClosePath()
		z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	}

	orient := polygonOrientation(poly)
	for y := 0; y < h; y++ {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		for x := range row {
			if row[x] == 0xff {
				continue
			}
			if insideConvex(poly, orient, float64(x), float64(y)) {
				row[x] = 0xff
			}
		}
	}
	return mask
}

func polygonOrientation(poly []landmarks.Point) float64 {
	var area float64
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		area += a.X*b.Y - b.X*a.Y
	}
	if area < 0 {
		return -1
	}
	return 1
}

// insideConvex reports whether (x, y) is inside or on a convex polygon whose
// winding sign is orient.
func insideConvex(poly []landmarks.Point, orient, x, y float64) bool {
	p := landmarks.Point{X: x, Y: y}
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		l := math.Hypot(b.X-a.X, b.Y-a.Y)
		if l == 0 {
			continue
		}
		if orient*cross(a, b, p)/l < -edgeEpsilon {
			return false
		}
	}
	return true
}

// boundingRect is the integer rectangle covering every pixel centre that can
// fall inside pts: the extents are truncated towards negative infinity.
func boundingRect(pts []landmarks.Point) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	x0, y0 := int(math.Floor(minX)), int(math.Floor(minY))
	x1, y1 := int(math.Floor(maxX)), int(math.Floor(maxY))
	return image.Rect(x0, y0, x1+1, y1+1)
}

// localize translates pts so that r.Min becomes the origin.
func localize(pts []landmarks.Point, r image.Rectangle) []landmarks.Point {
	out := make([]landmarks.Point, len(pts))
	for i, p := range pts {
		out[i] = landmarks.Point{X: p.X - float64(r.Min.X), Y: p.Y - float64(r.Min.Y)}
	}
	return out
}

// HullMask rasterizes the hull polygon over the frame bounds and returns a
// binary mask: every pixel the polygon touches is opaque.
func HullMask(hull landmarks.Set, bounds image.Rectangle) *image.Alpha {
	local := localize(hull, bounds)
	mask := polygonMask(local, bounds.Dx(), bounds.Dy(), true)
	for i, v := range mask.Pix {
		if v != 0 {
			mask.Pix[i] = 0xff
		}
	}
	mask.Rect = bounds
	return mask
}
