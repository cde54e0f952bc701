package faceswap

import (
	"fmt"
	"image"
	"math"

	"github.com/andresmejia3/mouthswap/internal/landmarks"
	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/mat"
)

// Affine returns the 2x3 transform mapping the triangle from onto the triangle
// to. The result is in x/image row-major layout:
//
//	x' = m[0]*x + m[1]*y + m[2]
//	y' = m[3]*x + m[4]*y + m[5]
func Affine(from, to [3]landmarks.Point) (f64.Aff3, error) {
	a := mat.NewDense(3, 3, []float64{
		from[0].X, from[0].Y, 1,
		from[1].X, from[1].Y, 1,
		from[2].X, from[2].Y, 1,
	})
	b := mat.NewDense(3, 2, []float64{
		to[0].X, to[0].Y,
		to[1].X, to[1].Y,
		to[2].X, to[2].Y,
	})
	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return f64.Aff3{}, fmt.Errorf("%w: %v", ErrDegenerateGeometry, err)
	}
	return f64.Aff3{
		x.At(0, 0), x.At(1, 0), x.At(2, 0),
		x.At(0, 1), x.At(1, 1), x.At(2, 1),
	}, nil
}

// invert returns the inverse of an affine transform.
func invert(m f64.Aff3) (f64.Aff3, error) {
	det := m[0]*m[4] - m[1]*m[3]
	if math.Abs(det) < 1e-12 {
		return f64.Aff3{}, fmt.Errorf("%w: singular affine map", ErrDegenerateGeometry)
	}
	inv := 1 / det
	a, b := m[4]*inv, -m[1]*inv
	d, e := -m[3]*inv, m[0]*inv
	return f64.Aff3{
		a, b, -(a*m[2] + b*m[5]),
		d, e, -(d*m[2] + e*m[5]),
	}, nil
}

// patch is one warped facet ready to be blended into the destination frame.
type patch struct {
	rect image.Rectangle // destination frame coordinates
	pix  []uint8         // RGBA, rect-sized
	mask *image.Alpha    // rect-sized, origin at (0, 0)
}

// warpTriangle resamples the source facet ts into the footprint of the
// destination facet td. The source and destination bounding rectangles are
// sized independently from their own facet.
func warpTriangle(src *image.RGBA, ts, td [3]landmarks.Point, antiAlias bool) (*patch, error) {
	r1 := boundingRect(ts[:])
	r2 := boundingRect(td[:])

	t1 := localize(ts[:], r1)
	t2 := localize(td[:], r2)

	fwd, err := Affine([3]landmarks.Point{t1[0], t1[1], t1[2]}, [3]landmarks.Point{t2[0], t2[1], t2[2]})
	if err != nil {
		return nil, err
	}
	back, err := invert(fwd)
	if err != nil {
		return nil, err
	}

	area := r1.Intersect(src.Bounds())
	if area.Empty() {
		return nil, fmt.Errorf("%w: source facet %v lies outside the frame", ErrDegenerateGeometry, r1)
	}

	w, h := r2.Dx(), r2.Dy()
	p := &patch{
		rect: r2,
		pix:  make([]uint8, w*h*4),
		mask: polygonMask(t2, w, h, antiAlias),
	}

	// Offset of the clipped source area inside the unclipped source rect.
	ox := float64(area.Min.X - r1.Min.X)
	oy := float64(area.Min.Y - r1.Min.Y)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if p.mask.Pix[y*p.mask.Stride+x] == 0 {
				continue
			}
			fx, fy := float64(x), float64(y)
			u := back[0]*fx + back[1]*fy + back[2] - ox
			v := back[3]*fx + back[4]*fy + back[5] - oy
			off := (y*w + x) * 4
			bilinear(src, area, u, v, p.pix[off:off+4])
		}
	}
	return p, nil
}

// blend writes the patch into dst as dst*(1-m) + warped*m.
func (p *patch) blend(dst *image.RGBA) {
	clip := p.rect.Intersect(dst.Bounds())
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		ly := y - p.rect.Min.Y
		for x := clip.Min.X; x < clip.Max.X; x++ {
			lx := x - p.rect.Min.X
			m := p.mask.Pix[ly*p.mask.Stride+lx]
			if m == 0 {
				continue
			}
			so := (ly*p.rect.Dx() + lx) * 4
			do := dst.PixOffset(x, y)
			if m == 0xff {
				copy(dst.Pix[do:do+3], p.pix[so:so+3])
				dst.Pix[do+3] = 0xff
				continue
			}
			a := float64(m) / 0xff
			for c := 0; c < 3; c++ {
				v := float64(dst.Pix[do+c])*(1-a) + float64(p.pix[so+c])*a
				dst.Pix[do+c] = clamp8(v)
			}
			dst.Pix[do+3] = 0xff
		}
	}
}

// WarpTriangle warps the source facet ts of src onto the destination facet td
// of dst in place.
func WarpTriangle(src, dst *image.RGBA, ts, td [3]landmarks.Point, antiAlias bool) error {
	p, err := warpTriangle(src, ts, td, antiAlias)
	if err != nil {
		return err
	}
	p.blend(dst)
	return nil
}

// bilinear samples img at (u, v), relative to area.Min, reflecting indices
// that fall outside area (reflect-101: the edge pixel is not repeated).
func bilinear(img *image.RGBA, area image.Rectangle, u, v float64, out []uint8) {
	w, h := area.Dx(), area.Dy()
	x0f, y0f := math.Floor(u), math.Floor(v)
	fx, fy := u-x0f, v-y0f
	x0, y0 := int(x0f), int(y0f)

	xa, xb := reflect101(x0, w)+area.Min.X, reflect101(x0+1, w)+area.Min.X
	ya, yb := reflect101(y0, h)+area.Min.Y, reflect101(y0+1, h)+area.Min.Y

	p00 := img.PixOffset(xa, ya)
	p10 := img.PixOffset(xb, ya)
	p01 := img.PixOffset(xa, yb)
	p11 := img.PixOffset(xb, yb)
	for c := 0; c < 3; c++ {
		top := float64(img.Pix[p00+c])*(1-fx) + float64(img.Pix[p10+c])*fx
		bot := float64(img.Pix[p01+c])*(1-fx) + float64(img.Pix[p11+c])*fx
		out[c] = clamp8(top*(1-fy) + bot*fy)
	}
	out[3] = 0xff
}

// reflect101 folds i into [0, n) as gfedcb|abcdefgh|gfedcba.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

func clamp8(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
