package faceswap

import (
	"fmt"
	"image"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// CloneOptions bounds the Poisson solve.
type CloneOptions struct {
	// MaxIterations caps conjugate-gradient steps per channel.
	MaxIterations int
	// Tolerance is the RMS residual, in 8-bit intensity units, at which a
	// channel is considered solved.
	Tolerance float64
}

// SeamlessClone blends the masked region of src into dst by solving the
// discrete Poisson equation with src as the guidance field and dst as the
// boundary condition (gradient-domain cloning). mask is in src coordinates and
// the centre of its bounding box is placed at centre in dst. Pixels on the dst
// border are never modified. The result is a new image; dst is not changed.
func SeamlessClone(src, dst *image.RGBA, mask *image.Alpha, centre image.Point, opts CloneOptions) (*image.RGBA, error) {
	box := maskBounds(mask)
	if box.Empty() {
		return nil, fmt.Errorf("%w: mask is empty", ErrEmptyBlendRegion)
	}
	offset := centre.Sub(box.Min.Add(image.Pt(box.Dx()/2, box.Dy()/2)))

	// Unknowns are the masked pixels that land strictly inside dst.
	interior := dst.Bounds().Inset(1)
	region := box.Add(offset).Intersect(interior)
	if region.Empty() {
		return nil, fmt.Errorf("%w: region %v is outside the frame", ErrEmptyBlendRegion, box.Add(offset))
	}
	index := make([]int32, region.Dx()*region.Dy())
	var pixels []image.Point
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			i := (y-region.Min.Y)*region.Dx() + (x - region.Min.X)
			s := image.Pt(x, y).Sub(offset)
			if !s.In(src.Bounds()) || mask.AlphaAt(s.X, s.Y).A == 0 {
				index[i] = -1
				continue
			}
			index[i] = int32(len(pixels))
			pixels = append(pixels, image.Pt(x, y))
		}
	}
	if len(pixels) == 0 {
		return nil, fmt.Errorf("%w: no interior pixels", ErrEmptyBlendRegion)
	}

	lookup := func(p image.Point) int {
		if !p.In(region) {
			return -1
		}
		return int(index[(p.Y-region.Min.Y)*region.Dx()+(p.X-region.Min.X)])
	}

	sys := &poisson{
		n:         len(pixels),
		neighbors: make([][4]int32, len(pixels)),
	}
	steps := [4]image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for i, p := range pixels {
		for k, d := range steps {
			sys.neighbors[i][k] = int32(lookup(p.Add(d)))
		}
	}

	out := cloneRGBA(dst)

	srcBounds := src.Bounds()
	var wg sync.WaitGroup
	for c := 0; c < 3; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			b := make([]float64, sys.n)
			x := make([]float64, sys.n)
			for i, p := range pixels {
				sp := p.Sub(offset)
				gp := float64(src.Pix[src.PixOffset(sp.X, sp.Y)+c])
				x[i] = gp
				var rhs float64
				for k, d := range steps {
					q := p.Add(d)
					if sys.neighbors[i][k] < 0 {
						rhs += float64(dst.Pix[dst.PixOffset(q.X, q.Y)+c])
					}
					sq := sp.Add(d)
					if sq.In(srcBounds) {
						rhs += gp - float64(src.Pix[src.PixOffset(sq.X, sq.Y)+c])
					}
				}
				b[i] = rhs
			}
			sys.solve(x, b, opts)
			for i, p := range pixels {
				out.Pix[out.PixOffset(p.X, p.Y)+c] = clamp8(x[i])
			}
		}(c)
	}
	wg.Wait()
	return out, nil
}

// poisson is the 5-point Laplacian restricted to the cloned region, with
// neighbours outside the region folded into the right-hand side.
type poisson struct {
	n         int
	neighbors [][4]int32
}

func (s *poisson) apply(dst, x []float64) {
	for i := range x {
		v := 4 * x[i]
		for _, j := range s.neighbors[i] {
			if j >= 0 {
				v -= x[j]
			}
		}
		dst[i] = v
	}
}

// solve runs conjugate gradients from the initial guess in x.
func (s *poisson) solve(x, b []float64, opts CloneOptions) {
	r := make([]float64, s.n)
	ap := make([]float64, s.n)
	s.apply(ap, x)
	floats.SubTo(r, b, ap)
	p := make([]float64, s.n)
	copy(p, r)

	limit := opts.Tolerance * opts.Tolerance * float64(s.n)
	rs := floats.Dot(r, r)
	for it := 0; it < opts.MaxIterations && rs > limit; it++ {
		s.apply(ap, p)
		pap := floats.Dot(p, ap)
		if pap == 0 || math.IsNaN(pap) {
			return
		}
		alpha := rs / pap
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, ap)
		next := floats.Dot(r, r)
		floats.AddScaledTo(p, r, next/rs, p)
		rs = next
	}
}

// maskBounds is the smallest rectangle holding every non-zero mask pixel.
func maskBounds(mask *image.Alpha) image.Rectangle {
	b := mask.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := mask.Pix[(y-b.Min.Y)*mask.Stride : (y-b.Min.Y)*mask.Stride+b.Dx()]
		for i, v := range row {
			if v == 0 {
				continue
			}
			x := b.Min.X + i
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
