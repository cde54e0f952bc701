package faceswap

import (
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// labStats holds per-channel mean and standard deviation in CIE L*a*b*.
type labStats struct {
	mean, std [3]float64
}

func maskedLab(img *image.RGBA, mask *image.Alpha) ([][3]float64, labStats) {
	var px [][3]float64
	b := mask.Bounds().Intersect(img.Bounds())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.AlphaAt(x, y).A == 0 {
				continue
			}
			o := img.PixOffset(x, y)
			c := colorful.Color{
				R: float64(img.Pix[o]) / 255,
				G: float64(img.Pix[o+1]) / 255,
				B: float64(img.Pix[o+2]) / 255,
			}
			l, a, bb := c.Lab()
			px = append(px, [3]float64{l, a, bb})
		}
	}
	var st labStats
	if len(px) == 0 {
		return px, st
	}
	n := float64(len(px))
	for _, v := range px {
		for c := range v {
			st.mean[c] += v[c]
		}
	}
	for c := range st.mean {
		st.mean[c] /= n
	}
	for _, v := range px {
		for c := range v {
			d := v[c] - st.mean[c]
			st.std[c] += d * d
		}
	}
	for c := range st.std {
		st.std[c] = math.Sqrt(st.std[c] / n)
	}
	return px, st
}

// TransferColor shifts the L*a*b* mean and spread of the masked region of img
// to match the same region of reference. img is modified in place.
func TransferColor(img, reference *image.RGBA, mask *image.Alpha) {
	px, src := maskedLab(img, mask)
	if len(px) == 0 {
		return
	}
	_, tgt := maskedLab(reference, mask)

	var scale, shift [3]float64
	for c := 0; c < 3; c++ {
		sd := math.Max(src.std[c], 1e-6)
		scale[c] = tgt.std[c] / sd
		shift[c] = tgt.mean[c] - src.mean[c]*scale[c]
	}

	i := 0
	b := mask.Bounds().Intersect(img.Bounds())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.AlphaAt(x, y).A == 0 {
				continue
			}
			v := px[i]
			i++
			r, g, bl := colorful.Lab(
				v[0]*scale[0]+shift[0],
				v[1]*scale[1]+shift[1],
				v[2]*scale[2]+shift[2],
			).Clamped().RGB255()
			o := img.PixOffset(x, y)
			img.Pix[o], img.Pix[o+1], img.Pix[o+2] = r, g, bl
		}
	}
}
