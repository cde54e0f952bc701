// Package faceswap replaces the lower face of a destination frame with the
// matching region of a source frame. Both frames come with 68-point landmark
// sets in the same layout; the destination hull is triangulated once and the
// facets are carried over to the source by index.
package faceswap

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/andresmejia3/mouthswap/internal/landmarks"
)

// Options tunes a swap. The zero value is not usable; start from DefaultOptions.
type Options struct {
	// Tolerance is the per-axis distance, in pixels, within which a
	// triangulation vertex is matched back to a hull point.
	Tolerance float64
	// AntiAlias softens facet edges that only partly cover a pixel.
	AntiAlias bool
	// ColorTransfer matches the warped region's L*a*b* statistics to the
	// destination before blending.
	ColorTransfer bool
	// Workers is the number of goroutines resampling facets of one frame.
	Workers int
	Clone   CloneOptions
}

// DefaultOptions returns the settings used by the CLI.
func DefaultOptions() Options {
	return Options{
		Tolerance: 1.0,
		AntiAlias: true,
		Workers:   1,
		Clone: CloneOptions{
			MaxIterations: 500,
			Tolerance:     1e-3,
		},
	}
}

// Result describes one swapped frame. Frame is always set: when Swap fails it
// holds an unmodified copy of the destination frame.
type Result struct {
	Frame     *image.RGBA
	Hull      []int
	Triangles []Triangle
	Warped    int
	Skipped   int
	Elapsed   time.Duration
}

// Swap warps the lower face of src onto dst. Neither input image is modified.
// On error the returned Result still carries a copy of dst so callers can pass
// the frame through.
func Swap(src, dst *image.RGBA, srcMarks, dstMarks landmarks.Set, opts Options) (*Result, error) {
	start := time.Now()
	res := &Result{}
	fail := func(err error) (*Result, error) {
		res.Frame = cloneRGBA(dst)
		res.Elapsed = time.Since(start)
		return res, err
	}

	dstPts, err := landmarks.Filter(dstMarks)
	if err != nil {
		return fail(stageErr(StageFilter, err))
	}
	srcPts, err := landmarks.Filter(srcMarks)
	if err != nil {
		return fail(stageErr(StageFilter, err))
	}

	match, err := MatchHull(dstPts, srcPts)
	if err != nil {
		return fail(stageErr(StageHull, err))
	}
	res.Hull = match.Indices

	tris, err := Triangulate(match.Dst, dst.Bounds(), opts.Tolerance)
	if err != nil {
		return fail(stageErr(StageTriangulate, err))
	}
	res.Triangles = tris

	warped := cloneRGBA(dst)
	res.Warped, res.Skipped = warpAll(src, warped, match, tris, opts)
	if res.Warped == 0 {
		return fail(stageErr(StageWarp, fmt.Errorf("%w: all %d facets are degenerate", ErrDegenerateGeometry, len(tris))))
	}

	if opts.ColorTransfer {
		TransferColor(warped, dst, HullMask(match.Dst, dst.Bounds()))
	}

	out, err := Composite(dst, warped, match.Dst, opts.Clone)
	if err != nil {
		return fail(stageErr(StageComposite, err))
	}
	res.Frame = out
	res.Elapsed = time.Since(start)
	return res, nil
}

// warpAll resamples every facet and blends them into warped in facet order.
// Resampling runs on opts.Workers goroutines; blending stays on the caller's
// goroutine so overlapping facet rectangles are written one at a time.
func warpAll(src, warped *image.RGBA, match *HullMatch, tris []Triangle, opts Options) (done, skipped int) {
	patches := make([]*patch, len(tris))
	work := func(i int) {
		t := tris[i]
		ts := [3]landmarks.Point{match.Src[t[0]], match.Src[t[1]], match.Src[t[2]]}
		td := [3]landmarks.Point{match.Dst[t[0]], match.Dst[t[1]], match.Dst[t[2]]}
		p, err := warpTriangle(src, ts, td, opts.AntiAlias)
		if err == nil {
			patches[i] = p
		}
	}

	if opts.Workers <= 1 {
		for i := range tris {
			work(i)
		}
	} else {
		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < opts.Workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					work(i)
				}
			}()
		}
		for i := range tris {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
	}

	for _, p := range patches {
		if p == nil {
			skipped++
			continue
		}
		p.blend(warped)
		done++
	}
	return done, skipped
}

// Composite blends warped into dst over the solid hull polygon, anchored at
// the centre of the hull's bounding box. It runs once per frame, after all
// facets are written.
func Composite(dst, warped *image.RGBA, hull landmarks.Set, opts CloneOptions) (*image.RGBA, error) {
	mask := HullMask(hull, dst.Bounds())
	box := maskBounds(mask)
	if box.Dx() == 0 || box.Dy() == 0 {
		return nil, fmt.Errorf("%w: hull covers no pixels", ErrEmptyBlendRegion)
	}
	centre := box.Min.Add(image.Pt(box.Dx()/2, box.Dy()/2))
	return SeamlessClone(warped, dst, mask, centre, opts)
}

func cloneRGBA(img *image.RGBA) *image.RGBA {
	out := &image.RGBA{
		Pix:    make([]uint8, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(out.Pix, img.Pix)
	return out
}
