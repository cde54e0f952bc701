package faceswap

import (
	"fmt"
	"image"
	"math"

	"github.com/andresmejia3/mouthswap/internal/landmarks"
	"github.com/fogleman/delaunay"
)

// Triangle holds three positions into the hull point list. Positions rather
// than coordinates are stored so the same facet can be looked up in the
// source and destination hulls.
type Triangle [3]int

// minTriangleArea is the smallest facet area, in square pixels, that is kept.
const minTriangleArea = 1e-6

// Triangulate computes a Delaunay triangulation of pts restricted to rect and
// maps every facet back to positions in pts. A vertex matches a point when both
// axis distances are below tol; the closest such point wins. Facets with an
// unmatched vertex, a repeated position, or near-zero area are dropped.
func Triangulate(pts landmarks.Set, rect image.Rectangle, tol float64) ([]Triangle, error) {
	var inside []delaunay.Point
	for _, p := range pts {
		if rectContains(rect, p) {
			inside = append(inside, delaunay.Point{X: p.X, Y: p.Y})
		}
	}
	if len(inside) < 3 {
		return nil, fmt.Errorf("%w: %d of %d points inside %v", ErrTriangulationFailed, len(inside), len(pts), rect)
	}

	tri, err := delaunay.Triangulate(inside)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTriangulationFailed, err)
	}

	var out []Triangle
	for i := 0; i+2 < len(tri.Triangles); i += 3 {
		var t Triangle
		ok := true
		for k := 0; k < 3; k++ {
			v := tri.Points[tri.Triangles[i+k]]
			j := nearest(pts, landmarks.Point{X: v.X, Y: v.Y}, tol)
			if j < 0 {
				ok = false
				break
			}
			t[k] = j
		}
		if !ok || t[0] == t[1] || t[1] == t[2] || t[0] == t[2] {
			continue
		}
		if math.Abs(cross(pts[t[0]], pts[t[1]], pts[t[2]]))/2 < minTriangleArea {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no facet matched %d hull points", ErrTriangulationFailed, len(pts))
	}
	return out, nil
}

// rectContains is inclusive on all four edges.
func rectContains(r image.Rectangle, p landmarks.Point) bool {
	return p.X >= float64(r.Min.X) && p.Y >= float64(r.Min.Y) &&
		p.X <= float64(r.Max.X) && p.Y <= float64(r.Max.Y)
}

func nearest(pts landmarks.Set, v landmarks.Point, tol float64) int {
	best, bestD := -1, math.Inf(1)
	for i, p := range pts {
		dx, dy := math.Abs(p.X-v.X), math.Abs(p.Y-v.Y)
		if dx >= tol || dy >= tol {
			continue
		}
		if d := dx*dx + dy*dy; d < bestD {
			best, bestD = i, d
		}
	}
	return best
}
