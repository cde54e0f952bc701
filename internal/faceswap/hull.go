package faceswap

import (
	"fmt"
	"sort"

	"github.com/andresmejia3/mouthswap/internal/landmarks"
)

// ConvexHull returns the indices of pts on their convex hull using the monotone
// chain algorithm. The order is counter-clockwise in a y-up frame (clockwise
// as displayed on screen) starting from the point with the smallest x, ties
// broken by smallest y. Collinear boundary points are not included.
func ConvexHull(pts landmarks.Set) ([]int, error) {
	if len(pts) < 3 {
		return nil, fmt.Errorf("%w: %d points", ErrDegenerateGeometry, len(pts))
	}

	order := make([]int, len(pts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := pts[order[a]], pts[order[b]]
		if pa.X != pb.X {
			return pa.X < pb.X
		}
		return pa.Y < pb.Y
	})

	hull := make([]int, 0, 2*len(pts))
	// Lower chain.
	for _, i := range order {
		for len(hull) >= 2 && cross(pts[hull[len(hull)-2]], pts[hull[len(hull)-1]], pts[i]) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, i)
	}
	// Upper chain.
	lower := len(hull) + 1
	for k := len(order) - 2; k >= 0; k-- {
		i := order[k]
		for len(hull) >= lower && cross(pts[hull[len(hull)-2]], pts[hull[len(hull)-1]], pts[i]) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, i)
	}
	hull = hull[:len(hull)-1]

	if len(hull) < 3 {
		return nil, fmt.Errorf("%w: points are collinear", ErrDegenerateGeometry)
	}
	return hull, nil
}

// cross is the z component of (b-a) x (c-a).
func cross(a, b, c landmarks.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// HullMatch is a destination hull and the source points picked with the same
// indices.
type HullMatch struct {
	Indices []int
	Dst     landmarks.Set
	Src     landmarks.Set
}

// MatchHull computes the hull of dst and applies the same index list to src.
// The hull is never computed from src, so vertex k of Dst and Src always name
// the same landmark.
func MatchHull(dst, src landmarks.Set) (*HullMatch, error) {
	if len(dst) != len(src) {
		return nil, fmt.Errorf("%w: destination has %d points, source has %d",
			ErrInvalidLandmarkCount, len(dst), len(src))
	}
	idx, err := ConvexHull(dst)
	if err != nil {
		return nil, err
	}
	d, err := dst.Pick(idx)
	if err != nil {
		return nil, err
	}
	s, err := src.Pick(idx)
	if err != nil {
		return nil, err
	}
	if len(d) != len(s) {
		panic(fmt.Sprintf("faceswap: hull correspondence broken (%d vs %d)", len(d), len(s)))
	}
	return &HullMatch{Indices: idx, Dst: d, Src: s}, nil
}
