// Package landmarks holds 68-point facial landmark sets and the codecs used to
// move them between the detector, disk, and the swap engine.
package landmarks

import (
	"errors"
	"fmt"
)

const (
	// FullCount is the cardinality of a raw landmark set (iBUG 68-point layout).
	FullCount = 68
	// FilteredCount is the cardinality after Filter drops the unstable points.
	FilteredCount = 44
	// MeshCount is the cardinality of a dense face mesh accepted by From478.
	MeshCount = 478
)

// ErrInvalidCount is returned when a set does not have the expected number of points.
var ErrInvalidCount = errors.New("invalid landmark count")

// Point is a 2-D pixel coordinate.
type Point struct {
	X float64
	Y float64
}

// Set is an ordered landmark set. Index i names the same facial feature in every
// set of the same layout, so sets must never be reordered.
type Set []Point

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Pick returns the points at the given indices, in index order.
func (s Set) Pick(indices []int) (Set, error) {
	out := make(Set, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(s) {
			return nil, fmt.Errorf("index %d out of range for %d points", idx, len(s))
		}
		out[i] = s[idx]
	}
	return out, nil
}

// unstable are the jaw corners, brows and eyes. Hulls built with them tend to
// self-intersect when the head turns.
var unstable = func() [FullCount]bool {
	var m [FullCount]bool
	m[0], m[16] = true, true
	for i := 17; i <= 26; i++ {
		m[i] = true
	}
	for i := 36; i <= 47; i++ {
		m[i] = true
	}
	return m
}()

// Filter reduces a 68-point set to the 44 points used for hull and
// triangulation, preserving their relative order.
func Filter(s Set) (Set, error) {
	if len(s) != FullCount {
		return nil, fmt.Errorf("%w: got %d points, want %d", ErrInvalidCount, len(s), FullCount)
	}
	out := make(Set, 0, FilteredCount)
	for i, p := range s {
		if !unstable[i] {
			out = append(out, p)
		}
	}
	return out, nil
}

// Index ranges of the 68-point layout.
var (
	jawRange  = [2]int{0, 17}
	browRange = [2]int{17, 27}
	noseRange = [2]int{27, 36}
)

// Combine merges two sets detected on the same frame. The jaw, brows and nose
// come from motion (a temporally tracked detection) and the eyes and mouth come
// from still (a per-image detection).
func Combine(still, motion Set) (Set, error) {
	if len(still) != FullCount || len(motion) != FullCount {
		return nil, fmt.Errorf("%w: combine needs two %d-point sets, got %d and %d",
			ErrInvalidCount, FullCount, len(still), len(motion))
	}
	out := still.Clone()
	for _, r := range [][2]int{jawRange, browRange, noseRange} {
		copy(out[r[0]:r[1]], motion[r[0]:r[1]])
	}
	return out, nil
}

// meshTo68 maps each 68-point index to its vertex in a 478-vertex face mesh.
var meshTo68 = [FullCount]int{
	127, 234, 93, 132, 58, 136, 150, 176, 152, 400, 379, 365, 288, 361, 323, 454, 356,
	70, 63, 105, 66, 107, 336, 296, 334, 293, 300,
	168, 197, 5, 4, 75, 97, 2, 326, 305,
	33, 160, 158, 133, 153, 144, 362, 385, 387, 263, 373, 380,
	61, 40, 37, 0, 267, 270, 291, 321, 314, 17, 84, 91,
	78, 81, 13, 311, 308, 402, 14, 178,
}

// From478 converts a dense 478-vertex face mesh into the 68-point layout.
func From478(mesh Set) (Set, error) {
	if len(mesh) != MeshCount {
		return nil, fmt.Errorf("%w: got %d mesh vertices, want %d", ErrInvalidCount, len(mesh), MeshCount)
	}
	return mesh.Pick(meshTo68[:])
}

// Normalize accepts either layout and returns a 68-point set.
func Normalize(s Set) (Set, error) {
	switch len(s) {
	case FullCount:
		return s, nil
	case MeshCount:
		return From478(s)
	default:
		return nil, fmt.Errorf("%w: got %d points, want %d or %d", ErrInvalidCount, len(s), FullCount, MeshCount)
	}
}
