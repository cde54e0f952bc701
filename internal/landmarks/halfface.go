package landmarks

import (
	"fmt"
	"math"
)

const (
	// HalfFaceCount is the cardinality of HalfFace and HalfFaceMask output.
	HalfFaceCount = 17
	// HomoCount is the cardinality of Homo output.
	HomoCount = 16
	// DefaultPadding is the inward jaw padding used by the half-face layouts.
	DefaultPadding = 2
)

// lowerJaw returns jaw points 2..14. The left side (2-6) moves right and the
// right side (10-14) moves left by padding; the chin (7-9) is unchanged.
func lowerJaw(s Set, padding float64) Set {
	out := make(Set, 0, 13)
	for i := 2; i <= 14; i++ {
		p := s[i]
		switch {
		case i <= 6:
			p.X += padding
		case i >= 10:
			p.X -= padding
		}
		out = append(out, p)
	}
	return out
}

func needFull(s Set) error {
	if len(s) != FullCount {
		return fmt.Errorf("%w: got %d points, want %d", ErrInvalidCount, len(s), FullCount)
	}
	return nil
}

// HalfFace returns the lower-face outline of a 68-point set: the padded jaw
// followed by four corners boxing the nose base. The corners run from the
// right jaw up to under the right nostril, across to under the left nostril,
// and back out to the left jaw.
func HalfFace(s Set, padding float64) (Set, error) {
	if err := needFull(s); err != nil {
		return nil, err
	}
	out := lowerJaw(s, padding)
	right, left := s[35].X+padding, s[31].X-padding
	under := s[33].Y + padding
	return append(out,
		Point{X: right, Y: s[14].Y},
		Point{X: right, Y: under},
		Point{X: left, Y: under},
		Point{X: left, Y: s[2].Y},
	), nil
}

// halfMaskOffsets shrinks a HalfFace outline a few pixels on every side.
var halfMaskOffsets = [HalfFaceCount]Point{
	{5, 0}, {5, 0}, {5, 0}, {5, 0}, {5, 0},
	{3, -3}, {0, -3}, {-3, -3},
	{-5, 0}, {-5, 0}, {-5, 0}, {-5, 0}, {-5, 0},
	{3, 0}, {3, 3}, {-3, 3}, {-3, 0},
}

// HalfFaceMask returns HalfFace pulled inward by fixed per-index pixel offsets,
// for use as a blend mask slightly smaller than the outline.
func HalfFaceMask(s Set, padding float64) (Set, error) {
	out, err := HalfFace(s, padding)
	if err != nil {
		return nil, err
	}
	for i, off := range halfMaskOffsets {
		out[i].X += off.X
		out[i].Y += off.Y
	}
	return out, nil
}

// Homo returns the padded jaw plus the right nostril, the nose bridge point 29
// and the left nostril, the anchor set used to estimate a homography between
// two lower faces.
func Homo(s Set) (Set, error) {
	if err := needFull(s); err != nil {
		return nil, err
	}
	return append(lowerJaw(s, DefaultPadding), s[35], s[29], s[31]), nil
}

// Round snaps every point to the nearest integer, ties to even.
func Round(s Set) Set {
	out := make(Set, len(s))
	for i, p := range s {
		out[i] = Point{X: math.RoundToEven(p.X), Y: math.RoundToEven(p.Y)}
	}
	return out
}

// Mesh vertices of the lips, the area between them, and both eyes.
var (
	meshInnerLip = []int{78, 191, 80, 81, 82, 13, 312, 311, 310, 415, 308, 324, 318, 402, 317, 14, 87, 178, 88, 95}
	meshOuterLip = []int{61, 185, 40, 39, 37, 0, 267, 269, 270, 409, 291, 375, 321, 405, 314, 17, 84, 181, 91, 146}
	meshLipArea = []int{
		76, 62, 184, 183, 74, 72, 73, 41, 38, 11, 12, 302, 268, 303, 271, 304, 272, 408, 407, 292, 306,
		325, 307, 319, 320, 403, 404, 316, 315, 15, 16, 86, 85, 179, 180, 89, 90, 96, 77,
	}
	meshEyes = []int{
		33, 246, 161, 160, 159, 158, 157, 173, 133, 155, 154, 153, 145, 144, 163, 7,
		263, 466, 388, 387, 386, 385, 384, 398, 362, 382, 381, 380, 374, 373, 390, 249,
	}
)

// CombineMesh is Combine at mesh resolution: the result is motion with the
// mouth and eye vertices taken from still.
func CombineMesh(still, motion Set) (Set, error) {
	if len(still) != MeshCount || len(motion) != MeshCount {
		return nil, fmt.Errorf("%w: combine needs two %d-vertex meshes, got %d and %d",
			ErrInvalidCount, MeshCount, len(still), len(motion))
	}
	out := motion.Clone()
	for _, idx := range [][]int{meshInnerLip, meshOuterLip, meshLipArea, meshEyes} {
		for _, i := range idx {
			out[i] = still[i]
		}
	}
	return out, nil
}

// Layout selects how a 68-point set is written to a landmark stream.
type Layout string

const (
	LayoutFull     Layout = "full"
	LayoutHalf     Layout = "half"
	LayoutHalfMask Layout = "half-mask"
	LayoutHomo     Layout = "homo"
)

// ParseLayout validates a --layout value.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(s); l {
	case LayoutFull, LayoutHalf, LayoutHalfMask, LayoutHomo:
		return l, nil
	}
	return "", fmt.Errorf("unknown layout %q (want full, half, half-mask or homo)", s)
}

// Apply converts s to the layout. Full sets pass through unchanged; the
// derived layouts are rounded to whole pixels. Empty sets (frames without a
// face) stay empty.
func (l Layout) Apply(s Set) (Set, error) {
	if len(s) == 0 || l == LayoutFull || l == "" {
		return s, nil
	}
	var (
		out Set
		err error
	)
	switch l {
	case LayoutHalf:
		out, err = HalfFace(s, DefaultPadding)
	case LayoutHalfMask:
		out, err = HalfFaceMask(s, DefaultPadding)
	case LayoutHomo:
		out, err = Homo(s)
	default:
		return nil, fmt.Errorf("unknown layout %q", string(l))
	}
	if err != nil {
		return nil, err
	}
	return Round(out), nil
}
