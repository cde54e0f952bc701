package faceswap

import (
	"image"
	"math"
	"testing"

	"github.com/andresmejia3/mouthswap/internal/landmarks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hullOf(t *testing.T, marks landmarks.Set) landmarks.Set {
	t.Helper()
	pts, err := landmarks.Filter(marks)
	require.NoError(t, err)
	m, err := MatchHull(pts, pts)
	require.NoError(t, err)
	return m.Dst
}

func TestTriangulate_CoversHull(t *testing.T) {
	frame := image.Rect(0, 0, 200, 200)
	tests := []struct {
		name  string
		marks landmarks.Set
	}{
		{"centred", faceMarks(100, 100, 40)},
		{"small", faceMarks(50, 60, 12)},
		{"off centre", faceMarks(140, 70, 35)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hull := hullOf(t, tt.marks)
			tris, err := Triangulate(hull, frame, 1.0)
			require.NoError(t, err)

			var sum float64
			for _, tr := range tris {
				a := math.Abs(cross(hull[tr[0]], hull[tr[1]], hull[tr[2]])) / 2
				assert.Greater(t, a, minTriangleArea)
				sum += a
			}
			assert.InEpsilon(t, polygonArea(hull), sum, 1e-6)
			// n points in convex position always give n-2 facets.
			assert.Len(t, tris, len(hull)-2)
		})
	}
}

func TestTriangulate_IndicesInRange(t *testing.T) {
	hull := hullOf(t, faceMarks(100, 100, 40))
	tris, err := Triangulate(hull, image.Rect(0, 0, 200, 200), 1.0)
	require.NoError(t, err)
	for _, tr := range tris {
		for _, i := range tr {
			assert.GreaterOrEqual(t, i, 0)
			assert.Less(t, i, len(hull))
		}
		assert.NotEqual(t, tr[0], tr[1])
		assert.NotEqual(t, tr[1], tr[2])
		assert.NotEqual(t, tr[0], tr[2])
	}
}

func TestTriangulate_Deterministic(t *testing.T) {
	hull := hullOf(t, faceMarks(90, 110, 30))
	a, err := Triangulate(hull, image.Rect(0, 0, 200, 200), 1.0)
	require.NoError(t, err)
	b, err := Triangulate(hull, image.Rect(0, 0, 200, 200), 1.0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTriangulate_InteriorPoints(t *testing.T) {
	// A square with its centre: Delaunay splits it into four facets.
	pts := landmarks.Set{{X: 10, Y: 10}, {X: 50, Y: 10}, {X: 50, Y: 50}, {X: 10, Y: 50}, {X: 30, Y: 30}}
	tris, err := Triangulate(pts, image.Rect(0, 0, 100, 100), 1.0)
	require.NoError(t, err)
	assert.Len(t, tris, 4)
	for _, tr := range tris {
		assert.Contains(t, tr[:], 4)
	}
}

func TestTriangulate_OutsideRect(t *testing.T) {
	pts := landmarks.Set{{X: 300, Y: 300}, {X: 350, Y: 300}, {X: 320, Y: 340}}
	_, err := Triangulate(pts, image.Rect(0, 0, 200, 200), 1.0)
	assert.ErrorIs(t, err, ErrTriangulationFailed)
}

func TestTriangulate_PartlyOutside(t *testing.T) {
	// The fourth point is off-frame; only the facet of the first three survives.
	pts := landmarks.Set{{X: 10, Y: 10}, {X: 60, Y: 10}, {X: 30, Y: 50}, {X: 250, Y: 30}}
	tris, err := Triangulate(pts, image.Rect(0, 0, 100, 100), 1.0)
	require.NoError(t, err)
	require.Len(t, tris, 1)
	assert.ElementsMatch(t, []int{0, 1, 2}, tris[0][:])
}

func TestNearest(t *testing.T) {
	pts := landmarks.Set{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 10.6, Y: 10.2}}
	assert.Equal(t, 2, nearest(pts, landmarks.Point{X: 10.5, Y: 10.3}, 1.0))
	assert.Equal(t, 0, nearest(pts, landmarks.Point{X: 0.9, Y: -0.9}, 1.0))
	assert.Equal(t, -1, nearest(pts, landmarks.Point{X: 1, Y: 0}, 1.0))
}

func TestTriangulate_Collinear(t *testing.T) {
	pts := landmarks.Set{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 30, Y: 10}, {X: 40, Y: 10}}
	_, err := Triangulate(pts, image.Rect(0, 0, 100, 100), 1.0)
	assert.ErrorIs(t, err, ErrTriangulationFailed)
}
