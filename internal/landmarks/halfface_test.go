package landmarks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ladder places point i at (10i, 100+i) so every output can be traced back to
// its source index by eye.
func ladder() Set {
	s := make(Set, FullCount)
	for i := range s {
		s[i] = Point{X: float64(10 * i), Y: float64(100 + i)}
	}
	return s
}

// paddedJaw is jaw points 2..14 of ladder() with a padding of 2.
var paddedJaw = Set{
	{22, 102}, {32, 103}, {42, 104}, {52, 105}, {62, 106},
	{70, 107}, {80, 108}, {90, 109},
	{98, 110}, {108, 111}, {118, 112}, {128, 113}, {138, 114},
}

func TestLowerFaceLayouts(t *testing.T) {
	tests := []struct {
		name string
		fn   func(Set) (Set, error)
		want Set
	}{
		{
			name: "Half face",
			fn:   func(s Set) (Set, error) { return HalfFace(s, 2) },
			want: append(paddedJaw.Clone(), Point{352, 114}, Point{352, 135}, Point{308, 135}, Point{308, 102}),
		},
		{
			name: "Half face mask",
			fn:   func(s Set) (Set, error) { return HalfFaceMask(s, 2) },
			want: Set{
				{27, 102}, {37, 103}, {47, 104}, {57, 105}, {67, 106},
				{73, 104}, {80, 105}, {87, 106},
				{93, 110}, {103, 111}, {113, 112}, {123, 113}, {133, 114},
				{355, 114}, {355, 138}, {305, 138}, {305, 102},
			},
		},
		{
			name: "Homography anchors",
			fn:   Homo,
			want: append(paddedJaw.Clone(), Point{350, 135}, Point{290, 129}, Point{310, 131}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ladder()
			got, err := tt.fn(in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, ladder(), in, "input must not be modified")

			_, err = tt.fn(in[:FilteredCount])
			assert.ErrorIs(t, err, ErrInvalidCount)
		})
	}
}

func TestHalfFace_Padding(t *testing.T) {
	out, err := HalfFace(ladder(), 0)
	require.NoError(t, err)
	require.Len(t, out, HalfFaceCount)
	assert.Equal(t, Point{20, 102}, out[0])
	assert.Equal(t, Point{140, 114}, out[12])
	assert.Equal(t, Point{350, 133}, out[14])
}

func TestRound(t *testing.T) {
	in := Set{{2.5, 3.5}, {-1.5, 1.4}, {1.6, 7}}
	assert.Equal(t, Set{{2, 4}, {-2, 1}, {2, 7}}, Round(in))
	assert.Equal(t, 2.5, in[0].X)
}

func TestCombineMesh(t *testing.T) {
	still := sequential(MeshCount)
	motion := make(Set, MeshCount)
	for i := range motion {
		motion[i] = Point{X: 1000 + float64(i)}
	}

	out, err := CombineMesh(still, motion)
	require.NoError(t, err)

	for _, i := range []int{13, 61, 76, 33, 263} {
		assert.Equal(t, float64(i), out[i].X, "vertex %d should come from still", i)
	}
	for _, i := range []int{1, 4, 127, 152, 168} {
		assert.Equal(t, 1000+float64(i), out[i].X, "vertex %d should come from motion", i)
	}

	// Reducing the combined mesh agrees with combining the reduced sets.
	reduced, err := From478(out)
	require.NoError(t, err)
	s68, _ := From478(still)
	m68, _ := From478(motion)
	want, err := Combine(s68, m68)
	require.NoError(t, err)
	assert.Equal(t, want, reduced)

	_, err = CombineMesh(still, motion[:FullCount])
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestLayout(t *testing.T) {
	for _, s := range []string{"full", "half", "half-mask", "homo"} {
		l, err := ParseLayout(s)
		require.NoError(t, err)
		assert.Equal(t, Layout(s), l)
	}
	_, err := ParseLayout("quarter")
	assert.Error(t, err)

	frac := ladder()
	for i := range frac {
		frac[i].X += 0.4
	}

	full, err := LayoutFull.Apply(frac)
	require.NoError(t, err)
	assert.Equal(t, frac, full)

	half, err := LayoutHalf.Apply(frac)
	require.NoError(t, err)
	require.Len(t, half, HalfFaceCount)
	assert.Equal(t, Point{22, 102}, half[0])
	assert.Equal(t, Point{352, 135}, half[14])

	homo, err := LayoutHomo.Apply(frac)
	require.NoError(t, err)
	assert.Len(t, homo, HomoCount)

	empty, err := LayoutHalfMask.Apply(Set{})
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = LayoutHalf.Apply(frac[:10])
	assert.ErrorIs(t, err, ErrInvalidCount)
}
