package classify

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/accessviz/internal/access"
	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/fault"
	"github.com/sells-group/accessviz/internal/grid"
	"github.com/sells-group/accessviz/internal/matrix"
)

func costs(vals ...float64) []matrix.Cost {
	out := make([]matrix.Cost, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			out[i] = matrix.Missing()
			continue
		}
		out[i] = matrix.Some(v)
	}
	return out
}

var na = math.NaN()

func TestUserDefined_Scenario(t *testing.T) {
	s := UserDefined{Bins: []float64{5, 10, 15}}
	labels, res, err := Column(costs(10, 20, na, 4, 5, 14.9, 15), s)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, Missing, 0, 1, 2, 3}, labels)
	assert.Equal(t, []int{1, 1, 2, 2}, res.Counts)
	assert.Equal(t, 1, res.Missing)
	assert.Equal(t, []string{"< 5", "5 - 10", "10 - 15", ">= 15"}, res.Labels)
}

func TestUserDefined_Validate(t *testing.T) {
	tests := []struct {
		name string
		bins []float64
	}{
		{"empty", nil},
		{"descending", []float64{10, 5}},
		{"repeated", []float64{5, 5, 10}},
		{"nan", []float64{5, na}},
		{"inf", []float64{5, math.Inf(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Column(costs(1, 2), UserDefined{Bins: tt.bins})
			require.Error(t, err)
			assert.True(t, fault.Is(err, fault.Configuration))
		})
	}
}

func TestRangeBins(t *testing.T) {
	bins, err := RangeBins(5, 200, 5)
	require.NoError(t, err)
	assert.Len(t, bins, 39)
	assert.Equal(t, 5.0, bins[0])
	assert.Equal(t, 195.0, bins[len(bins)-1])

	bins, err = RangeBins(0, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 6, 9}, bins)

	_, err = RangeBins(5, 200, 0)
	assert.True(t, fault.Is(err, fault.Configuration))
	_, err = RangeBins(10, 5, 1)
	assert.True(t, fault.Is(err, fault.Configuration))
}

func TestNaturalBreaks_Clusters(t *testing.T) {
	labels, res, err := Column(costs(31, 1, 12, 2, na, 3, 10, 30, 11, 32), NaturalBreaks{K: 3})
	require.NoError(t, err)

	assert.Equal(t, []float64{3, 12, 32}, res.Bounds)
	assert.Equal(t, []int{2, 0, 1, 0, Missing, 0, 1, 2, 1, 2}, labels)
	assert.Equal(t, []int{3, 3, 3}, res.Counts)
	assert.Equal(t, 1.0, res.Min)
	assert.Equal(t, 32.0, res.Max)
	assert.Greater(t, res.GVF, 0.99)
}

func TestNaturalBreaks_TiesGoToLowerClass(t *testing.T) {
	s := NaturalBreaks{K: 2}
	bounds, err := s.Fit([]float64{1, 2, 3, 100, 101})
	require.NoError(t, err)
	require.Equal(t, []float64{3, 101}, bounds)

	assert.Equal(t, 0, s.Label(bounds, 3))
	assert.Equal(t, 1, s.Label(bounds, 3.0001))
	assert.Equal(t, 1, s.Label(bounds, 500))
}

func TestNaturalBreaks_FewerDistinctThanK(t *testing.T) {
	labels, res, err := Column(costs(1, 1, 2, 2, 2), NaturalBreaks{K: 6})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, res.Bounds)
	assert.Equal(t, []int{0, 0, 1, 1, 1}, labels)
	assert.Equal(t, []int{2, 3}, res.Counts)
}

func TestNaturalBreaks_AllMissing(t *testing.T) {
	labels, res, err := Column(costs(na, na), NaturalBreaks{K: 6})
	require.NoError(t, err)
	assert.Equal(t, []int{Missing, Missing}, labels)
	assert.Empty(t, res.Counts)
	assert.Equal(t, 2, res.Missing)
}

func TestNaturalBreaks_PopulatesEveryClass(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 20; trial++ {
		vals := make([]float64, 300)
		for i := range vals {
			vals[i] = math.Round(r.Float64()*200*10) / 10
		}
		labels, res, err := Column(costs(vals...), NaturalBreaks{K: 6})
		require.NoError(t, err)
		require.Len(t, res.Counts, 6)
		for c, n := range res.Counts {
			assert.Positive(t, n, "class %d empty", c)
		}

		again, _, err := Column(costs(vals...), NaturalBreaks{K: 6})
		require.NoError(t, err)
		assert.Equal(t, labels, again)
	}
}

// bruteForce returns the least total squared deviation over every way of
// cutting the sorted values into k contiguous non-empty groups.
func bruteForce(sorted []float64, k int) float64 {
	best := math.Inf(1)
	var rec func(start, left int, acc float64)
	rec = func(start, left int, acc float64) {
		if left == 1 {
			if d := acc + sumSquares(sorted[start:]); d < best {
				best = d
			}
			return
		}
		for end := start + 1; end <= len(sorted)-left+1; end++ {
			rec(end, left-1, acc+sumSquares(sorted[start:end]))
		}
	}
	rec(0, k, 0)
	return best
}

func TestNaturalBreaks_MatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 50; trial++ {
		n := 6 + r.IntN(6)
		k := 2 + r.IntN(3)
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = float64(r.IntN(1000)) // distinct with high probability
		}
		v, _ := distinct(vals)
		if len(v) <= k {
			continue
		}

		_, res, err := Column(costs(v...), NaturalBreaks{K: k})
		require.NoError(t, err)

		groups := make([][]float64, k)
		s := NaturalBreaks{K: k}
		for _, x := range v {
			l := s.Label(res.Bounds, x)
			groups[l] = append(groups[l], x)
		}
		var got float64
		for _, g := range groups {
			got += sumSquares(g)
		}
		assert.InDelta(t, bruteForce(v, k), got, 1e-6, "values %v k %d", v, k)
	}
}

func TestParseScheme(t *testing.T) {
	s, err := ParseScheme("natural", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, NaturalBreaks{K: DefaultClasses}, s)

	s, err = ParseScheme("User_Defined", 0, []float64{5, 10})
	require.NoError(t, err)
	assert.Equal(t, "ud", s.Suffix())

	_, err = ParseScheme("quantile", 0, nil)
	assert.True(t, fault.Is(err, fault.Configuration))

	_, err = ParseScheme("natural", -1, nil)
	assert.True(t, fault.Is(err, fault.Configuration))

	_, err = ParseScheme("user", 0, []float64{3, 2})
	assert.True(t, fault.Is(err, fault.Configuration))
}

func testTable(t *testing.T, walk []matrix.Cost) *access.Table {
	t.Helper()
	cells := make([]*grid.Cell, len(walk))
	file := &matrix.File{Destination: "1", Fields: []string{"walk_t"}}
	for i := range walk {
		id := cellid.ID(string(rune('1' + i)))
		x := float64(i) * 250
		mp := geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{{
			{x, 0}, {x, 250}, {x + 250, 250}, {x + 250, 0}, {x, 0},
		}}})
		cells[i] = grid.NewCell(id, mp, nil)
		file.Records = append(file.Records, matrix.Record{Origin: id, Destination: "1", Costs: []matrix.Cost{walk[i]}})
	}
	reg, err := grid.New(cells, 0)
	require.NoError(t, err)
	tbl, _, err := access.Join(file, reg)
	require.NoError(t, err)
	return tbl
}

func TestClassify_AddsColumn(t *testing.T) {
	tbl := testTable(t, costs(4, 12, na, 30))

	out, res, err := Classify(tbl, "walk_t", UserDefined{Bins: []float64{5, 10, 15}})
	require.NoError(t, err)

	assert.Equal(t, "walk_t_ud", res.Label)
	got, ok := out.Classes("walk_t_ud")
	require.True(t, ok)
	assert.Equal(t, []int{0, 2, Missing, 3}, got)

	assert.Empty(t, tbl.ClassColumns())
	walk, _ := out.Column("walk_t")
	assert.Equal(t, costs(4, 12, na, 30), walk)
}

func TestClassify_UnknownColumn(t *testing.T) {
	tbl := testTable(t, costs(1))
	_, _, err := Classify(tbl, "car_r_t", NaturalBreaks{K: 6})
	assert.True(t, fault.Is(err, fault.Configuration))
}

func TestGVF(t *testing.T) {
	assert.Equal(t, 1.0, gvf([]float64{3, 3, 3}, [][]float64{{3, 3, 3}}))
	assert.InDelta(t, 0.0, gvf([]float64{1, 2, 3}, [][]float64{{1, 2, 3}}), 1e-12)
}
