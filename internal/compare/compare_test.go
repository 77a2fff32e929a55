package compare

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/accessviz/internal/access"
	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/fault"
	"github.com/sells-group/accessviz/internal/matrix"
	"github.com/sells-group/accessviz/internal/travel"
)

var columns = []string{"car_r_t", "pt_m_t", "walk_t", "car_r_d", "pt_m_d", "walk_d"}

func testTable(t *testing.T, rows ...[]matrix.Cost) *access.Table {
	t.Helper()
	out := make([]access.Row, len(rows))
	for i, costs := range rows {
		out[i] = access.Row{Origin: cellid.ID(string(rune('1' + i))), Costs: costs}
	}
	tbl, err := access.NewTable("9", columns, out)
	require.NoError(t, err)
	return tbl
}

func row(vals ...float64) []matrix.Cost {
	out := make([]matrix.Cost, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			out[i] = matrix.Missing()
		} else {
			out[i] = matrix.Some(v)
		}
	}
	return out
}

var na = math.NaN()

func TestCompare_SignedDifference(t *testing.T) {
	tbl := testTable(t,
		row(10, 25, 60, 8000, 9000, 7000),
		row(30, 20, na, 20000, 15000, na),
		row(na, 5, 5, na, 400, 400),
		row(12, 12, 40, 1, 1, 1),
	)

	out, s, err := Compare(tbl, "car_r_t", "pt_m_t", "diff")
	require.NoError(t, err)

	diff, ok := out.Column("diff")
	require.True(t, ok)
	assert.Equal(t, row(-15, 10, na, 0), diff)
	assert.Equal(t, Summary{
		FieldA: "car_r_t", FieldB: "pt_m_t", Column: "diff",
		Compared: 3, Missing: 1, ALower: 1, BLower: 1, Equal: 1, Mean: -5.0 / 3,
	}, s)

	assert.False(t, tbl.HasColumn("diff"))
}

func TestCompare_Antisymmetric(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	rows := make([][]matrix.Cost, 50)
	for i := range rows {
		vals := make([]float64, len(columns))
		for j := range vals {
			if r.IntN(5) == 0 {
				vals[j] = na
			} else {
				vals[j] = float64(r.IntN(200))
			}
		}
		rows[i] = row(vals...)
	}
	tbl := testTable(t, rows...)

	ab, _, err := Compare(tbl, "walk_t", "pt_m_t", "d")
	require.NoError(t, err)
	ba, _, err := Compare(tbl, "pt_m_t", "walk_t", "d")
	require.NoError(t, err)

	x, _ := ab.Column("d")
	y, _ := ba.Column("d")
	for i := range x {
		require.Equal(t, x[i].Valid, y[i].Valid, "row %d", i)
		if x[i].Valid {
			assert.Equal(t, x[i].Value, -y[i].Value, "row %d", i)
		}
	}
}

func TestCompare_UnknownField(t *testing.T) {
	tbl := testTable(t, row(1, 2, 3, 4, 5, 6))
	_, _, err := Compare(tbl, "bike_t", "walk_t", "")
	assert.True(t, fault.Is(err, fault.Configuration))
	_, _, err = Compare(tbl, "walk_t", "bike_t", "")
	assert.True(t, fault.Is(err, fault.Configuration))
}

func TestParseSelection(t *testing.T) {
	s, err := ParseSelection([]string{"time"}, []string{"car", "public"})
	require.NoError(t, err)
	assert.Equal(t, Selection{ModeA: travel.Car, ModeB: travel.Public, MetricA: travel.Time, MetricB: travel.Time}, s)
	assert.Equal(t, "car_compared_to_public", s.Name())
	a, b, err := s.Fields()
	require.NoError(t, err)
	assert.Equal(t, "car_r_t", a)
	assert.Equal(t, "pt_m_t", b)

	s, err = ParseSelection([]string{"time", "distance"}, []string{"walk"})
	require.NoError(t, err)
	assert.Equal(t, "walk_time_compared_to_distance", s.Name())
	a, b, err = s.Fields()
	require.NoError(t, err)
	assert.Equal(t, "walk_t", a)
	assert.Equal(t, "walk_d", b)

	tests := []struct {
		name    string
		metrics []string
		modes   []string
	}{
		{"bad metric", []string{"speed"}, []string{"car", "walk"}},
		{"bad mode", []string{"time"}, []string{"car", "bike"}},
		{"too many modes", []string{"time"}, []string{"car", "walk", "public"}},
		{"nothing to compare", []string{"time"}, []string{"car"}},
		{"two of each", []string{"time", "distance"}, []string{"car", "walk"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSelection(tt.metrics, tt.modes)
			require.Error(t, err)
			assert.True(t, fault.Is(err, fault.Configuration))
		})
	}
}

func TestSelection_Apply(t *testing.T) {
	tbl := testTable(t, row(1, 2, 3, 100, 200, 300))
	s, err := ParseSelection([]string{"distance"}, []string{"walk", "car"})
	require.NoError(t, err)

	out, sum, err := s.Apply(tbl)
	require.NoError(t, err)
	d, _ := out.Column(DefaultColumn)
	assert.Equal(t, row(200), d)
	assert.Equal(t, "walk_d", sum.FieldA)
}
