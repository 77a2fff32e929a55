package cellid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/accessviz/internal/fault"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want ID
	}{
		{"string", "5989964", "5989964"},
		{"padded string", " 6013577 ", "6013577"},
		{"leading zeros", "0005989964", "5989964"},
		{"zero", "000", "0"},
		{"float text", "5989964.0", "5989964"},
		{"int", 5989964, "5989964"},
		{"int64", int64(6013577), "6013577"},
		{"uint32", uint32(42), "42"},
		{"float64", 5989964.0, "5989964"},
		{"non numeric", "foobarbaz", "foobarbaz"},
		{"fractional text", "12.5", "12.5"},
		{"id", ID("007"), "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonical_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"fractional float", 12.5},
		{"nan", math.NaN()},
		{"infinity", math.Inf(1)},
		{"fractional float32", float32(0.5)},
		{"bytes", []byte("1")},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Canonical(tt.in)
			require.Error(t, err)
			assert.True(t, fault.Is(err, fault.Configuration), err)
		})
	}
}

func TestCanonical_NumericAndStringAgree(t *testing.T) {
	a, err := Canonical(5989964)
	require.NoError(t, err)
	b, err := Canonical("5989964")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParse_Dedupes(t *testing.T) {
	got := Parse([]string{"6018253", "06018253", "", "6015142", "6018253"})
	assert.Equal(t, []ID{"6018253", "6015142"}, got)
}

func TestSort(t *testing.T) {
	ids := []ID{"10", "9", "abc", "100", "2"}
	Sort(ids)
	assert.Equal(t, []ID{"2", "9", "10", "100", "abc"}, ids)
}

func TestSet(t *testing.T) {
	s := NewSet("3", "1", "2")
	assert.True(t, s.Has("2"))
	assert.False(t, s.Has("4"))
	assert.Equal(t, []ID{"1", "2", "3"}, s.Sorted())
}
