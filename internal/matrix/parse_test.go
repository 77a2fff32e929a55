package matrix

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/fault"
)

const sampleMatrix = `from_id;to_id;walk_t;walk_d;pt_m_tt;pt_m_t;pt_m_d;car_r_t;car_r_d
5785640;5989964;-1;-1;132;120;31000;50;35000
5785641;5989964;480;33669;-1;-1;-1;48;32297
5785642;5989964;0;0;0;0;0;0;0
`

func TestParse_SentinelBecomesMissing(t *testing.T) {
	f, err := Parse(context.Background(), strings.NewReader(sampleMatrix), DefaultParseOptions())
	require.NoError(t, err)

	assert.Equal(t, cellid.ID("5989964"), f.Destination)
	assert.Equal(t, []string{"walk_t", "walk_d", "pt_m_tt", "pt_m_t", "pt_m_d", "car_r_t", "car_r_d"}, f.Fields)
	require.Len(t, f.Records, 3)

	walk, ok := f.FieldIndex("walk_t")
	require.True(t, ok)
	pt, ok := f.FieldIndex("pt_m_tt")
	require.True(t, ok)

	assert.Equal(t, cellid.ID("5785640"), f.Records[0].Origin)
	assert.False(t, f.Records[0].Costs[walk].Valid)
	assert.Equal(t, Some(132), f.Records[0].Costs[pt])
	assert.False(t, f.Records[1].Costs[pt].Valid)

	// zero is a real value, not missing
	assert.Equal(t, Some(0), f.Records[2].Costs[walk])
}

func TestParse_ConfiguredSeparatorAndNoData(t *testing.T) {
	input := "from_id,to_id,walk_t\n1,9,NA\n2,9,12.5\n"
	opts := DefaultParseOptions()
	opts.Separator = ','
	opts.NoData = []string{"NA"}

	f, err := Parse(context.Background(), strings.NewReader(input), opts)
	require.NoError(t, err)
	require.Len(t, f.Records, 2)
	assert.Equal(t, Missing(), f.Records[0].Costs[0])
	assert.Equal(t, Some(12.5), f.Records[1].Costs[0])
}

func TestParse_CustomSentinel(t *testing.T) {
	input := "from_id;to_id;walk_t\n1;9;9999\n2;9;-1\n"
	opts := DefaultParseOptions()
	opts.Sentinel = 9999

	_, err := Parse(context.Background(), strings.NewReader(input), opts)
	require.Error(t, err, "-1 is not the sentinel here, so it is an invalid cost")
	assert.True(t, fault.Is(err, fault.DataSource))

	f, err := Parse(context.Background(), strings.NewReader("from_id;to_id;walk_t\n1;9;9999\n"), opts)
	require.NoError(t, err)
	assert.False(t, f.Records[0].Costs[0].Valid)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"missing header fields", "a;b;c\n1;2;3\n", "header lacks"},
		{"bad number", "from_id;to_id;walk_t\n1;9;abc\n", "malformed value"},
		{"negative cost", "from_id;to_id;walk_t\n1;9;-5\n", "malformed value"},
		{"ragged row", "from_id;to_id;walk_t\n1;9\n", "malformed row"},
		{"mixed destinations", "from_id;to_id;walk_t\n1;9;1\n2;8;1\n", "mixed destinations"},
		{"empty", "", "empty file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), strings.NewReader(tt.input), DefaultParseOptions())
			require.Error(t, err)
			assert.True(t, fault.Is(err, fault.DataSource))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParse_HeaderOnly(t *testing.T) {
	f, err := Parse(context.Background(), strings.NewReader("from_id;to_id;walk_t\n"), DefaultParseOptions())
	require.NoError(t, err)
	assert.Empty(t, f.Records)
	assert.Equal(t, cellid.ID(""), f.Destination)
}

func TestParse_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Parse(ctx, strings.NewReader(sampleMatrix), DefaultParseOptions())
	require.Error(t, err)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "travel_times_to_ 5989964.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleMatrix), 0o644))

	f, err := ParseFile(context.Background(), path, DefaultParseOptions())
	require.NoError(t, err)
	assert.Equal(t, path, f.Path)
	assert.Len(t, f.Records, 3)
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), DefaultParseOptions())
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.DataSource))
}

func TestCost_String(t *testing.T) {
	assert.Equal(t, "NA", Missing().String())
	assert.Equal(t, "12.5", Some(12.5).String())
}
