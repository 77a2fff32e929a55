package grid

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/fault"
)

func mustEWKB(t *testing.T, mp *geom.MultiPolygon) []byte {
	t.Helper()
	data, err := EncodeEWKB(mp, DefaultSRID)
	require.NoError(t, err)
	return data
}

func TestLoadPostGIS(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	poly := geom.NewPolygon(geom.XY).SetSRID(DefaultSRID).MustSetCoords([][]geom.Coord{
		{{250, 0}, {250, 250}, {500, 250}, {500, 0}, {250, 0}},
	})
	polyEWKB, err := ewkb.Marshal(poly, ewkb.NDR)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT "id"::text, ST_AsEWKB\("geom"\) FROM "public"."ykr_grid"`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "geom"}).
			AddRow("5787544", mustEWKB(t, square(0, 0))).
			AddRow("5787545", polyEWKB).
			AddRow("5787546", []byte(nil)))

	reg, err := LoadPostGIS(context.Background(), mock, TableOptions{Table: "public.ykr_grid"})
	require.NoError(t, err)

	assert.Equal(t, []cellid.ID{"5787544", "5787545"}, reg.IDs())
	assert.Equal(t, 1, reg.Skipped())
	c, ok := reg.Lookup("5787545")
	require.True(t, ok)
	assert.Equal(t, 1, c.Geometry.NumPolygons())
	assert.Equal(t, geom.Coord{375, 125}, c.Center)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadPostGIS_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT").WillReturnError(fmt.Errorf("relation does not exist"))

	_, err = LoadPostGIS(context.Background(), mock, TableOptions{})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.DataSource))
	assert.Contains(t, err.Error(), "relation does not exist")
}

func TestLoadPostGIS_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(pgxmock.NewRows([]string{"id", "geom"}))

	_, err = LoadPostGIS(context.Background(), mock, TableOptions{})
	assert.True(t, fault.Is(err, fault.DataSource))
}

func TestImport(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	reg, err := New(testCells("1", "2", "3"), DefaultSRID)
	require.NoError(t, err)

	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS postgis").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "ykr_grid"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "ykr_grid_geom_idx"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`TRUNCATE "ykr_grid"`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"ykr_grid"}, []string{"id", "area", "geom"}).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"ykr_grid"}, []string{"id", "area", "geom"}).WillReturnResult(1)

	n, err := Import(context.Background(), mock, reg, TableOptions{Replace: true, BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImport_EnsureTableError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	reg, err := New(testCells("1"), DefaultSRID)
	require.NoError(t, err)

	mock.ExpectExec("CREATE EXTENSION").WillReturnError(fmt.Errorf("permission denied"))

	_, err = Import(context.Background(), mock, reg, TableOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure table ykr_grid")
}

func TestEWKBRoundTrip(t *testing.T) {
	mp := square(100, 200)
	data := mustEWKB(t, mp)

	back, err := DecodeEWKB(data)
	require.NoError(t, err)
	assert.Equal(t, DefaultSRID, back.SRID())
	assert.Equal(t, mp.FlatCoords(), back.FlatCoords())

	_, err = DecodeEWKB([]byte{0x01})
	assert.Error(t, err)
}
