package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/accessviz/internal/access"
	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/classify"
	"github.com/sells-group/accessviz/internal/compare"
	"github.com/sells-group/accessviz/internal/fault"
	"github.com/sells-group/accessviz/internal/grid"
	"github.com/sells-group/accessviz/internal/matrix"
	"github.com/sells-group/accessviz/internal/pipeline"
	"github.com/sells-group/accessviz/internal/travel"
)

const known = "5989964"

// fakeBackend serves a three-row table for the known destination only.
type fakeBackend struct {
	scheme classify.Scheme
	sel    compare.Selection
}

func (f *fakeBackend) Find(_ context.Context, ids []cellid.ID) (*matrix.Result, error) {
	res := &matrix.Result{Requested: ids, Matched: map[cellid.ID]string{}, Unmatched: []cellid.ID{}}
	for _, id := range ids {
		if id == known {
			res.Matched[id] = "5989xxx/travel_times_to_ 5989964.txt"
		} else {
			res.Unmatched = append(res.Unmatched, id)
		}
	}
	return res, nil
}

func (f *fakeBackend) handoff(id cellid.ID) (*pipeline.Handoff, error) {
	if id != known {
		e := fault.NewIndex(nil, "no matrix file")
		e.IDs = []string{id.String()}
		return nil, e
	}
	car := []matrix.Cost{matrix.Some(5), matrix.Some(12), matrix.Some(30)}
	walk := []matrix.Cost{matrix.Some(10), matrix.Missing(), matrix.Some(60)}
	rows := make([]access.Row, 3)
	for i := range rows {
		x := float64(i) * 250
		mp := geom.NewMultiPolygon(geom.XY).SetSRID(grid.DefaultSRID).MustSetCoords([][][]geom.Coord{{{
			{x, 0}, {x, 250}, {x + 250, 250}, {x + 250, 0}, {x, 0},
		}}})
		origin := cellid.ID(string(rune('1' + i)))
		rows[i] = access.Row{Origin: origin, Cell: grid.NewCell(origin, mp, nil), Costs: []matrix.Cost{car[i], walk[i]}}
	}
	t, err := access.NewTable(id, []string{"car_r_t", "walk_t"}, rows)
	if err != nil {
		return nil, err
	}
	return &pipeline.Handoff{
		Destination: id,
		Table:       t,
		Find:        &matrix.Result{Unmatched: []cellid.ID{}},
		Stats:       access.Stats{Joined: 3, DroppedOrigins: 2},
	}, nil
}

func (f *fakeBackend) Classified(_ context.Context, id cellid.ID, mode travel.Mode, s classify.Scheme) (*pipeline.Handoff, classify.Result, error) {
	f.scheme = s
	h, err := f.handoff(id)
	if err != nil {
		return nil, classify.Result{}, err
	}
	field, err := travel.MapField(mode)
	if err != nil {
		return nil, classify.Result{}, err
	}
	t, res, err := classify.Classify(h.Table, field, s)
	if err != nil {
		return nil, classify.Result{}, err
	}
	h.Table = t
	return h, res, nil
}

func (f *fakeBackend) Compared(_ context.Context, id cellid.ID, sel compare.Selection) (*pipeline.Handoff, compare.Summary, error) {
	f.sel = sel
	h, err := f.handoff(id)
	if err != nil {
		return nil, compare.Summary{}, err
	}
	t, sum, err := compare.Compare(h.Table, "car_r_t", "walk_t", compare.DefaultColumn)
	if err != nil {
		return nil, compare.Summary{}, err
	}
	h.Table = t
	return h, sum, nil
}

func do(t *testing.T, b Backend, target string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(b, Options{Bins: []float64{10, 20}})
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type featureCollection struct {
	Type     string `json:"type"`
	Features []struct {
		ID         string         `json:"id"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func TestHealth(t *testing.T) {
	rec := do(t, &fakeBackend{}, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestFind(t *testing.T) {
	rec := do(t, &fakeBackend{}, "/find?id=5989964&id=1,2")
	require.Equal(t, http.StatusOK, rec.Code)

	var res matrix.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Contains(t, res.Matched, cellid.ID(known))
	assert.Equal(t, []cellid.ID{"1", "2"}, res.Unmatched)
}

func TestFind_NoIDs(t *testing.T) {
	rec := do(t, &fakeBackend{}, "/find")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccessibility(t *testing.T) {
	fb := &fakeBackend{}
	rec := do(t, fb, "/cells/5989964/accessibility?mode=walk&scheme=user")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "walk_t_ud", rec.Header().Get(HeaderClassColumn))
	assert.Equal(t, "walk_t", rec.Header().Get(HeaderValueColumn))
	assert.Equal(t, "10,20", rec.Header().Get(HeaderClassBounds))
	assert.Equal(t, "2", rec.Header().Get(HeaderDropped))
	assert.Equal(t, "urn:ogc:def:crs:EPSG::3067", rec.Header().Get(HeaderCRS))
	assert.Equal(t, classify.UserDefined{Bins: []float64{10, 20}}, fb.scheme)

	var fc featureCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 3)
	assert.Nil(t, fc.Features[1].Properties["walk_t"])
	assert.Nil(t, fc.Features[1].Properties["walk_t_ud"])
	assert.Equal(t, 2.0, fc.Features[2].Properties["walk_t_ud"])
}

func TestAccessibility_NaturalClasses(t *testing.T) {
	fb := &fakeBackend{}
	rec := do(t, fb, "/cells/5989964/accessibility?mode=car&classes=2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, classify.NaturalBreaks{K: 2}, fb.scheme)
	assert.Equal(t, "car_r_t_nb", rec.Header().Get(HeaderClassColumn))
}

func TestAccessibility_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		status int
		kind   string
	}{
		{"unknown mode", "/cells/5989964/accessibility?mode=bike", http.StatusBadRequest, "ConfigurationError"},
		{"unknown scheme", "/cells/5989964/accessibility?mode=car&scheme=quantile", http.StatusBadRequest, "ConfigurationError"},
		{"bad classes", "/cells/5989964/accessibility?mode=car&classes=six", http.StatusBadRequest, "ConfigurationError"},
		{"bad bins", "/cells/5989964/accessibility?mode=car&scheme=user&bins=5,x", http.StatusBadRequest, "ConfigurationError"},
		{"descending bins", "/cells/5989964/accessibility?mode=car&scheme=user&bins=20,10", http.StatusBadRequest, "ConfigurationError"},
		{"unknown cell", "/cells/42/accessibility?mode=car", http.StatusNotFound, "IndexError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, &fakeBackend{}, tt.target)
			assert.Equal(t, tt.status, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.kind, body.Kind)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestAccessibility_UnknownCellListsID(t *testing.T) {
	rec := do(t, &fakeBackend{}, "/cells/0042/accessibility?mode=car")
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"42"}, body.IDs)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   compare.Selection
	}{
		{"two modes", "/cells/5989964/compare?metric=time&a=car&b=walk",
			compare.Selection{ModeA: travel.Car, ModeB: travel.Walk, MetricA: travel.Time, MetricB: travel.Time}},
		{"two metrics", "/cells/5989964/compare?metric=time&metric=distance&mode=walk",
			compare.Selection{ModeA: travel.Walk, ModeB: travel.Walk, MetricA: travel.Time, MetricB: travel.Distance}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBackend{}
			rec := do(t, fb, tt.target)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, fb.sel)
			assert.Equal(t, compare.DefaultColumn, rec.Header().Get(HeaderValueColumn))

			var fc featureCollection
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
			require.Len(t, fc.Features, 3)
			assert.Equal(t, -5.0, fc.Features[0].Properties["diff"])
			assert.Nil(t, fc.Features[1].Properties["diff"])
		})
	}
}

func TestCompare_BadSelection(t *testing.T) {
	rec := do(t, &fakeBackend{}, "/cells/5989964/compare?metric=time&a=car")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS(t *testing.T) {
	router := NewRouter(&fakeBackend{}, Options{AllowedOrigins: []string{"https://maps.example.org"}})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://maps.example.org")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "https://maps.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, splitList([]string{"1, 2", "", "3"}))
	assert.Nil(t, splitList(nil))
}
