// Package api serves accessibility tables over HTTP as GeoJSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/accessviz/internal/cellid"
	"github.com/sells-group/accessviz/internal/classify"
	"github.com/sells-group/accessviz/internal/compare"
	"github.com/sells-group/accessviz/internal/fault"
	"github.com/sells-group/accessviz/internal/matrix"
	"github.com/sells-group/accessviz/internal/pipeline"
	"github.com/sells-group/accessviz/internal/render"
	"github.com/sells-group/accessviz/internal/travel"
)

// Backend runs the requests behind the routes. *pipeline.Service satisfies it.
type Backend interface {
	Find(ctx context.Context, ids []cellid.ID) (*matrix.Result, error)
	Classified(ctx context.Context, id cellid.ID, mode travel.Mode, scheme classify.Scheme) (*pipeline.Handoff, classify.Result, error)
	Compared(ctx context.Context, id cellid.ID, sel compare.Selection) (*pipeline.Handoff, compare.Summary, error)
}

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	// Bins are the user-defined breaks used when a request names the user
	// scheme without its own bins.
	Bins    []float64
	Timeout time.Duration // per request, default 60s
}

// Response headers describing the classification or comparison behind a
// GeoJSON body.
const (
	HeaderClassColumn = "X-Class-Column"
	HeaderClassBounds = "X-Class-Bounds"
	HeaderValueColumn = "X-Value-Column"
	HeaderUnmatched   = "X-Unmatched"
	HeaderDropped     = "X-Dropped-Origins"
	HeaderCRS         = "X-CRS" // geometries are in the grid projection, not WGS84
)

// NewRouter returns the HTTP handler.
func NewRouter(b Backend, opts Options) http.Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	h := &handlers{backend: b, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.Timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{HeaderClassColumn, HeaderClassBounds, HeaderValueColumn, HeaderUnmatched, HeaderDropped},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Get("/find", h.find)
	r.Route("/cells/{id}", func(r chi.Router) {
		r.Get("/accessibility", h.accessibility)
		r.Get("/compare", h.compare)
	})
	return r
}

type handlers struct {
	backend Backend
	opts    Options
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) find(w http.ResponseWriter, r *http.Request) {
	raw := splitList(r.URL.Query()["id"])
	if len(raw) == 0 {
		writeError(w, r, fault.Configurationf("api: at least one id is required"))
		return
	}
	res, err := h.backend.Find(r.Context(), cellid.Parse(raw))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// accessibility serves the classified map column of one mode:
// ?mode=public&scheme=natural&classes=6 or ?mode=car&scheme=user&bins=10,20,30.
func (h *handlers) accessibility(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := travel.ParseMode(q.Get("mode"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	scheme, err := h.scheme(q.Get("scheme"), q.Get("classes"), q.Get("bins"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	hand, res, err := h.backend.Classified(r.Context(), cellid.FromString(chi.URLParam(r, "id")), mode, scheme)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set(HeaderClassColumn, res.Label)
	w.Header().Set(HeaderValueColumn, res.Column)
	w.Header().Set(HeaderClassBounds, joinFloats(res.Bounds))
	writeGeoJSON(w, r, hand)
}

// compare serves the difference between two modes or two metrics:
// ?metric=time&a=car&b=public or ?metric=time&metric=distance&mode=walk.
func (h *handlers) compare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	metrics := splitList(q["metric"])
	modes := splitList(append([]string{q.Get("a"), q.Get("b")}, q["mode"]...))
	sel, err := compare.ParseSelection(metrics, modes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	hand, sum, err := h.backend.Compared(r.Context(), cellid.FromString(chi.URLParam(r, "id")), sel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set(HeaderValueColumn, sum.Column)
	writeGeoJSON(w, r, hand)
}

func (h *handlers) scheme(name, classes, bins string) (classify.Scheme, error) {
	k := 0
	if classes != "" {
		n, err := strconv.Atoi(classes)
		if err != nil {
			return nil, fault.NewConfiguration(err, "api: classes must be an integer")
		}
		k = n
	}
	var edges []float64
	for _, s := range splitList([]string{bins}) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fault.NewConfiguration(err, "api: bins must be numbers")
		}
		edges = append(edges, v)
	}
	if len(edges) == 0 {
		edges = h.opts.Bins
	}
	return classify.ParseScheme(name, k, edges)
}

func writeGeoJSON(w http.ResponseWriter, r *http.Request, hand *pipeline.Handoff) {
	if len(hand.Find.Unmatched) > 0 {
		ids := make([]string, len(hand.Find.Unmatched))
		for i, id := range hand.Find.Unmatched {
			ids[i] = id.String()
		}
		w.Header().Set(HeaderUnmatched, strings.Join(ids, ","))
	}
	w.Header().Set(HeaderDropped, strconv.Itoa(hand.Stats.DroppedOrigins))
	if srid := render.SRID(hand.Table); srid != 0 {
		w.Header().Set(HeaderCRS, render.CRSName(srid))
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := render.WriteGeoJSON(w, hand.Table); err != nil {
		zap.L().Error("api: write geojson", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

type errorBody struct {
	Error string   `json:"error"`
	Kind  string   `json:"kind"`
	IDs   []string `json:"ids,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := fault.HTTPStatus(err)
	body := errorBody{Error: err.Error(), Kind: fault.KindOf(err).String()}
	var fe *fault.Error
	if errors.As(err, &fe) {
		body.IDs = fe.IDs
	}
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		zap.L().Debug("api: request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// splitList flattens repeated and comma-separated query values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func joinFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
