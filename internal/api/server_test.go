package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/star/orbitscan/internal/auth"
	"github.com/star/orbitscan/internal/cache"
	"github.com/star/orbitscan/internal/epoch"
	"github.com/star/orbitscan/internal/health"
	"github.com/star/orbitscan/internal/orbit"
	"github.com/star/orbitscan/internal/propagation"
	"github.com/star/orbitscan/internal/tle"
	"github.com/star/orbitscan/internal/transform"
)

const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
)

var fixedNow = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// overhead keeps the satellite 500 km above lat 10, lon 20 at every instant.
func overhead() propagation.Func {
	ecef := transform.GeodeticToEarthFixed(transform.Geodetic{Lat: 10, Lon: 20, Alt: 500})
	return func(el tle.Elements, jd epoch.JulianDate) propagation.Result {
		return propagation.Result{Position: transform.RotateZ(ecef, -transform.SiderealAngle(jd))}
	}
}

func decaying() propagation.Func {
	return func(tle.Elements, epoch.JulianDate) propagation.Result {
		return propagation.Result{Code: propagation.CodeDecayed}
	}
}

func newTestServer(t *testing.T, prop propagation.Propagator, authCfg auth.Config) *Server {
	t.Helper()
	logger := testLogger()

	el, err := tle.New("ISS (ZARYA)", issLine1, issLine2)
	if err != nil {
		t.Fatalf("tle.New: %v", err)
	}
	store := tle.NewStore()
	store.Set(tle.NewDataset("test", fixedNow.Add(-time.Hour), []tle.Elements{el}))

	return NewServer(Options{Addr: ":0", Auth: authCfg}, Deps{
		Sampler: orbit.NewSampler(prop, orbit.Config{MaxSamples: 1000, Now: func() time.Time { return fixedNow }}, logger),
		Catalog: tle.NewCatalog(store, nil, nil, false, logger),
		Results: cache.NewResultCache(cache.Config{TTL: time.Minute, MaxEntries: 8}, logger),
		Ready:   health.NewChecker(store),
	}, logger)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

const coverageBody = `{
	"line1": "` + issLine1 + `",
	"line2": "` + issLine2 + `",
	"start_date": "01-01-2024",
	"rate": "hours",
	"duration_hours": 9,
	"target_lat": 10,
	"target_lon": 20,
	"width_km": 200
}`

func TestCoverage(t *testing.T) {
	h := newTestServer(t, overhead(), auth.Config{}).Handler()

	w := do(t, h, http.MethodPost, "/api/v1/coverage", coverageBody)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", got)
	}

	var res orbit.Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Propagated != 10 || len(res.Samples) != 10 || len(res.Coverage) != 10 {
		t.Errorf("propagated=%d samples=%d coverage=%d, want 10/10/10",
			res.Propagated, len(res.Samples), len(res.Coverage))
	}
	want := "Orbit data calculated successfully. Total propagated points: 10. Satellite can scan target point 10 times."
	if res.Message != want {
		t.Errorf("message = %q, want %q", res.Message, want)
	}
	if res.RunID == "" {
		t.Error("missing run_id")
	}
	if !res.Live.Time.Equal(fixedNow) || res.Live.Fallback {
		t.Errorf("live = %+v", res.Live)
	}

	w = do(t, h, http.MethodPost, "/api/v1/coverage", coverageBody)
	if got := w.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("second request X-Cache = %q, want HIT", got)
	}

	w = do(t, h, http.MethodGet, "/api/v1/cache/stats", "")
	var stats cache.Stats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Entries != 1 || stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 entry, 1 hit, 1 miss", stats)
	}
}

func TestCoverageViews(t *testing.T) {
	h := newTestServer(t, overhead(), auth.Config{}).Handler()

	w := do(t, h, http.MethodPost, "/api/v1/coverage?view=rows", coverageBody)
	if w.Code != http.StatusOK {
		t.Fatalf("rows: status = %d, body = %s", w.Code, w.Body.String())
	}
	var rows struct {
		Rows        [][]any `json:"rows"`
		CoveredRows [][]any `json:"covered_rows"`
		ScanBoxes   [][]any `json:"scan_boxes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if len(rows.Rows) != 10 || len(rows.Rows[0]) != 9 {
		t.Errorf("rows shape = %d x %d, want 10 x 9", len(rows.Rows), len(rows.Rows[0]))
	}
	if len(rows.CoveredRows) != 10 || len(rows.CoveredRows[0]) != 5 {
		t.Errorf("covered rows = %d", len(rows.CoveredRows))
	}
	if len(rows.ScanBoxes) != 10 {
		t.Errorf("scan boxes = %d, want 10", len(rows.ScanBoxes))
	}

	w = do(t, h, http.MethodPost, "/api/v1/coverage?view=summary", coverageBody)
	var summary struct {
		Windows []orbit.Window `json:"windows"`
	}
	if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(summary.Windows) != 1 || summary.Windows[0].Samples != 10 {
		t.Errorf("windows = %+v, want one window of 10 samples", summary.Windows)
	}

	w = do(t, h, http.MethodPost, "/api/v1/coverage?view=bogus", coverageBody)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus view: status = %d, want 400", w.Code)
	}
}

func TestCoverageErrors(t *testing.T) {
	replace := func(old, new string) string { return strings.Replace(coverageBody, old, new, 1) }
	catalogBody := `{"norad_id": %s, "start_date": "01-01-2024", "rate": 3, "duration_hours": 2}`

	tests := []struct {
		name      string
		prop      propagation.Propagator
		body      string
		wantCode  int
		wantStage string
	}{
		{"malformed JSON", overhead(), `{"line1":`, http.StatusBadRequest, ""},
		{"unknown field", overhead(), `{"tle": "x"}`, http.StatusBadRequest, ""},
		{"no elements", overhead(), `{"rate": 3, "duration_hours": 1}`, http.StatusBadRequest, orbit.StageParsing},
		{"truncated line", overhead(), replace(issLine1, issLine1[:60]), http.StatusBadRequest, orbit.StageParsing},
		{"bad rate", overhead(), replace(`"hours"`, `"fortnights"`), http.StatusBadRequest, orbit.StageConfiguration},
		{"bad date", overhead(), replace("01-01-2024", "2024-01-01"), http.StatusBadRequest, orbit.StageParsing},
		{"zero duration", overhead(), replace(`"duration_hours": 9`, `"duration_hours": 0`), http.StatusBadRequest, orbit.StageConfiguration},
		{"too many samples", overhead(), replace(`"rate": "hours"`, `"rate": 1`), http.StatusBadRequest, orbit.StageConfiguration},
		{"unknown catalog number", overhead(), strings.Replace(catalogBody, "%s", "99999", 1), http.StatusNotFound, ""},
		{"total propagation failure", decaying(), coverageBody, http.StatusUnprocessableEntity, orbit.StagePropagation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, tt.prop, auth.Config{}).Handler()
			w := do(t, h, http.MethodPost, "/api/v1/coverage", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			var body struct {
				Error string `json:"error"`
				Stage string `json:"stage"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error == "" {
				t.Error("empty error message")
			}
			if body.Stage != tt.wantStage {
				t.Errorf("stage = %q, want %q", body.Stage, tt.wantStage)
			}
		})
	}
}

func TestCoverageFromCatalog(t *testing.T) {
	h := newTestServer(t, overhead(), auth.Config{}).Handler()
	body := `{"norad_id": 25544, "from_elements": true, "rate": 2, "interval": 30, "duration_hours": -1}`

	w := do(t, h, http.MethodPost, "/api/v1/coverage", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res orbit.Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	wantStart := time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)
	if !res.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", res.Start, wantStart)
	}
	if len(res.Samples) != 3 {
		t.Fatalf("samples = %d, want 3", len(res.Samples))
	}
	if !res.Samples[2].Time.Equal(wantStart.Add(-time.Hour)) {
		t.Errorf("last sample = %v, want one hour before start", res.Samples[2].Time)
	}
}

func TestLive(t *testing.T) {
	h := newTestServer(t, overhead(), auth.Config{}).Handler()

	w := do(t, h, http.MethodGet, "/api/v1/live/25544", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got struct {
		NoradID  int                `json:"norad_id"`
		Name     string             `json:"name"`
		Geodetic transform.Geodetic `json:"geodetic"`
		Fallback bool               `json:"fallback"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.NoradID != 25544 || got.Name != "ISS (ZARYA)" || got.Fallback {
		t.Errorf("live = %+v", got)
	}
	if math.Abs(got.Geodetic.Lat-10) > 1e-6 || math.Abs(got.Geodetic.Lon-20) > 1e-6 {
		t.Errorf("geodetic = %+v, want lat 10 lon 20", got.Geodetic)
	}

	if w := do(t, h, http.MethodGet, "/api/v1/live/iss", ""); w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id: status = %d, want 400", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/live/1", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", w.Code)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	h := newTestServer(t, overhead(), auth.Config{}).Handler()

	w := do(t, h, http.MethodGet, "/api/v1/tle", "")
	var info catalogInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if !info.Loaded || info.Count != 1 || info.Source != "test" {
		t.Errorf("info = %+v", info)
	}

	w = do(t, h, http.MethodGet, "/api/v1/tle/25544", "")
	var el struct {
		Line1 string    `json:"line1"`
		Epoch time.Time `json:"epoch"`
	}
	if err := json.NewDecoder(w.Body).Decode(&el); err != nil {
		t.Fatal(err)
	}
	if el.Line1 != issLine1 {
		t.Errorf("line1 = %q", el.Line1)
	}
	if want := time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC); !el.Epoch.Equal(want) {
		t.Errorf("epoch = %v, want %v", el.Epoch, want)
	}

	w = do(t, h, http.MethodPost, "/api/v1/tle/fetch", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("refresh with fetching disabled: status = %d, want 503", w.Code)
	}
}

func TestProbesAndAuth(t *testing.T) {
	h := newTestServer(t, overhead(), auth.Config{Enabled: true, Token: "s3cret"}).Handler()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		token  string
		want   int
	}{
		{"healthz", http.MethodGet, "/healthz", "", "", http.StatusOK},
		{"readyz", http.MethodGet, "/readyz", "", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"index", http.MethodGet, "/", "", "", http.StatusOK},
		{"live is public", http.MethodGet, "/api/v1/live/25544", "", "", http.StatusOK},
		{"coverage needs token", http.MethodPost, "/api/v1/coverage", coverageBody, "", http.StatusUnauthorized},
		{"coverage with token", http.MethodPost, "/api/v1/coverage", coverageBody, "s3cret", http.StatusOK},
		{"catalog needs token", http.MethodGet, "/api/v1/tle", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r io.Reader
			if tt.body != "" {
				r = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, r)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
