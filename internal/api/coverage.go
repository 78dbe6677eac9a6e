package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/star/orbitscan/internal/cache"
	"github.com/star/orbitscan/internal/httputil"
	"github.com/star/orbitscan/internal/orbit"
	"github.com/star/orbitscan/internal/tle"
)

// maxBodyBytes caps coverage request bodies.
const maxBodyBytes = 64 << 10

// rateParam accepts the sampling rate as a selector number (1, 2, 3) or a
// unit name ("minutes").
type rateParam string

func (p *rateParam) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = rateParam(s)
		return nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("rate must be a number or a string")
	}
	*p = rateParam(n.String())
	return nil
}

// coverageRequest is the JSON body of POST /api/v1/coverage.
type coverageRequest struct {
	Name    string `json:"name"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2"`
	NoradID int    `json:"norad_id"`

	FromElements bool   `json:"from_elements"`
	StartDate    string `json:"start_date"`

	Rate          rateParam `json:"rate"`
	Interval      float64   `json:"interval"`
	DurationHours float64   `json:"duration_hours"`

	TargetLat float64 `json:"target_lat"`
	TargetLon float64 `json:"target_lon"`
	WidthKm   float64 `json:"width_km"`

	LiveOnly bool `json:"live_only"`
}

// rowsView is returned for ?view=rows.
type rowsView struct {
	RunID       string             `json:"run_id"`
	Message     string             `json:"message"`
	Target      orbit.Target       `json:"target"`
	Start       time.Time          `json:"start"`
	StepSeconds float64            `json:"step_seconds"`
	Rows        []orbit.Row        `json:"rows"`
	CoveredRows []orbit.CoveredRow `json:"covered_rows"`
	ScanBoxes   [][5]float64       `json:"scan_boxes"`
	Live        orbit.Snapshot     `json:"live"`
}

// summaryView is returned for ?view=summary.
type summaryView struct {
	RunID      string         `json:"run_id"`
	Message    string         `json:"message"`
	Target     orbit.Target   `json:"target"`
	Start      time.Time      `json:"start"`
	Propagated int            `json:"propagated"`
	Failures   map[int]int    `json:"failures,omitempty"`
	Windows    []orbit.Window `json:"windows"`
	Live       orbit.Snapshot `json:"live"`
}

// elements resolves the satellite named by the request: inline lines take
// precedence over a catalog number.
func (s *Server) elements(r *http.Request, body coverageRequest) (tle.Elements, int, error) {
	switch {
	case body.Line1 != "" || body.Line2 != "":
		el, err := tle.New(body.Name, body.Line1, body.Line2)
		if err != nil {
			return tle.Elements{}, http.StatusBadRequest, err
		}
		return el, 0, nil
	case body.NoradID > 0:
		el, err := s.deps.Catalog.Resolve(r.Context(), body.NoradID)
		switch {
		case errors.Is(err, tle.ErrNotFound):
			return tle.Elements{}, http.StatusNotFound, err
		case err != nil:
			return tle.Elements{}, http.StatusBadGateway, err
		}
		return el, 0, nil
	default:
		return tle.Elements{}, http.StatusBadRequest,
			fmt.Errorf("%w: line1/line2 or norad_id is required", tle.ErrInvalidElements)
	}
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	var body coverageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	el, status, err := s.elements(r, body)
	if err != nil {
		httputil.WriteStageError(w, status, err.Error(), orbit.Stage(err))
		return
	}

	req := orbit.Request{
		Elements:        el,
		UseElementEpoch: body.FromElements,
		StartDate:       body.StartDate,
		Interval:        body.Interval,
		DurationHours:   body.DurationHours,
		TargetLat:       body.TargetLat,
		TargetLon:       body.TargetLon,
		WidthKm:         body.WidthKm,
		LiveOnly:        body.LiveOnly,
	}
	if !body.LiveOnly {
		rate, err := orbit.ParseRate(string(body.Rate))
		if err != nil {
			httputil.WriteStageError(w, http.StatusBadRequest, err.Error(), orbit.StageConfiguration)
			return
		}
		req.Rate = rate
	}

	view := r.URL.Query().Get("view")
	switch view {
	case "", "full", "rows", "summary":
	default:
		httputil.WriteError(w, http.StatusBadRequest, "view must be full, rows or summary")
		return
	}

	res, hit, err := s.runCached(r, req)
	if err != nil {
		status := http.StatusInternalServerError
		switch orbit.Stage(err) {
		case orbit.StageParsing, orbit.StageConfiguration:
			status = http.StatusBadRequest
		case orbit.StagePropagation:
			status = http.StatusUnprocessableEntity
		}
		httputil.WriteStageError(w, status, err.Error(), orbit.Stage(err))
		return
	}

	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}

	switch view {
	case "rows":
		httputil.WriteJSON(w, http.StatusOK, rowsView{
			RunID:       res.RunID,
			Message:     res.Message,
			Target:      res.Target,
			Start:       res.Start,
			StepSeconds: res.StepSeconds,
			Rows:        res.Rows(),
			CoveredRows: res.CoveredRows(),
			ScanBoxes:   res.ScanBoxes(),
			Live:        res.Live,
		})
	case "summary":
		httputil.WriteJSON(w, http.StatusOK, summaryView{
			RunID:      res.RunID,
			Message:    res.Message,
			Target:     res.Target,
			Start:      res.Start,
			Propagated: res.Propagated,
			Failures:   res.Failures,
			Windows:    res.Windows(),
			Live:       res.Live,
		})
	default:
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

// runCached serves repeated requests from the result cache. A cached result
// gets a fresh live snapshot, since "now" has moved on since it was computed.
func (s *Server) runCached(r *http.Request, req orbit.Request) (*orbit.Result, bool, error) {
	if s.deps.Results == nil || req.LiveOnly {
		res, err := s.deps.Sampler.Run(r.Context(), req)
		return res, false, err
	}

	key := cache.Key(req)
	if cached := s.deps.Results.Get(key); cached != nil {
		res := *cached
		res.Live = s.deps.Sampler.Live(r.Context(), req.Elements)
		return &res, true, nil
	}

	res, err := s.deps.Sampler.Run(r.Context(), req)
	if err != nil {
		return nil, false, err
	}
	s.deps.Results.Put(key, res)
	return res, false, nil
}
