package orbit

import (
	"encoding/json"
	"time"

	"github.com/star/orbitscan/internal/footprint"
	"github.com/star/orbitscan/internal/transform"
)

// Sample is one evaluated instant. Geodetic, ECEF and Footprint are nil when
// propagation failed.
type Sample struct {
	Index     int                  `json:"index"`
	Time      time.Time            `json:"time"`
	Code      int                  `json:"code"`
	Geodetic  *transform.Geodetic  `json:"geodetic,omitempty"`
	ECEF      *transform.Vector    `json:"ecef,omitempty"`
	Footprint *footprint.Footprint `json:"footprint,omitempty"`
	Covered   bool                 `json:"covered"`
}

// OK reports whether the sample propagated.
func (s Sample) OK() bool {
	return s.Geodetic != nil
}

// CoverageEvent is a covered sample together with the look angles from the
// target to the satellite. It shares the sample's position data.
type CoverageEvent struct {
	Sample
	Look transform.LookAngles `json:"look"`
}

// Target is the ground point being tested.
type Target struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Snapshot is the satellite position at a single "now" instant.
// Fallback marks a placeholder returned when propagation failed.
type Snapshot struct {
	Time     time.Time          `json:"time"`
	Code     int                `json:"code"`
	Geodetic transform.Geodetic `json:"geodetic"`
	ECEF     transform.Vector   `json:"ecef"`
	Fallback bool               `json:"fallback"`
}

// Result is the outcome of one run. It is built once and must not be
// modified by consumers.
type Result struct {
	RunID       string          `json:"run_id"`
	Message     string          `json:"message"`
	LiveOnly    bool            `json:"live_only,omitempty"`
	Target      Target          `json:"target"`
	Start       time.Time       `json:"start"`
	StepSeconds float64         `json:"step_seconds"`
	WidthKm     float64         `json:"width_km"`
	Propagated  int             `json:"propagated"`
	Failures    map[int]int     `json:"failures,omitempty"`
	Samples     []Sample        `json:"samples"`
	Coverage    []CoverageEvent `json:"coverage"`
	Live        Snapshot        `json:"live"`
}

// Row is the flat per-sample record: lat, lon, alt, status code, covered
// flag and the four box bounds. It encodes as a 9-element JSON array with
// nulls for the position and box of failed samples.
type Row struct {
	Lat, Lon, Alt *float64
	Code          int
	Covered       bool
	Box           *footprint.Footprint
}

// MarshalJSON implements json.Marshaler.
func (r Row) MarshalJSON() ([]byte, error) {
	covered := 0
	if r.Covered {
		covered = 1
	}
	out := []any{r.Lat, r.Lon, r.Alt, r.Code, covered, nil, nil, nil, nil}
	if r.Box != nil {
		out[5], out[6], out[7], out[8] = r.Box.MinLat, r.Box.MaxLat, r.Box.MinLon, r.Box.MaxLon
	}
	return json.Marshal(out)
}

// Rows returns every sample in run order as a Row.
func (r *Result) Rows() []Row {
	rows := make([]Row, len(r.Samples))
	for i, s := range r.Samples {
		row := Row{Code: s.Code, Covered: s.Covered, Box: s.Footprint}
		if g := s.Geodetic; g != nil {
			row.Lat, row.Lon, row.Alt = &g.Lat, &g.Lon, &g.Alt
		}
		rows[i] = row
	}
	return rows
}

// CoveredRow is a coverage event as (lat, lon, alt, timestamp, footprint).
type CoveredRow struct {
	Lat, Lon, Alt float64
	Time          time.Time
	Footprint     footprint.Footprint
}

// MarshalJSON implements json.Marshaler.
func (c CoveredRow) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Lat, c.Lon, c.Alt, c.Time, c.Footprint.Array()})
}

// CoveredRows returns the coverage subsequence as CoveredRows.
func (r *Result) CoveredRows() []CoveredRow {
	rows := make([]CoveredRow, 0, len(r.Coverage))
	for _, ev := range r.Coverage {
		rows = append(rows, CoveredRow{
			Lat:       ev.Geodetic.Lat,
			Lon:       ev.Geodetic.Lon,
			Alt:       ev.Geodetic.Alt,
			Time:      ev.Time,
			Footprint: *ev.Footprint,
		})
	}
	return rows
}

// ScanBoxes returns [min_lat, max_lat, min_lon, max_lon, covered] for every
// successful sample, covered being 1 or 0.
func (r *Result) ScanBoxes() [][5]float64 {
	boxes := make([][5]float64, 0, r.Propagated)
	for _, s := range r.Samples {
		if s.Footprint == nil {
			continue
		}
		covered := 0.0
		if s.Covered {
			covered = 1
		}
		f := s.Footprint
		boxes = append(boxes, [5]float64{f.MinLat, f.MaxLat, f.MinLon, f.MaxLon, covered})
	}
	return boxes
}
