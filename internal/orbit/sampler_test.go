package orbit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/star/orbitscan/internal/epoch"
	"github.com/star/orbitscan/internal/footprint"
	"github.com/star/orbitscan/internal/propagation"
	"github.com/star/orbitscan/internal/tle"
	"github.com/star/orbitscan/internal/transform"
)

const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
)

var (
	testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	fixedNow   = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	jan1       = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func issElements(t *testing.T) tle.Elements {
	t.Helper()
	el, err := tle.New("ISS (ZARYA)", issLine1, issLine2)
	if err != nil {
		t.Fatalf("tle.New: %v", err)
	}
	return el
}

// overhead returns a propagator that always places the satellite above the
// given ground point. fail, when set, may return a non-zero code for an instant.
func overhead(lat, lon, altKm float64, fail func(time.Time) int) propagation.Func {
	ecef := transform.GeodeticToEarthFixed(transform.Geodetic{Lat: lat, Lon: lon, Alt: altKm})
	return func(el tle.Elements, jd epoch.JulianDate) propagation.Result {
		if fail != nil {
			if code := fail(jd.Time()); code != 0 {
				return propagation.Result{Code: code}
			}
		}
		return propagation.Result{Position: transform.RotateZ(ecef, -transform.SiderealAngle(jd))}
	}
}

func newTestSampler(p propagation.Propagator) *Sampler {
	return NewSampler(p, Config{MaxSamples: 100000, Now: func() time.Time { return fixedNow }}, testLogger)
}

func hourlyRequest(t *testing.T, hours float64) Request {
	return Request{
		Elements:      issElements(t),
		StartDate:     "01-01-2024",
		Rate:          RateHours,
		Interval:      1,
		DurationHours: hours,
	}
}

func TestRunRejectsStructuralErrors(t *testing.T) {
	s := newTestSampler(overhead(0, 0, 500, nil))
	base := hourlyRequest(t, 9)

	tests := []struct {
		name      string
		mutate    func(r *Request)
		wantErr   error
		wantStage string
	}{
		{"zero duration", func(r *Request) { r.DurationHours = 0 }, ErrConfiguration, StageConfiguration},
		{"zero duration from epoch", func(r *Request) { r.DurationHours = 0; r.UseElementEpoch = true }, ErrConfiguration, StageConfiguration},
		{"unknown rate", func(r *Request) { r.Rate = 4 }, ErrConfiguration, StageConfiguration},
		{"negative interval", func(r *Request) { r.Interval = -1 }, ErrConfiguration, StageConfiguration},
		{"NaN interval", func(r *Request) { r.Interval = math.NaN() }, ErrConfiguration, StageConfiguration},
		{"negative width", func(r *Request) { r.WidthKm = -5 }, ErrConfiguration, StageConfiguration},
		{"too many samples", func(r *Request) { r.Rate = RateSeconds; r.DurationHours = 100 }, ErrConfiguration, StageConfiguration},
		{"short line", func(r *Request) { r.Elements.Line1 = r.Elements.Line1[:60] }, tle.ErrInvalidElements, StageParsing},
		{"ISO date", func(r *Request) { r.StartDate = "2024-01-01" }, epoch.ErrDateFormat, StageParsing},
		{"impossible date", func(r *Request) { r.StartDate = "31-02-2024" }, epoch.ErrDateFormat, StageParsing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			res, err := s.Run(context.Background(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if res != nil {
				t.Errorf("result = %+v, want nil", res)
			}
			if got := Stage(err); got != tt.wantStage {
				t.Errorf("Stage = %q, want %q", got, tt.wantStage)
			}
		})
	}
}

func TestRunMalformedEpochField(t *testing.T) {
	s := newTestSampler(overhead(0, 0, 500, nil))
	req := hourlyRequest(t, 3)
	req.UseElementEpoch = true
	req.Elements.Line1 = strings.Replace(issLine1, "24100.50000000", "24100.5000000x", 1)

	_, err := s.Run(context.Background(), req)
	if !errors.Is(err, tle.ErrInvalidElements) {
		t.Fatalf("err = %v, want ErrInvalidElements", err)
	}
	if errors.Is(err, epoch.ErrEpochParse) {
		t.Errorf("err = %v, epoch field should be rejected by element validation", err)
	}
	if got := Stage(err); got != StageParsing {
		t.Errorf("stage = %q, want %q", got, StageParsing)
	}
}

func TestRunPartialFailure(t *testing.T) {
	failAt := map[int]bool{2: true, 5: true, 7: true}
	p := overhead(0, 0, 500, func(ts time.Time) int {
		h := int(ts.Sub(jan1).Round(time.Minute) / time.Hour)
		if ts.Before(jan1.Add(24*time.Hour)) && failAt[h] {
			return propagation.CodeMeanElements
		}
		return 0
	})
	s := newTestSampler(p)

	res, err := s.Run(context.Background(), hourlyRequest(t, 9))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Samples) != 10 {
		t.Fatalf("samples = %d, want 10", len(res.Samples))
	}
	if res.Propagated != 7 {
		t.Errorf("propagated = %d, want 7", res.Propagated)
	}
	if res.Failures[1] != 3 || len(res.Failures) != 1 {
		t.Errorf("failures = %v, want map[1:3]", res.Failures)
	}

	want := "Orbit data calculated successfully. Total propagated points: 7. " +
		"Satellite can scan target point 7 times. (Note: Some SGP4 errors occurred for codes: Code 1: 3 times)"
	if res.Message != want {
		t.Errorf("message = %q\nwant      %q", res.Message, want)
	}

	for i, smp := range res.Samples {
		if smp.Index != i {
			t.Errorf("sample %d has index %d", i, smp.Index)
		}
		if want := jan1.Add(time.Duration(i) * time.Hour); !smp.Time.Equal(want) {
			t.Errorf("sample %d time = %v, want %v", i, smp.Time, want)
		}
		if failAt[i] {
			if smp.OK() || smp.Covered || smp.Footprint != nil || smp.Code != 1 {
				t.Errorf("failed sample %d = %+v", i, smp)
			}
			continue
		}
		if !smp.OK() || !smp.Covered {
			t.Errorf("sample %d should be propagated and covered: %+v", i, smp)
		}
	}
}

func TestRunTotalFailure(t *testing.T) {
	s := newTestSampler(overhead(0, 0, 500, func(time.Time) int { return propagation.CodeDecayed }))

	res, err := s.Run(context.Background(), hourlyRequest(t, 3))
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
	if !errors.Is(err, ErrPropagation) {
		t.Fatalf("err = %v, want ErrPropagation", err)
	}
	var pe *PropagationError
	if !errors.As(err, &pe) {
		t.Fatalf("err %T is not *PropagationError", err)
	}
	if pe.Failures[6] != 4 {
		t.Errorf("failures = %v, want map[6:4]", pe.Failures)
	}
	want := "SGP4 failed to propagate for any requested point. Details: Code 6: 4 times."
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
	if Stage(err) != StagePropagation {
		t.Errorf("Stage = %q", Stage(err))
	}
}

func TestPropagationErrorDetails(t *testing.T) {
	tests := []struct {
		err  PropagationError
		want string
	}{
		{PropagationError{SampleCount: 0}, "Details: Simulation length resulted in zero samples."},
		{PropagationError{SampleCount: 5}, "Details: No specific SGP4 errors recorded."},
		{PropagationError{SampleCount: 5, Failures: map[int]int{6: 1, 1: 2}}, "Details: Code 1: 2 times, Code 6: 1 times."},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); !strings.Contains(got, tt.want) {
			t.Errorf("Error() = %q, want it to contain %q", got, tt.want)
		}
	}
}

func TestRunRecordsEvaluatedInstant(t *testing.T) {
	base := overhead(0, 0, 500, nil)
	wholeSeconds := propagation.Func(func(el tle.Elements, jd epoch.JulianDate) propagation.Result {
		at := jd.Time().Round(time.Second)
		r := base(el, epoch.JulianDateOf(at))
		r.At = at
		return r
	})
	s := newTestSampler(wholeSeconds)

	res, err := s.Run(context.Background(), Request{
		Elements:      issElements(t),
		StartDate:     "01-01-2024",
		Rate:          RateSeconds,
		Interval:      0.25,
		DurationHours: 1.0 / 3600,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Samples) != 5 {
		t.Fatalf("samples = %d, want 5", len(res.Samples))
	}
	for _, smp := range res.Samples {
		if smp.Time.Nanosecond() != 0 {
			t.Errorf("sample %d time %v is not the evaluated whole second", smp.Index, smp.Time)
		}
		requested := jan1.Add(time.Duration(smp.Index) * 250 * time.Millisecond)
		if d := smp.Time.Sub(requested); d < -500*time.Millisecond || d > 500*time.Millisecond {
			t.Errorf("sample %d time %v too far from requested %v", smp.Index, smp.Time, requested)
		}
	}
	if !res.Samples[0].Time.Equal(jan1) || !res.Samples[4].Time.Equal(jan1.Add(time.Second)) {
		t.Errorf("end points = %v, %v", res.Samples[0].Time, res.Samples[4].Time)
	}
}

func TestRunBackward(t *testing.T) {
	s := newTestSampler(overhead(0, 0, 500, nil))
	req := hourlyRequest(t, -2.5)
	req.Rate = RateMinutes
	req.Interval = 30

	res, err := s.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Samples) != 6 {
		t.Fatalf("samples = %d, want 6", len(res.Samples))
	}
	for i := 1; i < len(res.Samples); i++ {
		if d := res.Samples[i-1].Time.Sub(res.Samples[i].Time); d != 30*time.Minute {
			t.Errorf("samples %d->%d step = %v, want 30m backwards", i-1, i, d)
		}
	}
	if res.StepSeconds != 1800 {
		t.Errorf("step = %v, want 1800", res.StepSeconds)
	}
}

func TestRunSeamCoverage(t *testing.T) {
	s := newTestSampler(overhead(0, 179.9, 550, nil))
	req := hourlyRequest(t, 1)
	req.TargetLat, req.TargetLon = 0, -179.95

	res, err := s.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Coverage) != len(res.Samples) {
		t.Fatalf("coverage = %d of %d samples, want all", len(res.Coverage), len(res.Samples))
	}
	for _, ev := range res.Coverage {
		if !ev.Footprint.Wrapped() {
			t.Errorf("footprint %+v should wrap the antimeridian", *ev.Footprint)
		}
		if ev.Look.ElevationDeg < 80 {
			t.Errorf("elevation = %.2f, want near zenith", ev.Look.ElevationDeg)
		}
	}
}

func TestRunLiveOnly(t *testing.T) {
	s := newTestSampler(overhead(10, 20, 500, nil))
	req := hourlyRequest(t, 0)
	req.StartDate = "not a date"
	req.LiveOnly = true

	res, err := s.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.LiveOnly || len(res.Samples) != 0 || res.Message != "" {
		t.Errorf("live-only result = %+v", res)
	}
	if !res.Live.Time.Equal(fixedNow) || res.Live.Fallback {
		t.Errorf("live snapshot = %+v", res.Live)
	}
}

func TestLive(t *testing.T) {
	s := newTestSampler(overhead(10, 20, 500, nil))
	snap := s.Live(context.Background(), issElements(t))

	if snap.Fallback || snap.Code != 0 {
		t.Fatalf("unexpected fallback: %+v", snap)
	}
	if math.Abs(snap.Geodetic.Lat-10) > 1e-6 || math.Abs(snap.Geodetic.Lon-20) > 1e-6 || math.Abs(snap.Geodetic.Alt-500) > 1e-6 {
		t.Errorf("geodetic = %+v, want (10, 20, 500)", snap.Geodetic)
	}
	if want := transform.GeodeticToEarthFixed(snap.Geodetic); snap.ECEF != want {
		t.Errorf("ECEF = %+v, want %+v", snap.ECEF, want)
	}
	if !snap.Time.Equal(fixedNow) {
		t.Errorf("time = %v, want %v", snap.Time, fixedNow)
	}
}

func TestLiveFallback(t *testing.T) {
	s := newTestSampler(overhead(0, 0, 500, func(time.Time) int { return propagation.CodeDecayed }))
	snap := s.Live(context.Background(), issElements(t))

	if !snap.Fallback || snap.Code != 6 {
		t.Fatalf("snapshot = %+v, want fallback with code 6", snap)
	}
	if snap.Geodetic != (transform.Geodetic{}) {
		t.Errorf("fallback geodetic = %+v, want zeros", snap.Geodetic)
	}
	if want := (transform.Vector{Z: 6378.137 * 1.1}); snap.ECEF != want {
		t.Errorf("fallback ECEF = %+v, want %+v", snap.ECEF, want)
	}
}

// TestRunEndToEnd runs a day of one-minute samples through the real SGP4
// propagator.
func TestRunEndToEnd(t *testing.T) {
	s := NewSampler(propagation.NewSGP4(propagation.GravityWGS72, testLogger), Config{MaxSamples: 10000}, testLogger)
	req := Request{
		Elements:        issElements(t),
		UseElementEpoch: true,
		Rate:            RateMinutes,
		Interval:        1,
		DurationHours:   24,
		TargetLat:       0,
		TargetLon:       0,
		WidthKm:         200,
	}

	res, err := s.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Samples) != 24*60+1 {
		t.Fatalf("samples = %d, want %d", len(res.Samples), 24*60+1)
	}
	if want := time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC); !res.Start.Equal(want) {
		t.Errorf("start = %v, want %v", res.Start, want)
	}
	if !strings.Contains(res.Message, "Total propagated points: 1441.") {
		t.Errorf("message = %q", res.Message)
	}
	if res.RunID == "" {
		t.Error("missing run id")
	}

	for _, smp := range res.Samples {
		if !smp.OK() {
			t.Fatalf("sample %d failed with code %d", smp.Index, smp.Code)
		}
		if smp.Geodetic.Alt < 300 || smp.Geodetic.Alt > 550 {
			t.Errorf("sample %d altitude %.1f km outside LEO band", smp.Index, smp.Geodetic.Alt)
		}
		if math.Abs(smp.Geodetic.Lat) > 52 {
			t.Errorf("sample %d latitude %.2f exceeds inclination", smp.Index, smp.Geodetic.Lat)
		}
	}
	for _, ev := range res.Coverage {
		if !footprint.IsCovered(res.Target.Lat, res.Target.Lon, *ev.Footprint) {
			t.Errorf("coverage event %d does not cover the target: %+v", ev.Index, *ev.Footprint)
		}
		if !res.Samples[ev.Index].Covered {
			t.Errorf("coverage event %d not flagged in the full sequence", ev.Index)
		}
	}
	if len(res.ScanBoxes()) != 1441 {
		t.Errorf("scan boxes = %d, want 1441", len(res.ScanBoxes()))
	}
}
