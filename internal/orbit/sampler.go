// Package orbit drives coverage runs: it resolves the start epoch, walks the
// sample grid through the propagator and the frame transforms, and tests each
// sample's scan footprint against the target.
package orbit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/star/orbitscan/internal/epoch"
	"github.com/star/orbitscan/internal/footprint"
	"github.com/star/orbitscan/internal/metrics"
	"github.com/star/orbitscan/internal/propagation"
	"github.com/star/orbitscan/internal/tracing"
	"github.com/star/orbitscan/internal/transform"
)

const tracerScope = "github.com/star/orbitscan/internal/orbit"

// Config holds sampler settings shared by every run.
type Config struct {
	// MaxSamples bounds the sample count of a single run. Zero disables the bound.
	MaxSamples int
	// DefaultWidthKm is the footprint width used when a request leaves it zero.
	DefaultWidthKm float64
	// Now supplies the live-snapshot clock. Defaults to time.Now.
	Now func() time.Time
}

// Sampler runs coverage requests against a propagator. It holds no per-run
// state and is safe for concurrent use.
type Sampler struct {
	prop   propagation.Propagator
	cfg    Config
	logger *slog.Logger
}

// NewSampler creates a Sampler.
func NewSampler(prop propagation.Propagator, cfg Config, logger *slog.Logger) *Sampler {
	if cfg.DefaultWidthKm <= 0 {
		cfg.DefaultWidthKm = footprint.DefaultWidthKm
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Sampler{prop: prop, cfg: cfg, logger: logger}
}

// Run executes one coverage request. Structural problems abort with an error
// wrapping tle.ErrInvalidElements, epoch.ErrDateFormat or ErrConfiguration.
// A malformed epoch field is caught by element validation and so surfaces as
// tle.ErrInvalidElements, not epoch.ErrEpochParse. Sample times are the
// instants the propagator actually evaluated. Per-sample propagation failures are tallied; only a run in
// which nothing propagated returns a *PropagationError.
func (s *Sampler) Run(ctx context.Context, req Request) (*Result, error) {
	began := time.Now()
	ctx, span := tracing.StartSpan(ctx, tracerScope, "orbit.run",
		attribute.Int("norad_id", req.Elements.NORADID),
		attribute.Float64("duration_hours", req.DurationHours),
		attribute.String("rate", req.Rate.String()),
		attribute.Bool("live_only", req.LiveOnly),
	)
	defer span.End()

	res, err := s.run(ctx, req)

	outcome := "success"
	switch {
	case err != nil && Stage(err) == StagePropagation:
		outcome = "failed"
	case err != nil:
		outcome = "rejected"
	case len(res.Failures) > 0:
		outcome = "partial"
	}
	metrics.ObserveRun(outcome, time.Since(began))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Info("coverage run failed", "stage", Stage(err), "norad_id", req.Elements.NORADID, "error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("run_id", res.RunID),
		attribute.Int("samples", len(res.Samples)),
		attribute.Int("propagated", res.Propagated),
		attribute.Int("coverage_events", len(res.Coverage)),
	)
	s.logger.Info("coverage run complete",
		"run_id", res.RunID,
		"norad_id", req.Elements.NORADID,
		"samples", len(res.Samples),
		"propagated", res.Propagated,
		"coverage_events", len(res.Coverage),
		"duration_ms", time.Since(began).Milliseconds(),
	)
	return res, nil
}

func (s *Sampler) run(ctx context.Context, req Request) (*Result, error) {
	el := req.Elements
	if err := el.Validate(); err != nil {
		return nil, err
	}

	if req.LiveOnly {
		return &Result{
			RunID:    uuid.NewString(),
			LiveOnly: true,
			Target:   Target{Lat: req.TargetLat, Lon: req.TargetLon},
			Live:     s.Live(ctx, el),
		}, nil
	}

	start, err := s.resolveStart(req)
	if err != nil {
		return nil, err
	}

	live := s.Live(ctx, el)

	g, err := req.plan(s.cfg.MaxSamples)
	if err != nil {
		return nil, err
	}
	width := req.WidthKm
	if width == 0 {
		width = s.cfg.DefaultWidthKm
	}
	if !(width > 0) || math.IsInf(width, 0) {
		return nil, fmt.Errorf("%w: footprint width must be positive, got %v", ErrConfiguration, req.WidthKm)
	}
	if !footprint.ValidCoordinates(req.TargetLat, req.TargetLon) {
		s.logger.Warn("target outside valid coordinate range; it will never be covered",
			"target_lat", req.TargetLat, "target_lon", req.TargetLon)
	}

	res := &Result{
		RunID:       uuid.NewString(),
		Target:      Target{Lat: req.TargetLat, Lon: req.TargetLon},
		Start:       start.Time,
		StepSeconds: g.step,
		WidthKm:     width,
		Live:        live,
		Samples:     make([]Sample, 0, g.count+1),
	}
	observer := transform.NewObserver(req.TargetLat, req.TargetLon, 0)
	failures := make(map[int]int)

	for i := 0; i <= g.count; i++ {
		offset := time.Duration(math.Round(g.sign * float64(i) * g.step * float64(time.Second)))
		t := start.Time.Add(offset)
		jd := epoch.JulianDateOf(t)

		pr := s.prop.Propagate(el, jd)
		if at := pr.Instant(t); !at.Equal(t) {
			t, jd = at, epoch.JulianDateOf(at)
		}
		if !pr.OK() {
			failures[pr.Code]++
			s.logger.Debug("sgp4 propagation failed", "run_id", res.RunID, "sample", i, "code", pr.Code, "jd", jd.Value())
			res.Samples = append(res.Samples, Sample{Index: i, Time: t, Code: pr.Code})
			continue
		}
		res.Propagated++

		ecef := transform.InertialToEarthFixed(pr.Position, jd)
		geo := transform.EarthFixedToGeodetic(ecef)
		smp := Sample{Index: i, Time: t, Geodetic: &geo, ECEF: &ecef}

		box, err := footprint.Build(geo.Lat, geo.Lon, width/2)
		smp.Footprint = &box
		if err != nil {
			// Degenerate box; never counts as coverage.
			s.logger.Debug("invalid scan box", "run_id", res.RunID, "sample", i, "error", err)
		} else if box.Covers(req.TargetLat, req.TargetLon) {
			smp.Covered = true
		}
		res.Samples = append(res.Samples, smp)

		if smp.Covered {
			res.Coverage = append(res.Coverage, CoverageEvent{
				Sample: smp,
				Look:   transform.LookAnglesFrom(observer, ecef),
			})
		}
	}

	for code, n := range failures {
		metrics.AddSamples(code, n)
	}
	metrics.AddSamples(propagation.CodeOK, res.Propagated)
	metrics.AddCoverageEvents(len(res.Coverage))

	if res.Propagated == 0 {
		return nil, &PropagationError{Failures: failures, SampleCount: g.count}
	}
	if len(failures) > 0 {
		res.Failures = failures
	}
	res.Message = successMessage(res.Propagated, len(res.Coverage), failures)
	return res, nil
}

func (s *Sampler) resolveStart(req Request) (epoch.Epoch, error) {
	if req.UseElementEpoch {
		return epoch.FromElements(req.Elements.Line1)
	}
	return epoch.FromDate(req.StartDate)
}

func successMessage(propagated, covered int, failures map[int]int) string {
	msg := fmt.Sprintf("Orbit data calculated successfully. Total propagated points: %d. Satellite can scan target point %d times.", propagated, covered)
	if len(failures) > 0 {
		msg += " (Note: Some SGP4 errors occurred for codes: " + FormatFailures(failures) + ")"
	}
	return msg
}
