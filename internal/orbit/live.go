package orbit

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/star/orbitscan/internal/epoch"
	"github.com/star/orbitscan/internal/metrics"
	"github.com/star/orbitscan/internal/tle"
	"github.com/star/orbitscan/internal/tracing"
	"github.com/star/orbitscan/internal/transform"
)

// FallbackRadiusKm places the placeholder snapshot on the polar axis at 1.1
// equatorial radii.
const FallbackRadiusKm = 6378.137 * 1.1

// Live returns the satellite position at the sampler clock's current instant.
// It never fails: when propagation fails it returns a fallback snapshot at
// lat = lon = alt = 0 with Fallback set, so periodic pollers can keep drawing.
func (s *Sampler) Live(ctx context.Context, el tle.Elements) Snapshot {
	_, span := tracing.StartSpan(ctx, tracerScope, "orbit.live", attribute.Int("norad_id", el.NORADID))
	defer span.End()

	now := s.cfg.Now().UTC()
	jd := epoch.JulianDateOf(now)
	pr := s.prop.Propagate(el, jd)
	if at := pr.Instant(now); !at.Equal(now) {
		now, jd = at, epoch.JulianDateOf(at)
	}

	if !pr.OK() {
		s.logger.Warn("could not calculate live satellite position", "norad_id", el.NORADID, "code", pr.Code)
		metrics.IncLiveSnapshot(true)
		span.SetAttributes(attribute.Bool("fallback", true), attribute.Int("code", pr.Code))
		return Snapshot{
			Time:     now,
			Code:     pr.Code,
			ECEF:     transform.Vector{Z: FallbackRadiusKm},
			Fallback: true,
		}
	}

	geo := transform.EarthFixedToGeodetic(transform.InertialToEarthFixed(pr.Position, jd))
	metrics.IncLiveSnapshot(false)
	s.logger.Debug("live satellite position", "norad_id", el.NORADID, "lat", geo.Lat, "lon", geo.Lon, "alt_km", geo.Alt)
	return Snapshot{
		Time:     now,
		Geodetic: geo,
		// Re-derived from the geodetic fix so consumers see the same point.
		ECEF: transform.GeodeticToEarthFixed(geo),
	}
}
