// Package footprint builds the rectangular ground-scan area under a satellite
// and tests whether a target lies inside it.
//
// A footprint is an axis-aligned latitude/longitude box. When the box straddles
// the ±180° meridian its longitudes are kept normalized to [-180, 180), which
// leaves MinLon > MaxLon. That inverted pair is how a seam-crossing box is
// represented; it is not an error.
package footprint

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for scan-area sizing.
const EarthRadiusKm = 6371.0

// DefaultWidthKm is the default full width of the scan area.
const DefaultWidthKm = 200.0

// ErrInvalidCoordinates is returned when a point lies outside the valid
// latitude/longitude ranges. Callers degrade to a zero box instead of aborting.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Footprint is a lat/lon bounding box in degrees.
type Footprint struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Wrapped reports whether the box crosses the ±180° meridian.
func (f Footprint) Wrapped() bool {
	return f.MinLon > f.MaxLon
}

// Array returns the box as [min_lat, max_lat, min_lon, max_lon].
func (f Footprint) Array() [4]float64 {
	return [4]float64{f.MinLat, f.MaxLat, f.MinLon, f.MaxLon}
}

// LatitudeDelta returns the angular latitude span (degrees) of a ground distance.
func LatitudeDelta(distanceKm float64) float64 {
	return distanceKm / EarthRadiusKm * 180 / math.Pi
}

// LongitudeDelta returns the angular longitude span (degrees) of a ground
// distance along the parallel at latDeg. Returns 0 at the poles, where the
// parallel's radius vanishes.
func LongitudeDelta(latDeg, distanceKm float64) float64 {
	r := EarthRadiusKm * math.Cos(latDeg*math.Pi/180)
	if math.Abs(r) < 1e-9 {
		return 0
	}
	return distanceKm / r * 180 / math.Pi
}

// ValidCoordinates reports whether lat/lon are finite and within
// [-90, 90] / [-180, 180].
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Build returns the scan box centred on (lat, lon) extending halfWidthKm in
// each direction. Latitudes are clamped to [-90, 90]. When the box reaches
// around the pole (a longitude half-span of 180° or more) it covers every
// longitude. Invalid coordinates yield the all-zero box together with an
// error wrapping ErrInvalidCoordinates.
func Build(lat, lon, halfWidthKm float64) (Footprint, error) {
	if !ValidCoordinates(lat, lon) {
		return Footprint{}, fmt.Errorf("%w: lat=%v, lon=%v", ErrInvalidCoordinates, lat, lon)
	}
	if math.IsNaN(halfWidthKm) || math.IsInf(halfWidthKm, 0) {
		return Footprint{}, fmt.Errorf("%w: half width %v km", ErrInvalidCoordinates, halfWidthKm)
	}

	dLat := LatitudeDelta(halfWidthKm)
	dLon := LongitudeDelta(lat, halfWidthKm)

	fp := Footprint{
		MinLat: math.Max(lat-dLat, -90),
		MaxLat: math.Min(lat+dLat, 90),
		MinLon: NormalizeLongitude(lon - dLon),
		MaxLon: NormalizeLongitude(lon + dLon),
	}
	if dLon >= 180 || math.Abs(lat)+dLat >= 90 {
		fp.MinLon, fp.MaxLon = -180, 180
	}
	return fp, nil
}

// NormalizeLongitude maps a longitude into [-180, 180) with a floored modulo.
func NormalizeLongitude(lon float64) float64 {
	n := math.Mod(lon+180, 360)
	if n < 0 {
		n += 360
	}
	return n - 180
}
