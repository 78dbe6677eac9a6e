package transform

import (
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/star/orbitscan/internal/epoch"
)

// TestSiderealAngle validates our GMST calculation against the go-satellite
// library's GSTimeFromDate function, which uses the same IAU-82 model in its
// seconds-of-time form.
func TestSiderealAngle(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
	}{
		{"J2000.0 epoch", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"Vallado example date", time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC)},
		{"recent date 2026", time.Date(2026, 2, 6, 4, 1, 0, 0, time.UTC)},
		{"before J2000", time.Date(1995, 7, 14, 18, 30, 15, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			our := SiderealAngle(epoch.JulianDateOf(tt.time))
			ref := satellite.GSTimeFromDate(
				tt.time.Year(), int(tt.time.Month()), tt.time.Day(),
				tt.time.Hour(), tt.time.Minute(), tt.time.Second(),
			)

			// 1e-8 radians ≈ 0.002 arcsec.
			if diff := math.Abs(our - ref); diff > 1e-8 {
				t.Errorf("SiderealAngle(%v) = %.12f rad, go-satellite = %.12f rad (diff=%.2e)", tt.time, our, ref, diff)
			}
			if our < 0 || our >= 2*math.Pi {
				t.Errorf("SiderealAngle(%v) = %.6f, want [0, 2π)", tt.time, our)
			}
		})
	}
}

func TestSiderealAngleAtJ2000(t *testing.T) {
	// At J2000.0 the polynomial reduces to its constant term.
	got := SiderealAngle(epoch.JulianDate{Day: 2451544.5, Fraction: 0.5}) * 180 / math.Pi
	if math.Abs(got-280.46061837) > 1e-9 {
		t.Errorf("GMST at J2000 = %.9f deg, want 280.46061837", got)
	}
}

// TestInertialToEarthFixed validates our TEME→ECEF rotation against the
// go-satellite library's ECIToECEF function using the same GMST.
func TestInertialToEarthFixed(t *testing.T) {
	tests := []struct {
		name string
		pos  Vector
		time time.Time
	}{
		{
			// Vallado "Fundamentals of Astrodynamics" Example 3-15
			name: "Vallado example 3-15",
			pos:  Vector{X: 5094.18016, Y: 6127.64465, Z: 6380.34453},
			time: time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC),
		},
		{
			name: "LEO equatorial",
			pos:  Vector{X: 6778.0, Y: 0.0, Z: 0.0},
			time: time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "LEO polar",
			pos:  Vector{X: 0.0, Y: 0.0, Z: 6978.0},
			time: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gmst := satellite.GSTimeFromDate(
				tt.time.Year(), int(tt.time.Month()), tt.time.Day(),
				tt.time.Hour(), tt.time.Minute(), tt.time.Second(),
			)

			our := InertialToEarthFixed(tt.pos, epoch.JulianDateOf(tt.time))
			ref := satellite.ECIToECEF(satellite.Vector3{X: tt.pos.X, Y: tt.pos.Y, Z: tt.pos.Z}, gmst)

			// Tolerance: 1 meter.
			const tolerance = 0.001 // km
			if math.Abs(our.X-ref.X) > tolerance || math.Abs(our.Y-ref.Y) > tolerance || math.Abs(our.Z-ref.Z) > tolerance {
				t.Errorf("position mismatch:\n  ours: [%.6f, %.6f, %.6f] km\n  ref:  [%.6f, %.6f, %.6f] km",
					our.X, our.Y, our.Z, ref.X, ref.Y, ref.Z)
			}

			// A rotation preserves magnitude.
			if math.Abs(our.Norm()-tt.pos.Norm()) > 1e-9 {
				t.Errorf("|ECEF| = %.9f km, |TEME| = %.9f km (should match)", our.Norm(), tt.pos.Norm())
			}
		})
	}
}

// TestInertialToEarthFixedState verifies the velocity transform includes Earth rotation correction.
func TestInertialToEarthFixedState(t *testing.T) {
	// Prograde equatorial satellite at longitude 0°.
	pos := Vector{X: 6778.0}
	vel := Vector{Y: 7.5}

	// GMST = 0 means the TEME X-axis aligns with the ECEF X-axis.
	r, v := InertialToEarthFixedState(pos, vel, 0)

	if math.Abs(r.X-6778.0) > 1e-9 {
		t.Errorf("X position: got %.6f, want 6778.0", r.X)
	}

	// Earth rotation velocity at this radius: ω*R = 7.292115e-5 * 6778 = 0.4943 km/s.
	expectedVY := 7.5 - OmegaEarth*6778.0
	if math.Abs(v.Y-expectedVY) > 1e-9 {
		t.Errorf("VY: got %.6f km/s, want %.6f km/s", v.Y, expectedVY)
	}
}

func TestValidatePosition(t *testing.T) {
	tests := []struct {
		name  string
		pos   Vector
		valid bool
	}{
		{"LEO", Vector{X: 6778}, true},
		{"GEO", Vector{X: 42164}, true},
		{"too low", Vector{X: 5000}, false},
		{"too high", Vector{X: 60000}, false},
		{"NaN", Vector{X: math.NaN()}, false},
		{"Inf", Vector{X: math.Inf(1)}, false},
		{"zero", Vector{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidatePosition(tt.pos); got != tt.valid {
				t.Errorf("ValidatePosition(%v) = %v, want %v", tt.pos, got, tt.valid)
			}
		})
	}
}
