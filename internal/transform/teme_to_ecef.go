// Package transform provides coordinate frame transformations for satellite positions.
//
// SGP4 outputs positions in TEME (True Equator Mean Equinox), a quasi-inertial
// frame. Coverage geometry needs Earth-fixed and geodetic coordinates, so the
// chain is TEME → ECEF (rotation by GMST) → geodetic (WGS-84).
//
// Method: Simplified Vallado-style rotation using GMST only (TEME → PEF ≈ ECEF).
// This ignores polar motion and equation of equinoxes, which introduces ~50m error
// at most. Footprints are hundreds of kilometres wide, so this is well below
// the resolution of the coverage test.
//
// All distances are kilometres, velocities km/s, angles degrees unless a name
// says otherwise.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"

	"github.com/star/orbitscan/internal/epoch"
)

// Vector is a Cartesian 3-vector (km or km/s).
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Norm returns the Euclidean norm of the vector.
func (v Vector) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// IsFinite reports whether every component is neither NaN nor Inf.
func (v Vector) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Array returns the components as [X, Y, Z].
func (v Vector) Array() [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// RotateZ applies the frame rotation R3(θ) about the polar axis.
//
//	x' =  x·cosθ + y·sinθ
//	y' = −x·sinθ + y·cosθ
//	z' =  z
func RotateZ(v Vector, theta float64) Vector {
	cosT := math.Cos(theta)
	sinT := math.Sin(theta)
	return Vector{
		X: v.X*cosT + v.Y*sinT,
		Y: -v.X*sinT + v.Y*cosT,
		Z: v.Z,
	}
}

// InertialToEarthFixed rotates a TEME position into ECEF at the given Julian date.
func InertialToEarthFixed(pos Vector, jd epoch.JulianDate) Vector {
	return RotateZ(pos, SiderealAngle(jd))
}

// InertialToEarthFixedState transforms TEME position and velocity to ECEF
// using a precomputed GMST angle (radians).
//
// Position transform: r_ECEF = R3(θ) * r_TEME
// Velocity transform: v_ECEF = R3(θ) * v_TEME - ω × r_ECEF
//
// where ω = [0, 0, ω_earth] is Earth's angular velocity vector.
func InertialToEarthFixedState(pos, vel Vector, gmst float64) (Vector, Vector) {
	r := RotateZ(pos, gmst)
	v := RotateZ(vel, gmst)

	// ω × r_ECEF = [-ω*y_ECEF, ω*x_ECEF, 0]
	v.X += OmegaEarth * r.Y
	v.Y -= OmegaEarth * r.X

	return r, v
}

// Radius bounds for a physically plausible Earth-orbiting position (km).
const (
	MinOrbitRadiusKm = 6200.0
	MaxOrbitRadiusKm = 50000.0
)

// ValidatePosition checks that a position is physically reasonable for an
// Earth-orbiting satellite: finite, and with a magnitude between just under
// Earth's radius and well beyond GEO (~42164 km).
func ValidatePosition(pos Vector) bool {
	if !pos.IsFinite() {
		return false
	}
	mag := pos.Norm()
	return mag >= MinOrbitRadiusKm && mag <= MaxOrbitRadiusKm
}
