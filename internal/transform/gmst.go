package transform

import (
	"math"
	"time"

	"github.com/star/orbitscan/internal/epoch"
)

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

// SiderealAngle returns Greenwich Mean Sidereal Time in radians for the given
// Julian date (UT1 ≈ UTC). Uses the IAU-82 polynomial in the degree form
// given by Meeus, "Astronomical Algorithms", Eq. 12.4:
//
//	θ = 280.46061837 + 360.98564736629·d + 0.000387933·T² − T³/38710000
//
// where d is days since J2000.0 and T = d/36525. The result is normalized to
// [0, 360) degrees before conversion.
func SiderealAngle(jd epoch.JulianDate) float64 {
	// Subtract J2000 from the day part first to keep the fraction's precision.
	d := (jd.Day - epoch.J2000) + jd.Fraction
	T := d / 36525.0

	deg := 280.46061837 +
		360.98564736629*d +
		0.000387933*T*T -
		T*T*T/38710000.0

	deg = math.Mod(deg, 360.0)
	if deg < 0 {
		deg += 360.0
	}
	return deg * math.Pi / 180.0
}

// GMST is SiderealAngle for a calendar instant.
func GMST(t time.Time) float64 {
	return SiderealAngle(epoch.JulianDateOf(t))
}
