// Package epoch resolves the start instant of a coverage run and converts
// between calendar time and the split Julian date consumed by SGP4.
package epoch

import (
	"math"
	"time"
)

// J2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const J2000 = 2451545.0

// unixEpochJD is the Julian Date of 1970-01-01T00:00:00Z.
const unixEpochJD = 2440587.5

const secondsPerDay = 86400.0

// JulianDate is a Julian date split into the date at 0h UT (always ending in .5)
// and the fraction of the day elapsed since then. Keeping the two parts apart
// preserves sub-second precision that a single float64 near 2.4e6 loses.
type JulianDate struct {
	Day      float64
	Fraction float64
}

// Value returns the Julian date as a single number.
func (jd JulianDate) Value() float64 {
	return jd.Day + jd.Fraction
}

// Time converts the Julian date back to a UTC time.Time.
func (jd JulianDate) Time() time.Time {
	days := math.Round(jd.Day - unixEpochJD)
	t := time.Unix(int64(days)*int64(secondsPerDay), 0).UTC()
	ns := math.Round(jd.Fraction * secondsPerDay * 1e9)
	return t.Add(time.Duration(ns))
}

// JulianDateOf converts a time.Time (UTC) to a split Julian date.
// Uses the standard astronomical algorithm valid for dates after March 1, 4801 BC.
func JulianDateOf(t time.Time) JulianDate {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())

	// Adjust year/month for Jan/Feb (treat as months 13/14 of previous year).
	if m <= 2 {
		y -= 1
		m += 12
	}

	A := math.Floor(y / 100)
	B := 2 - A + math.Floor(A/4)

	day := math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + B - 1524.5

	secs := float64(t.Hour()*3600+t.Minute()*60+t.Second()) + float64(t.Nanosecond())/1e9
	return JulianDate{Day: day, Fraction: secs / secondsPerDay}
}

// CenturiesSinceJ2000 returns the number of Julian centuries between J2000.0
// and the given Julian date.
func CenturiesSinceJ2000(jd float64) float64 {
	return (jd - J2000) / 36525.0
}
