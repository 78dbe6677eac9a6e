package transform

import "math"

// Ellipsoid is a reference ellipsoid. Both conversion directions read the
// same value so a round trip reproduces the input.
type Ellipsoid struct {
	A float64 // semi-major axis (km)
	F float64 // flattening
}

// WGS84 is the WGS-84 reference ellipsoid in kilometres.
var WGS84 = Ellipsoid{A: 6378.137, F: 1.0 / 298.257223563}

// E2 returns the first eccentricity squared.
func (e Ellipsoid) E2() float64 {
	return e.F * (2 - e.F)
}

// B returns the semi-minor axis (km).
func (e Ellipsoid) B() float64 {
	return e.A * (1 - e.F)
}

// primeVertical returns the radius of curvature in the prime vertical, N.
func (e Ellipsoid) primeVertical(sinLat float64) float64 {
	return e.A / math.Sqrt(1-e.E2()*sinLat*sinLat)
}

// Geodetic is a position relative to the ellipsoid.
type Geodetic struct {
	Lat float64 `json:"lat"`    // degrees, [-90, 90]
	Lon float64 `json:"lon"`    // degrees, (-180, 180]
	Alt float64 `json:"alt_km"` // km above the ellipsoid
}

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi

	geodeticTolerance = 1e-12 // radians
	geodeticMaxIter   = 10
)

// ToEarthFixed converts geodetic coordinates to an ECEF vector (km).
func (e Ellipsoid) ToEarthFixed(g Geodetic) Vector {
	lat := g.Lat * deg2rad
	lon := g.Lon * deg2rad

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	N := e.primeVertical(sinLat)

	return Vector{
		X: (N + g.Alt) * cosLat * math.Cos(lon),
		Y: (N + g.Alt) * cosLat * math.Sin(lon),
		Z: (N*(1-e.E2()) + g.Alt) * sinLat,
	}
}

// ToGeodetic converts an ECEF vector (km) to geodetic coordinates using the
// iterative Bowring method. Converges in 2-3 iterations for Earth orbits.
func (e Ellipsoid) ToGeodetic(v Vector) Geodetic {
	e2 := e.E2()
	lon := math.Atan2(v.Y, v.X)
	p := math.Hypot(v.X, v.Y)

	// Initial estimate using Bowring's method.
	lat := math.Atan2(v.Z, p*(1-e2))
	for i := 0; i < geodeticMaxIter; i++ {
		N := e.primeVertical(math.Sin(lat))
		next := math.Atan2(v.Z+e2*N*math.Sin(lat), p)
		done := math.Abs(next-lat) < geodeticTolerance
		lat = next
		if done {
			break
		}
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	// Stable at every latitude, including the poles where p/cos(lat) blows up.
	alt := p*cosLat + v.Z*sinLat - e.A*math.Sqrt(1-e2*sinLat*sinLat)

	return Geodetic{
		Lat: lat * rad2deg,
		Lon: lon * rad2deg,
		Alt: alt,
	}
}

// EarthFixedToGeodetic converts an ECEF vector (km) to WGS-84 geodetic coordinates.
func EarthFixedToGeodetic(v Vector) Geodetic {
	return WGS84.ToGeodetic(v)
}

// GeodeticToEarthFixed converts WGS-84 geodetic coordinates to an ECEF vector (km).
func GeodeticToEarthFixed(g Geodetic) Vector {
	return WGS84.ToEarthFixed(g)
}
