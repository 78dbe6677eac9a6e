package transform

import "math"

// Observer holds a ground location in both geodetic and ECEF frames.
// ECEF coordinates are precomputed once so they can be reused across many
// satellite lookups.
type Observer struct {
	Geodetic
	LatRad, LonRad float64
	ECEF           Vector
}

// LookAngles holds azimuth, elevation, and range from observer to satellite.
type LookAngles struct {
	AzimuthDeg   float64 `json:"azimuth_deg"`   // 0 = North, clockwise
	ElevationDeg float64 `json:"elevation_deg"` // 0 = horizon, 90 = zenith
	RangeKm      float64 `json:"range_km"`
}

// NewObserver creates an Observer from geodetic coordinates
// (degrees, km above the WGS-84 ellipsoid).
func NewObserver(latDeg, lonDeg, altKm float64) Observer {
	g := Geodetic{Lat: latDeg, Lon: lonDeg, Alt: altKm}
	return Observer{
		Geodetic: g,
		LatRad:   latDeg * deg2rad,
		LonRad:   lonDeg * deg2rad,
		ECEF:     GeodeticToEarthFixed(g),
	}
}

// LookAnglesFrom computes azimuth, elevation, and range from an observer
// to a satellite given in ECEF km.
//
// Uses the SEZ (South-East-Zenith) topocentric rotation per Vallado Section 4.4.
func LookAnglesFrom(obs Observer, sat Vector) LookAngles {
	rx := sat.X - obs.ECEF.X
	ry := sat.Y - obs.ECEF.Y
	rz := sat.Z - obs.ECEF.Z

	sinLat := math.Sin(obs.LatRad)
	cosLat := math.Cos(obs.LatRad)
	sinLon := math.Sin(obs.LonRad)
	cosLon := math.Cos(obs.LonRad)

	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rangeMag := math.Sqrt(south*south + east*east + zenith*zenith)
	if rangeMag == 0 {
		return LookAngles{ElevationDeg: 90}
	}

	el := math.Asin(zenith / rangeMag)

	// In SEZ, North = -South direction, so az = atan2(east, -south).
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthDeg:   az * rad2deg,
		ElevationDeg: el * rad2deg,
		RangeKm:      rangeMag,
	}
}
