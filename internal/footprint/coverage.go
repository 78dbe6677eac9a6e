package footprint

// IsCovered reports whether the target point lies inside the footprint.
//
// The latitude test is a closed interval. For an ordinary box the longitude
// test is a closed interval too; for a box wrapped across the ±180° meridian
// the target must lie in [MinLon, 180] or [-180, MaxLon].
func IsCovered(targetLat, targetLon float64, f Footprint) bool {
	// Comparisons against NaN are false, so a NaN bound never covers.
	if !(targetLat >= f.MinLat && targetLat <= f.MaxLat) {
		return false
	}
	if f.MinLon <= f.MaxLon {
		return targetLon >= f.MinLon && targetLon <= f.MaxLon
	}
	if !f.Wrapped() {
		return false
	}
	return (targetLon >= f.MinLon && targetLon <= 180) ||
		(targetLon >= -180 && targetLon <= f.MaxLon)
}

// Covers is IsCovered as a method.
func (f Footprint) Covers(targetLat, targetLon float64) bool {
	return IsCovered(targetLat, targetLon, f)
}
