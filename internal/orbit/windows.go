package orbit

import "time"

// Window is a run of consecutive covered samples.
type Window struct {
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Samples          int       `json:"samples"`
	PeakTime         time.Time `json:"peak_time"`
	PeakElevationDeg float64   `json:"peak_elevation_deg"`
	MinRangeKm       float64   `json:"min_range_km"`
}

// Windows groups the coverage subsequence into windows of adjacent sample
// indices. Start and End follow run order, so for a backward run End is
// earlier than Start.
func (r *Result) Windows() []Window {
	var windows []Window
	prev := -2
	for _, ev := range r.Coverage {
		if ev.Index != prev+1 {
			windows = append(windows, Window{
				Start:            ev.Time,
				PeakTime:         ev.Time,
				PeakElevationDeg: ev.Look.ElevationDeg,
				MinRangeKm:       ev.Look.RangeKm,
			})
		}
		w := &windows[len(windows)-1]
		w.End = ev.Time
		w.Samples++
		if ev.Look.ElevationDeg > w.PeakElevationDeg {
			w.PeakElevationDeg = ev.Look.ElevationDeg
			w.PeakTime = ev.Time
		}
		if ev.Look.RangeKm < w.MinRangeKm {
			w.MinRangeKm = ev.Look.RangeKm
		}
		prev = ev.Index
	}
	return windows
}

// Duration returns the absolute time span of the window.
func (w Window) Duration() time.Duration {
	d := w.End.Sub(w.Start)
	if d < 0 {
		d = -d
	}
	return d
}
