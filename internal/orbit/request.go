package orbit

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/star/orbitscan/internal/tle"
)

// Rate is the unit of the sampling interval.
type Rate int

const (
	RateSeconds Rate = 1
	RateMinutes Rate = 2
	RateHours   Rate = 3
)

// Seconds returns the length of one rate unit in seconds, or false for an
// unknown selector.
func (r Rate) Seconds() (float64, bool) {
	switch r {
	case RateSeconds:
		return 1, true
	case RateMinutes:
		return 60, true
	case RateHours:
		return 3600, true
	default:
		return 0, false
	}
}

func (r Rate) String() string {
	switch r {
	case RateSeconds:
		return "seconds"
	case RateMinutes:
		return "minutes"
	case RateHours:
		return "hours"
	default:
		return "rate(" + strconv.Itoa(int(r)) + ")"
	}
}

// ParseRate accepts a selector number (1, 2, 3) or a unit name.
func ParseRate(s string) (Rate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "s", "sec", "second", "seconds":
		return RateSeconds, nil
	case "2", "m", "min", "minute", "minutes":
		return RateMinutes, nil
	case "3", "h", "hour", "hours":
		return RateHours, nil
	default:
		return 0, fmt.Errorf("%w: invalid sampling rate choice %q", ErrConfiguration, s)
	}
}

// Request is one coverage run.
type Request struct {
	Elements tle.Elements

	// UseElementEpoch starts the run at the element set's epoch. Otherwise the
	// run starts at midnight UTC of StartDate (DD-MM-YYYY).
	UseElementEpoch bool
	StartDate       string

	Rate Rate
	// Interval is the number of Rate units between samples. Zero means 1.
	Interval float64
	// DurationHours is signed; a negative value samples backwards in time.
	DurationHours float64

	TargetLat float64
	TargetLon float64

	// WidthKm is the full footprint width. Zero selects the sampler default.
	WidthKm float64

	// LiveOnly returns only the live snapshot.
	LiveOnly bool
}

// grid is the validated sample grid of a request.
type grid struct {
	step  float64 // seconds
	count int     // the run evaluates count+1 instants
	sign  float64
}

// plan derives the sample grid, enforcing maxSamples when positive.
func (r Request) plan(maxSamples int) (grid, error) {
	unit, ok := r.Rate.Seconds()
	if !ok {
		return grid{}, fmt.Errorf("%w: invalid sampling rate choice %d", ErrConfiguration, int(r.Rate))
	}
	interval := r.Interval
	if interval == 0 {
		interval = 1
	}
	if !(interval > 0) || math.IsInf(interval, 0) {
		return grid{}, fmt.Errorf("%w: sampling interval must be positive, got %v", ErrConfiguration, r.Interval)
	}
	if r.DurationHours == 0 {
		return grid{}, fmt.Errorf("%w: simulation length must be non-zero", ErrConfiguration)
	}
	if math.IsNaN(r.DurationHours) || math.IsInf(r.DurationHours, 0) {
		return grid{}, fmt.Errorf("%w: simulation length must be finite, got %v", ErrConfiguration, r.DurationHours)
	}

	step := interval * unit
	n := math.Ceil(math.Abs(r.DurationHours*3600) / step)
	if maxSamples > 0 && n > float64(maxSamples) {
		return grid{}, fmt.Errorf("%w: %.0f samples exceeds the limit of %d", ErrConfiguration, n, maxSamples)
	}
	if n > math.MaxInt32 {
		return grid{}, fmt.Errorf("%w: %.0f samples is too many", ErrConfiguration, n)
	}

	sign := 1.0
	if r.DurationHours < 0 {
		sign = -1
	}
	return grid{step: step, count: int(n), sign: sign}, nil
}
