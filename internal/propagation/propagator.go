// Package propagation defines the orbit propagator capability consumed by the
// sampler and its SGP4 implementation.
package propagation

import (
	"fmt"
	"time"

	"github.com/star/orbitscan/internal/epoch"
	"github.com/star/orbitscan/internal/tle"
	"github.com/star/orbitscan/internal/transform"
)

// Status codes follow the SGP4 convention: 0 is success, 1 through 6 are the
// integrator's own failure codes.
const (
	CodeOK             = 0
	CodeMeanElements   = 1
	CodeMeanMotion     = 2
	CodePertElements   = 3
	CodeSemiLatus      = 4
	CodeSubOrbital     = 5
	CodeDecayed        = 6
	CodeUnusableInputs = -1
)

// Describe returns a short label for a status code.
func Describe(code int) string {
	switch code {
	case CodeOK:
		return "success"
	case CodeMeanElements:
		return "mean elements out of range"
	case CodeMeanMotion:
		return "mean motion below zero"
	case CodePertElements:
		return "perturbed elements out of range"
	case CodeSemiLatus:
		return "semi-latus rectum below zero"
	case CodeSubOrbital:
		return "epoch elements are sub-orbital"
	case CodeDecayed:
		return "satellite has decayed"
	case CodeUnusableInputs:
		return "element set rejected"
	default:
		return fmt.Sprintf("unknown code %d", code)
	}
}

// Result is one propagation outcome. Position (km) and Velocity (km/s) are in
// the inertial frame and are meaningful only when Code is CodeOK.
type Result struct {
	Code     int
	Position transform.Vector
	Velocity transform.Vector
	// At is the instant actually evaluated when the propagator cannot honour
	// the requested one exactly. Zero means the requested instant.
	At time.Time
}

// Instant returns the evaluated instant, falling back to requested.
func (r Result) Instant(requested time.Time) time.Time {
	if r.At.IsZero() {
		return requested
	}
	return r.At
}

// OK reports whether the propagation succeeded.
func (r Result) OK() bool {
	return r.Code == CodeOK
}

// Propagator evaluates an element set at a Julian date.
// Implementations must be safe for concurrent use.
type Propagator interface {
	Propagate(el tle.Elements, jd epoch.JulianDate) Result
}

// Func adapts an ordinary function to the Propagator interface.
type Func func(el tle.Elements, jd epoch.JulianDate) Result

// Propagate calls f(el, jd).
func (f Func) Propagate(el tle.Elements, jd epoch.JulianDate) Result {
	return f(el, jd)
}
