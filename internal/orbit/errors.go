package orbit

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/star/orbitscan/internal/epoch"
	"github.com/star/orbitscan/internal/tle"
)

var (
	// ErrConfiguration is returned for run parameters that cannot produce a
	// sample grid: zero duration, unknown rate, bad interval or width, or a
	// grid larger than the configured limit.
	ErrConfiguration = errors.New("configuration error")

	// ErrPropagation is returned when no sample in the run propagated.
	ErrPropagation = errors.New("propagation failed")
)

// Stages name the part of a run that failed, for user-facing messages.
const (
	StageParsing       = "parsing"
	StageConfiguration = "configuration"
	StagePropagation   = "propagation"
)

// Stage maps a run error to the stage that produced it. It returns "" for
// nil and for errors outside the run taxonomy.
func Stage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, tle.ErrInvalidElements),
		errors.Is(err, epoch.ErrEpochParse),
		errors.Is(err, epoch.ErrDateFormat):
		return StageParsing
	case errors.Is(err, ErrConfiguration):
		return StageConfiguration
	case errors.Is(err, ErrPropagation):
		return StagePropagation
	default:
		return ""
	}
}

// PropagationError reports a run in which every sample failed.
type PropagationError struct {
	// Failures counts samples per propagator status code.
	Failures map[int]int
	// SampleCount is the derived sample count (the run covers SampleCount+1 instants).
	SampleCount int
}

func (e *PropagationError) Error() string {
	var details string
	switch {
	case e.SampleCount == 0:
		details = "Simulation length resulted in zero samples"
	case len(e.Failures) == 0:
		details = "No specific SGP4 errors recorded. This might indicate an issue with TLE epoch or initial conditions"
	default:
		details = FormatFailures(e.Failures)
	}
	return "SGP4 failed to propagate for any requested point. Details: " + details + "."
}

// Is makes errors.Is(err, ErrPropagation) hold.
func (e *PropagationError) Is(target error) bool {
	return target == ErrPropagation
}

// FormatFailures renders a per-code tally as "Code 1: 3 times, Code 6: 1 times",
// ordered by code.
func FormatFailures(failures map[int]int) string {
	codes := make([]int, 0, len(failures))
	for c := range failures {
		codes = append(codes, c)
	}
	slices.Sort(codes)

	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = fmt.Sprintf("Code %d: %d times", c, failures[c])
	}
	return strings.Join(parts, ", ")
}
