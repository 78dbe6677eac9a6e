package propagation

import (
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/star/orbitscan/internal/epoch"
	"github.com/star/orbitscan/internal/tle"
	"github.com/star/orbitscan/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Propagate() takes Satellite by value so SGP4 error codes raised while
// propagating are not visible to the caller. Failures are detected from the
// output instead: NaN/Inf maps to code 1 and a radius inside the Earth maps to
// code 6. Initialization errors are read from Satellite.Error.
//
// The library propagates to whole seconds, so the requested instant is rounded
// to the nearest second and reported back in Result.At.

// Gravity selects the SGP4 gravity constants.
type Gravity string

const (
	GravityWGS72 Gravity = "wgs72"
	GravityWGS84 Gravity = "wgs84"
)

// ParseGravity maps a config value to a Gravity.
func ParseGravity(s string) (Gravity, error) {
	switch g := Gravity(strings.ToLower(strings.TrimSpace(s))); g {
	case GravityWGS72, GravityWGS84:
		return g, nil
	case "":
		return GravityWGS84, nil
	default:
		return "", fmt.Errorf("unknown gravity model %q (want wgs72 or wgs84)", s)
	}
}

// DecayRadiusKm is the geocentric radius below which a propagated position
// is reported as decayed.
var DecayRadiusKm = transform.WGS84.A

// maxCachedSatellites bounds the init cache; it is cleared when full.
const maxCachedSatellites = 1024

// initResult is an initialized satellite or the code it failed with.
type initResult struct {
	sat  satellite.Satellite
	code int
}

// SGP4 propagates element sets with go-satellite. Initialized satellites are
// cached by line pair. The cache map is immutable once published, so reads
// are lock-free.
type SGP4 struct {
	gravity Gravity
	logger  *slog.Logger
	cache   atomic.Pointer[map[string]*initResult]
	mu      sync.Mutex // serializes cache rebuilds
}

// NewSGP4 creates an SGP4 propagator using the given gravity model.
func NewSGP4(gravity Gravity, logger *slog.Logger) *SGP4 {
	if gravity == "" {
		gravity = GravityWGS84
	}
	return &SGP4{gravity: gravity, logger: logger}
}

// Gravity returns the configured gravity model.
func (p *SGP4) Gravity() Gravity {
	return p.gravity
}

// Propagate evaluates el at jd.
func (p *SGP4) Propagate(el tle.Elements, jd epoch.JulianDate) Result {
	ir := p.initialized(el)
	if ir.code != CodeOK {
		return Result{Code: ir.code}
	}

	t := jd.Time().Round(time.Second)
	pos, vel := satellite.Propagate(ir.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	r := Result{
		Position: transform.Vector{X: pos.X, Y: pos.Y, Z: pos.Z},
		Velocity: transform.Vector{X: vel.X, Y: vel.Y, Z: vel.Z},
		At:       t,
	}
	switch {
	case !r.Position.IsFinite() || !r.Velocity.IsFinite():
		return Result{Code: CodeMeanElements, At: t}
	case r.Position.Norm() < DecayRadiusKm:
		return Result{Code: CodeDecayed, At: t}
	}
	return r
}

// initialized returns the cached initialization for el, building it on a miss
// (double-checked locking).
func (p *SGP4) initialized(el tle.Elements) *initResult {
	key := el.Key()
	if m := p.cache.Load(); m != nil {
		if ir, ok := (*m)[key]; ok {
			return ir
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cur := p.cache.Load()
	if cur != nil {
		if ir, ok := (*cur)[key]; ok {
			return ir
		}
	}

	ir := p.initialize(el)

	next := make(map[string]*initResult)
	if cur != nil && len(*cur) < maxCachedSatellites {
		maps.Copy(next, *cur)
	}
	next[key] = ir
	p.cache.Store(&next)
	return ir
}

func (p *SGP4) initialize(el tle.Elements) *initResult {
	// go-satellite calls log.Fatal on malformed input.
	if err := el.Validate(); err != nil {
		p.logger.Warn("sgp4 init skipped", "norad_id", el.NORADID, "error", err)
		return &initResult{code: CodeUnusableInputs}
	}

	var sat satellite.Satellite
	if p.gravity == GravityWGS72 {
		sat = satellite.TLEToSat(el.Line1, el.Line2, satellite.GravityWGS72)
	} else {
		sat = satellite.TLEToSat(el.Line1, el.Line2, satellite.GravityWGS84)
	}
	if sat.Error != 0 {
		p.logger.Warn("sgp4 init failed", "norad_id", el.NORADID, "code", sat.Error, "detail", sat.ErrorStr)
		return &initResult{code: int(sat.Error)}
	}
	return &initResult{sat: sat}
}
