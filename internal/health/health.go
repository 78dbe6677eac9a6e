// Package health serves liveness and readiness probes.
package health

import (
	"fmt"
	"net/http"

	"github.com/star/orbitscan/internal/tle"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Checker reports readiness from the TLE catalog state.
type Checker struct {
	store *tle.Store
}

// NewChecker creates a Checker for store.
func NewChecker(store *tle.Store) *Checker {
	return &Checker{store: store}
}

// Ready reports whether at least one element set is loaded.
func (c *Checker) Ready() bool {
	return c.store != nil && c.store.Get().Len() > 0
}

// Readyz returns 200 once a catalog is loaded and 503 before that.
// Coverage runs with inline element lines work either way, but live
// snapshots and streams need the catalog.
func (c *Checker) Readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !c.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no TLE catalog loaded\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ready (%d satellites)\n", c.store.Get().Len())
}
