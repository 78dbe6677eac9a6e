package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/star/orbitscan/internal/cache"
	"github.com/star/orbitscan/internal/httputil"
	"github.com/star/orbitscan/internal/orbit"
	"github.com/star/orbitscan/internal/tle"
)

type liveResponse struct {
	NoradID int    `json:"norad_id"`
	Name    string `json:"name,omitempty"`
	orbit.Snapshot
}

type elementsResponse struct {
	tle.Elements
	Epoch time.Time `json:"epoch"`
}

type catalogInfo struct {
	Loaded     bool            `json:"loaded"`
	Source     string          `json:"source,omitempty"`
	FetchedAt  *time.Time      `json:"fetched_at,omitempty"`
	AgeSeconds float64         `json:"age_seconds"`
	Count      int             `json:"count"`
	EpochRange *tle.EpochRange `json:"epoch_range,omitempty"`
}

// noradID parses the {norad_id} path value, writing a 400 on failure.
func noradID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("norad_id"))
	if err != nil || id <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid norad_id")
		return 0, false
	}
	return id, true
}

// resolve looks up id in the catalog, writing 404/502 on failure.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request, id int) (tle.Elements, bool) {
	el, err := s.deps.Catalog.Resolve(r.Context(), id)
	switch {
	case errors.Is(err, tle.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return tle.Elements{}, false
	case err != nil:
		s.logger.Warn("element lookup failed", "norad_id", id, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "element set unavailable")
		return tle.Elements{}, false
	}
	return el, true
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	id, ok := noradID(w, r)
	if !ok {
		return
	}
	el, ok := s.resolve(w, r, id)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, liveResponse{
		NoradID:  el.NORADID,
		Name:     el.Name,
		Snapshot: s.deps.Sampler.Live(r.Context(), el),
	})
}

func (s *Server) handleElements(w http.ResponseWriter, r *http.Request) {
	id, ok := noradID(w, r)
	if !ok {
		return
	}
	el, ok := s.resolve(w, r, id)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, elementsResponse{Elements: el, Epoch: el.Epoch()})
}

func (s *Server) handleCatalogInfo(w http.ResponseWriter, r *http.Request) {
	store := s.deps.Catalog.Store()
	ds := store.Get()
	info := catalogInfo{AgeSeconds: store.AgeSeconds(), Count: ds.Len()}
	if ds != nil {
		info.Loaded = true
		info.Source = ds.Source
		fetched := ds.FetchedAt
		info.FetchedAt = &fetched
		er := ds.EpochRange
		info.EpochRange = &er
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ds, err := s.deps.Catalog.Refresh(r.Context())
	switch {
	case errors.Is(err, tle.ErrFetchDisabled):
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		s.logger.Warn("catalog refresh failed", "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "catalog refresh failed: "+err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"source":     ds.Source,
		"fetched_at": ds.FetchedAt,
		"count":      ds.Len(),
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Results == nil {
		httputil.WriteJSON(w, http.StatusOK, cache.Stats{})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.deps.Results.Stats())
}
