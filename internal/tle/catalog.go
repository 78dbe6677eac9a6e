package tle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrNotFound is returned when a catalog number cannot be resolved.
	ErrNotFound = errors.New("satellite not in catalog")
	// ErrFetchDisabled is returned by Refresh when remote fetching is off.
	ErrFetchDisabled = errors.New("TLE fetching is disabled")
)

// Catalog ties the in-memory store to its remote source and disk cache.
type Catalog struct {
	store        *Store
	fetcher      *Fetcher
	cache        *Cache
	fetchEnabled bool
	logger       *slog.Logger
}

// NewCatalog creates a Catalog. fetcher and cache may be nil.
func NewCatalog(store *Store, fetcher *Fetcher, cache *Cache, fetchEnabled bool, logger *slog.Logger) *Catalog {
	return &Catalog{
		store:        store,
		fetcher:      fetcher,
		cache:        cache,
		fetchEnabled: fetchEnabled && fetcher != nil,
		logger:       logger,
	}
}

// Store returns the backing store.
func (c *Catalog) Store() *Store {
	return c.store
}

// LoadCached installs the newest disk snapshot, if any.
func (c *Catalog) LoadCached() (int, error) {
	if c.cache == nil {
		return 0, ErrNoCache
	}
	data, ts, err := c.cache.LoadLatest()
	if err != nil {
		return 0, err
	}
	entries, err := Parse(bytes.NewReader(data), c.logger)
	if err != nil {
		return 0, fmt.Errorf("parsing cached catalog: %w", err)
	}
	ds := NewDataset("cache", ts, entries)
	c.store.Set(ds)
	c.logger.Info("loaded TLE catalog from cache", "count", ds.Len(), "cached_at", ts.Format(time.RFC3339))
	return ds.Len(), nil
}

// Refresh fetches the configured sources, replaces the store contents and
// writes a disk snapshot.
func (c *Catalog) Refresh(ctx context.Context) (*Dataset, error) {
	if !c.fetchEnabled {
		return nil, ErrFetchDisabled
	}
	data, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := Parse(bytes.NewReader(data), c.logger)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("fetched TLE data contained no valid entries")
	}

	now := time.Now().UTC()
	ds := NewDataset(c.fetcher.SourceURL(), now, entries)
	c.store.Set(ds)
	if c.cache != nil {
		if err := c.cache.Write(data, now); err != nil {
			c.logger.Warn("failed to write TLE cache", "error", err)
		}
	}
	c.logger.Info("TLE catalog refreshed", "count", ds.Len(), "source", ds.Source)
	return ds, nil
}

// Resolve returns the element set for noradID, fetching it on demand when it
// is missing from the store and fetching is enabled.
func (c *Catalog) Resolve(ctx context.Context, noradID int) (Elements, error) {
	if el, ok := c.store.Lookup(noradID); ok {
		return el, nil
	}
	if !c.fetchEnabled {
		return Elements{}, fmt.Errorf("%w: %d", ErrNotFound, noradID)
	}

	data, err := c.fetcher.FetchCatalogNumber(ctx, noradID)
	if err != nil {
		return Elements{}, fmt.Errorf("fetching catalog number %d: %w", noradID, err)
	}
	entries, err := Parse(bytes.NewReader(data), c.logger)
	if err != nil {
		return Elements{}, err
	}
	for _, el := range entries {
		if el.NORADID == noradID {
			c.store.Merge(c.fetcher.SourceURL(), time.Now().UTC(), []Elements{el})
			c.logger.Info("fetched element set on demand", "norad_id", noradID, "name", el.Name)
			return el, nil
		}
	}
	return Elements{}, fmt.Errorf("%w: %d", ErrNotFound, noradID)
}
