package tle

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/orbitscan/internal/metrics"
)

// Store provides thread-safe access to the current catalog snapshot.
type Store struct {
	dataset atomic.Pointer[Dataset]
	mu      sync.Mutex // serializes merges
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// Set atomically replaces the current dataset.
func (s *Store) Set(ds *Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset.Store(ds)
	metrics.SetTLEDatasetCount(ds.Len())
}

// Lookup returns the element set for a catalog number from the current dataset.
func (s *Store) Lookup(noradID int) (Elements, bool) {
	return s.dataset.Load().Lookup(noradID)
}

// Merge installs a new dataset holding the current entries plus sats.
// Entries in sats replace existing ones with the same catalog number.
func (s *Store) Merge(source string, fetchedAt time.Time, sats []Elements) *Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()

	var merged []Elements
	if cur := s.dataset.Load(); cur != nil {
		merged = append(merged, cur.Satellites...)
	}
	merged = append(merged, sats...)
	ds := NewDataset(source, fetchedAt, merged)
	s.dataset.Store(ds)
	metrics.SetTLEDatasetCount(ds.Len())
	return ds
}

// AgeSeconds returns the age of the current dataset in seconds.
// Returns -1 if no dataset is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}
