package tle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrNoCache is returned by LoadLatest when no snapshot has been written yet.
var ErrNoCache = errors.New("no cached catalog")

const (
	cachePrefix = "catalog_"
	cacheSuffix = ".tle"
)

// Cache keeps timestamped snapshots of fetched TLE text on disk.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache creates a Cache that stores files in dir and keeps at most maxFiles.
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{dir: dir, maxFiles: maxFiles}
}

// Write saves data as a snapshot taken at ts and prunes the oldest snapshots.
func (c *Cache) Write(data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	name := cachePrefix + strconv.FormatInt(ts.Unix(), 10) + cacheSuffix
	if err := os.WriteFile(filepath.Join(c.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return c.prune()
}

// LoadLatest returns the newest snapshot and the time it was taken.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	snaps, err := c.snapshots()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(snaps) == 0 {
		return nil, time.Time{}, ErrNoCache
	}

	latest := snaps[len(snaps)-1]
	data, err := os.ReadFile(latest.path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, latest.ts, nil
}

type snapshot struct {
	path string
	ts   time.Time
}

// snapshots lists cache files oldest first. Files whose names do not carry a
// unix timestamp are ignored.
func (c *Cache) snapshots() ([]snapshot, error) {
	paths, err := filepath.Glob(filepath.Join(c.dir, cachePrefix+"*"+cacheSuffix))
	if err != nil {
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	snaps := make([]snapshot, 0, len(paths))
	for _, p := range paths {
		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), cachePrefix), cacheSuffix)
		unix, err := strconv.ParseInt(stamp, 10, 64)
		if err != nil {
			continue
		}
		snaps = append(snaps, snapshot{path: p, ts: time.Unix(unix, 0)})
	}
	slices.SortFunc(snaps, func(a, b snapshot) int { return a.ts.Compare(b.ts) })
	return snaps, nil
}

func (c *Cache) prune() error {
	snaps, err := c.snapshots()
	if err != nil {
		return err
	}
	for len(snaps) > c.maxFiles {
		if err := os.Remove(snaps[0].path); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", filepath.Base(snaps[0].path), err)
		}
		snaps = snaps[1:]
	}
	return nil
}
