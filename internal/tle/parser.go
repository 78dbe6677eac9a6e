package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/star/orbitscan/internal/epoch"
)

// Parse reads element sets from r. Both the 3-line form (title line first)
// and the bare 2-line form are accepted, and may be mixed.
// Malformed entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]Elements, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []Elements
	var name string
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !strings.HasPrefix(line, "1 ") {
			if strings.HasPrefix(line, "2 ") {
				logger.Warn("skipping orphaned TLE line 2", "line_index", i, "name", name)
				name = ""
				continue
			}
			// Title line for the next pair.
			name = line
			continue
		}

		if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "2 ") {
			logger.Warn("skipping TLE entry without line 2", "line_index", i, "name", name)
			name = ""
			continue
		}

		el, err := New(name, line, lines[i+1])
		if err != nil {
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name, "error", err)
		} else {
			entries = append(entries, el)
		}
		name = ""
		i++
	}

	return entries, nil
}

// epochRange returns the min and max epochs of sats. Entries whose epoch
// cannot be resolved are ignored.
func epochRange(sats []Elements) EpochRange {
	var r EpochRange
	for _, s := range sats {
		ep, err := epoch.FromElements(s.Line1)
		if err != nil {
			continue
		}
		if r.Min.IsZero() || ep.Time.Before(r.Min) {
			r.Min = ep.Time
		}
		if r.Max.IsZero() || ep.Time.After(r.Max) {
			r.Max = ep.Time
		}
	}
	return r
}

// Epoch resolves the element set's epoch, or the zero time if it cannot be read.
func (e Elements) Epoch() time.Time {
	ep, err := epoch.FromElements(e.Line1)
	if err != nil {
		return time.Time{}
	}
	return ep.Time
}
