package tle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LineLength is the fixed width of each element-set line.
const LineLength = 69

// ErrInvalidElements is returned when an element set is structurally unusable.
var ErrInvalidElements = errors.New("invalid element set")

// Elements is a two-line element set with its optional title line.
// Values are treated as immutable once constructed.
type Elements struct {
	Name    string `json:"name,omitempty"`
	NORADID int    `json:"norad_id"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2"`
}

// New validates the line pair and returns the element set with its catalog
// number filled in.
func New(name, line1, line2 string) (Elements, error) {
	el := Elements{
		Name:  strings.TrimSpace(name),
		Line1: strings.TrimRight(line1, "\r\n "),
		Line2: strings.TrimRight(line2, "\r\n "),
	}
	if err := el.Validate(); err != nil {
		return Elements{}, err
	}
	el.NORADID, _ = strconv.Atoi(strings.TrimSpace(el.Line1[2:7]))
	return el, nil
}

// Validate checks line widths, line numbers and every numeric field the SGP4
// initializer reads. The initializer aborts the process on malformed numbers,
// so nothing reaches it without passing here first.
func (e Elements) Validate() error {
	if len(e.Line1) != LineLength {
		return fmt.Errorf("%w: line1 length %d, expected %d", ErrInvalidElements, len(e.Line1), LineLength)
	}
	if len(e.Line2) != LineLength {
		return fmt.Errorf("%w: line2 length %d, expected %d", ErrInvalidElements, len(e.Line2), LineLength)
	}
	if !strings.HasPrefix(e.Line1, "1 ") {
		return fmt.Errorf("%w: line1 must start with \"1 \"", ErrInvalidElements)
	}
	if !strings.HasPrefix(e.Line2, "2 ") {
		return fmt.Errorf("%w: line2 must start with \"2 \"", ErrInvalidElements)
	}

	l1, l2 := e.Line1, e.Line2
	ints := []field{
		{"catalog number", strings.TrimSpace(l1[2:7])},
		{"epoch year", l1[18:20]},
	}
	for _, f := range ints {
		if _, err := strconv.Atoi(f.value); err != nil {
			return fmt.Errorf("%w: %s %q", ErrInvalidElements, f.name, f.value)
		}
	}

	floats := []field{
		{"epoch day", l1[20:32]},
		{"mean motion derivative", squeeze(l1[33:43])},
		{"mean motion second derivative", squeeze(l1[44:45] + "." + l1[45:50] + "e" + l1[50:52])},
		{"drag term", squeeze(l1[53:54] + "." + l1[54:59] + "e" + l1[59:61])},
		{"inclination", squeeze(l2[8:16])},
		{"right ascension", squeeze(l2[17:25])},
		{"eccentricity", "." + l2[26:33]},
		{"argument of perigee", squeeze(l2[34:42])},
		{"mean anomaly", squeeze(l2[43:51])},
		{"mean motion", squeeze(l2[52:63])},
	}
	for _, f := range floats {
		if _, err := strconv.ParseFloat(f.value, 64); err != nil {
			return fmt.Errorf("%w: %s %q", ErrInvalidElements, f.name, f.value)
		}
	}
	return nil
}

// Key identifies the element set by its line pair.
func (e Elements) Key() string {
	return e.Line1 + "\n" + e.Line2
}

type field struct {
	name  string
	value string
}

// squeeze drops up to two blanks, matching how the SGP4 initializer reads
// space-padded fields.
func squeeze(s string) string {
	return strings.Replace(s, " ", "", 2)
}

// EpochRange represents the minimum and maximum epoch times in a dataset.
type EpochRange struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// Dataset is one catalog snapshot: every element set from a single load.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []Elements

	index map[int]int
}

// NewDataset indexes sats by catalog number. A later entry for the same
// number replaces an earlier one.
func NewDataset(source string, fetchedAt time.Time, sats []Elements) *Dataset {
	ds := &Dataset{
		Source:     source,
		FetchedAt:  fetchedAt,
		Satellites: make([]Elements, 0, len(sats)),
		index:      make(map[int]int, len(sats)),
	}
	for _, s := range sats {
		if i, ok := ds.index[s.NORADID]; ok {
			ds.Satellites[i] = s
			continue
		}
		ds.index[s.NORADID] = len(ds.Satellites)
		ds.Satellites = append(ds.Satellites, s)
	}
	ds.EpochRange = epochRange(sats)
	return ds
}

// Lookup returns the element set for a catalog number.
func (d *Dataset) Lookup(noradID int) (Elements, bool) {
	if d == nil {
		return Elements{}, false
	}
	i, ok := d.index[noradID]
	if !ok {
		return Elements{}, false
	}
	return d.Satellites[i], true
}

// Len returns the number of element sets.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.index)
}
