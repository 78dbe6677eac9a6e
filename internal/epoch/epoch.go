package epoch

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrEpochParse is returned when the epoch fields of a TLE line 1 are not numeric.
	ErrEpochParse = errors.New("epoch parse error")
	// ErrDateFormat is returned when a start date is not a valid DD-MM-YYYY date.
	ErrDateFormat = errors.New("date format error")
)

// DateLayout is the accepted layout for explicit start dates.
const DateLayout = "02-01-2006"

var datePattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)

// Epoch is a resolved UTC instant together with its Julian date.
type Epoch struct {
	Time   time.Time
	Julian JulianDate
}

// New builds an Epoch from a calendar instant.
func New(t time.Time) Epoch {
	t = t.UTC()
	return Epoch{Time: t, Julian: JulianDateOf(t)}
}

// TLEDay returns the epoch in the TLE day-of-year notation (1.0 = Jan 1 00:00).
func (e Epoch) TLEDay() float64 {
	t := e.Time
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	frac := t.Sub(midnight).Seconds() / secondsPerDay
	return float64(DayOfYear(t.Day(), int(t.Month()), t.Year())) + frac
}

// FromElements decodes the epoch embedded in TLE line 1 (columns 19-32,
// YYDDD.DDDDDDDD). Two-digit years below 57 map to the 2000s, the rest to
// the 1900s.
func FromElements(line1 string) (Epoch, error) {
	if len(line1) < 32 {
		return Epoch{}, fmt.Errorf("%w: line 1 too short for epoch field (%d chars)", ErrEpochParse, len(line1))
	}

	yearStr := strings.TrimSpace(line1[18:20])
	dayStr := strings.TrimSpace(line1[20:32])

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return Epoch{}, fmt.Errorf("%w: invalid epoch year %q", ErrEpochParse, yearStr)
	}
	if year < 57 {
		year += 2000
	} else {
		year += 1900
	}

	dayOfYear, err := strconv.ParseFloat(dayStr, 64)
	if err != nil || math.IsNaN(dayOfYear) || math.IsInf(dayOfYear, 0) {
		return Epoch{}, fmt.Errorf("%w: invalid epoch day %q", ErrEpochParse, dayStr)
	}
	if dayOfYear < 1 || dayOfYear >= 367 {
		return Epoch{}, fmt.Errorf("%w: epoch day %v out of range", ErrEpochParse, dayOfYear)
	}

	// dayOfYear is 1-based: day 1.0 = Jan 1 00:00.
	wholeDays := int(dayOfYear)
	secs := (dayOfYear - float64(wholeDays)) * secondsPerDay

	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, wholeDays-1).
		Add(time.Duration(math.Round(secs*1e6)) * time.Microsecond)

	return New(t), nil
}

// FromDate parses an explicit DD-MM-YYYY start date as midnight UTC.
func FromDate(s string) (Epoch, error) {
	if !datePattern.MatchString(s) {
		return Epoch{}, fmt.Errorf("%w: %q is not DD-MM-YYYY", ErrDateFormat, s)
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return Epoch{}, fmt.Errorf("%w: %q is not a calendar date", ErrDateFormat, s)
	}
	return New(t), nil
}
