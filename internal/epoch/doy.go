package epoch

// daysBeforeMonth holds the cumulative day count before each month of a
// non-leap year, indexed by 1-based month.
var daysBeforeMonth = [13]int{0, 0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334}

// IsLeapYear reports whether year is a Gregorian leap year.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DayOfYear returns the 1-based ordinal day of the given date.
// Returns 0 for a month outside 1-12.
func DayOfYear(day, month, year int) int {
	if month < 1 || month > 12 {
		return 0
	}
	doy := day + daysBeforeMonth[month]
	if IsLeapYear(year) && month > 2 {
		doy++
	}
	return doy
}
