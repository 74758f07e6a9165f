package temporal

import "time"

// ISOWeek identifies a week in the ISO-8601 week-numbering scheme, where
// week 1 is the week containing the year's first Thursday.
type ISOWeek struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

// Valid reports whether the week number is in the ISO range.
func (w ISOWeek) Valid() bool {
	return w.Week >= 1 && w.Week <= 53
}

// Monday returns the Monday that starts this ISO week.
func (w ISOWeek) Monday() time.Time {
	return MondayOf(w.Year, w.Week)
}

// Range returns the Monday..Sunday range covered by this ISO week.
func (w ISOWeek) Range() DateRange {
	monday := w.Monday()
	return DateRange{Start: monday, End: monday.AddDate(0, 0, 6)}
}

// WeekOf returns the ISO week containing the given date.
func WeekOf(date time.Time) ISOWeek {
	year, week := date.ISOWeek()
	return ISOWeek{Year: year, Week: week}
}

// MondayOf computes the Monday of the given ISO week. Week 1 is anchored
// on Jan 4, which is always inside the first ISO week of its year.
func MondayOf(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	daysFromMonday := (int(jan4.Weekday()) + 6) % 7
	week1Monday := jan4.AddDate(0, 0, -daysFromMonday)
	return week1Monday.AddDate(0, 0, (week-1)*7)
}

// WeeksInYear returns 53 when the year's final days fall in ISO week 53,
// 52 otherwise.
func WeeksInYear(year int) int {
	dec31 := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	isoYear, isoWeek := dec31.ISOWeek()
	if isoYear == year {
		return isoWeek
	}
	return 52
}

// PreviousWeek returns the ISO week before w, rolling into the final week
// of the prior year at the boundary.
func PreviousWeek(w ISOWeek) ISOWeek {
	if w.Week <= 1 {
		prev := w.Year - 1
		return ISOWeek{Year: prev, Week: WeeksInYear(prev)}
	}
	return ISOWeek{Year: w.Year, Week: w.Week - 1}
}

// NextWeek returns the ISO week after w, rolling into week 1 of the next
// year at the boundary.
func NextWeek(w ISOWeek) ISOWeek {
	if w.Week >= WeeksInYear(w.Year) {
		return ISOWeek{Year: w.Year + 1, Week: 1}
	}
	return ISOWeek{Year: w.Year, Week: w.Week + 1}
}
