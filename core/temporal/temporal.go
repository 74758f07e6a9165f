package temporal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ReferenceKind discriminates the DateReference union.
type ReferenceKind int

const (
	KindDate ReferenceKind = iota
	KindRange
	KindWeek
)

// DateRange is an inclusive start..end span of calendar dates.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether date falls inside the range, inclusive.
func (r DateRange) Contains(date time.Time) bool {
	return !date.Before(r.Start) && !date.After(r.End)
}

// DateReference is the resolved form of a natural-language time
// expression: a single date, an inclusive range, or an ISO week.
type DateReference struct {
	Kind  ReferenceKind
	Date  time.Time
	Range DateRange
	Week  ISOWeek
}

// AsRange collapses any reference into an inclusive date range.
func (r *DateReference) AsRange() DateRange {
	switch r.Kind {
	case KindRange:
		return r.Range
	case KindWeek:
		return r.Week.Range()
	default:
		return DateRange{Start: r.Date, End: r.Date}
	}
}

func dateRef(date time.Time) *DateReference {
	return &DateReference{Kind: KindDate, Date: date}
}

func rangeRef(start, end time.Time) *DateReference {
	return &DateReference{Kind: KindRange, Range: DateRange{Start: start, End: end}}
}

func weekRef(week ISOWeek) *DateReference {
	return &DateReference{Kind: KindWeek, Week: week}
}

var explicitWeekPattern = regexp.MustCompile(`(^|[^0-9a-z])(\d{4})-w(\d{1,2})($|[^0-9a-z])`)

// Resolve parses a natural-language time expression out of free text.
// It is pure: "today" is injected by the caller, so results are
// deterministic and testable. Returns nil when the text carries no
// recognizable time reference.
func Resolve(query string, today time.Time) *DateReference {
	lowered := strings.ToLower(query)
	today = truncateToDay(today)

	if week, ok := parseExplicitWeek(lowered); ok {
		return weekRef(week)
	}

	if containsWord(lowered, "today") {
		return dateRef(today)
	}
	if containsWord(lowered, "tomorrow") {
		return dateRef(today.AddDate(0, 0, 1))
	}
	if containsWord(lowered, "yesterday") {
		return dateRef(today.AddDate(0, 0, -1))
	}

	if strings.Contains(lowered, "this week") {
		return weekRef(WeekOf(today))
	}
	if strings.Contains(lowered, "last week") ||
		strings.Contains(lowered, "past week") ||
		strings.Contains(lowered, "previous week") {
		return weekRef(PreviousWeek(WeekOf(today)))
	}
	if strings.Contains(lowered, "next week") {
		return weekRef(NextWeek(WeekOf(today)))
	}

	if ref := parseMonthReference(lowered, today); ref != nil {
		return ref
	}
	if ref := parseYearReference(lowered, today); ref != nil {
		return ref
	}

	if offset, ok := parseDayOffset(lowered); ok {
		return dateRef(today.AddDate(0, 0, offset))
	}

	if date, ok := parseWeekdayReference(lowered, today); ok {
		return dateRef(date)
	}

	if ref := parseRelativeRange(lowered, today); ref != nil {
		return ref
	}

	return nil
}

// ParseExplicitWeek exposes explicit week-token parsing for callers that
// only care about "2026-W4"-style references.
func ParseExplicitWeek(query string) (ISOWeek, bool) {
	return parseExplicitWeek(strings.ToLower(query))
}

func parseExplicitWeek(lowered string) (ISOWeek, bool) {
	match := explicitWeekPattern.FindStringSubmatch(lowered)
	if match == nil {
		return ISOWeek{}, false
	}
	year, err := strconv.Atoi(match[2])
	if err != nil {
		return ISOWeek{}, false
	}
	week, err := strconv.Atoi(strings.TrimLeft(match[3], "0"))
	if err != nil {
		return ISOWeek{}, false
	}
	ref := ISOWeek{Year: year, Week: week}
	if !ref.Valid() {
		return ISOWeek{}, false
	}
	return ref, true
}

func parseMonthReference(lowered string, today time.Time) *DateReference {
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	switch {
	case strings.Contains(lowered, "this month"):
		return rangeRef(monthStart, monthStart.AddDate(0, 1, -1))
	case strings.Contains(lowered, "last month"),
		strings.Contains(lowered, "past month"),
		strings.Contains(lowered, "previous month"):
		prevStart := monthStart.AddDate(0, -1, 0)
		return rangeRef(prevStart, monthStart.AddDate(0, 0, -1))
	case strings.Contains(lowered, "next month"):
		nextStart := monthStart.AddDate(0, 1, 0)
		return rangeRef(nextStart, nextStart.AddDate(0, 1, -1))
	}
	return nil
}

func parseYearReference(lowered string, today time.Time) *DateReference {
	year := today.Year()
	switch {
	case strings.Contains(lowered, "this year"):
		return rangeRef(yearStart(year), yearEnd(year))
	case strings.Contains(lowered, "last year"),
		strings.Contains(lowered, "past year"),
		strings.Contains(lowered, "previous year"):
		return rangeRef(yearStart(year-1), yearEnd(year-1))
	case strings.Contains(lowered, "next year"):
		return rangeRef(yearStart(year+1), yearEnd(year+1))
	}
	return nil
}

func yearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func yearEnd(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// parseDayOffset handles "N days ago" and "in N days".
func parseDayOffset(lowered string) (int, bool) {
	tokens := strings.Fields(lowered)
	for i := 0; i+2 < len(tokens); i++ {
		if isDayWord(tokens[i+1]) && tokens[i+2] == "ago" {
			if value, err := strconv.Atoi(tokens[i]); err == nil {
				return -value, true
			}
		}
		if tokens[i] == "in" {
			if value, err := strconv.Atoi(tokens[i+1]); err == nil && isDayWord(tokens[i+2]) {
				return value, true
			}
		}
	}
	return 0, false
}

func isDayWord(token string) bool {
	return token == "day" || token == "days"
}

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
}

// parseWeekdayReference resolves "monday", "next friday", "last tue".
// A bare weekday name means the next future occurrence; if today is that
// weekday it resolves a full week out, never today.
func parseWeekdayReference(lowered string, today time.Time) (time.Time, bool) {
	var weekday time.Weekday
	found := false
	for _, token := range strings.Fields(lowered) {
		token = strings.Trim(token, ".,!?;:'\"")
		if day, ok := weekdayNames[token]; ok {
			weekday = day
			found = true
			break
		}
	}
	if !found {
		return time.Time{}, false
	}

	delta := daysFromMonday(weekday) - daysFromMonday(today.Weekday())
	switch {
	case strings.Contains(lowered, "next "):
		if delta <= 0 {
			delta += 7
		}
	case strings.Contains(lowered, "last "):
		if delta >= 0 {
			delta -= 7
		}
	case strings.Contains(lowered, "this "):
		if delta < 0 {
			delta += 7
		}
	default:
		if delta <= 0 {
			delta += 7
		}
	}
	return today.AddDate(0, 0, delta), true
}

func daysFromMonday(day time.Weekday) int {
	return (int(day) + 6) % 7
}

// parseRelativeRange handles "last/past N days|weeks|months" and
// "next N days|weeks|months". Months are approximated as 30 days.
func parseRelativeRange(lowered string, today time.Time) *DateReference {
	tokens := strings.Fields(lowered)
	for i := 0; i+2 < len(tokens); i++ {
		count, err := strconv.Atoi(tokens[i+1])
		if err != nil || count <= 0 {
			continue
		}
		days, ok := unitDays(tokens[i+2], count)
		if !ok {
			continue
		}
		switch tokens[i] {
		case "last", "past":
			return rangeRef(today.AddDate(0, 0, -days), today)
		case "next":
			return rangeRef(today, today.AddDate(0, 0, days))
		}
	}
	return nil
}

func unitDays(token string, count int) (int, bool) {
	switch token {
	case "day", "days":
		return count, true
	case "week", "weeks":
		return count * 7, true
	case "month", "months":
		return count * 30, true
	}
	return 0, false
}

func containsWord(lowered, word string) bool {
	for _, token := range strings.Fields(lowered) {
		if strings.Trim(token, ".,!?;:'\"") == word {
			return true
		}
	}
	return false
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
