package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The test clock is Tuesday, 2026-09-01.
var tuesday = time.Date(2026, time.September, 1, 15, 30, 0, 0, time.UTC)

func TestResolveExplicitWeekToken(t *testing.T) {
	for _, query := range []string{
		"what happened in 2026-W4",
		"show me 2026-w04 please",
		"2026-W4",
	} {
		ref := Resolve(query, tuesday)
		require.NotNil(t, ref, "query: %q", query)
		assert.Equal(t, KindWeek, ref.Kind)
		assert.Equal(t, ISOWeek{Year: 2026, Week: 4}, ref.Week)
		assert.Equal(t, date(2026, time.January, 19), ref.Week.Monday())
	}
}

func TestResolveRejectsInvalidWeekNumbers(t *testing.T) {
	assert.Nil(t, Resolve("2026-W60", tuesday))
	assert.Nil(t, Resolve("2026-W0", tuesday))
}

func TestResolveIgnoresEmbeddedWeekLikeTokens(t *testing.T) {
	// Digits adjacent to the token disqualify it.
	assert.Nil(t, Resolve("order 12026-W44", tuesday))
}

func TestResolveSingleDayKeywords(t *testing.T) {
	cases := []struct {
		query string
		want  time.Time
	}{
		{"what did i do today?", date(2026, time.September, 1)},
		{"remind me tomorrow", date(2026, time.September, 2)},
		{"what happened yesterday", date(2026, time.August, 31)},
	}
	for _, tc := range cases {
		ref := Resolve(tc.query, tuesday)
		require.NotNil(t, ref, "query: %q", tc.query)
		assert.Equal(t, KindDate, ref.Kind)
		assert.Equal(t, tc.want, ref.Date, "query: %q", tc.query)
	}
}

func TestResolveWordBoundaryForDayKeywords(t *testing.T) {
	assert.Nil(t, Resolve("the todays agenda", tuesday), "substring matches must not fire")
}

func TestResolveWeekKeywords(t *testing.T) {
	thisWeek := WeekOf(tuesday)

	ref := Resolve("summarize this week", tuesday)
	require.NotNil(t, ref)
	assert.Equal(t, thisWeek, ref.Week)

	ref = Resolve("what did i do last week", tuesday)
	require.NotNil(t, ref)
	assert.Equal(t, PreviousWeek(thisWeek), ref.Week)

	ref = Resolve("anything planned for next week", tuesday)
	require.NotNil(t, ref)
	assert.Equal(t, NextWeek(thisWeek), ref.Week)

	ref = Resolve("over the past week", tuesday)
	require.NotNil(t, ref)
	assert.Equal(t, PreviousWeek(thisWeek), ref.Week)
}

func TestResolveMonthKeywords(t *testing.T) {
	ref := Resolve("what happened this month", tuesday)
	require.NotNil(t, ref)
	assert.Equal(t, KindRange, ref.Kind)
	assert.Equal(t, date(2026, time.September, 1), ref.Range.Start)
	assert.Equal(t, date(2026, time.September, 30), ref.Range.End)

	ref = Resolve("spending last month", tuesday)
	require.NotNil(t, ref)
	assert.Equal(t, date(2026, time.August, 1), ref.Range.Start)
	assert.Equal(t, date(2026, time.August, 31), ref.Range.End)

	ref = Resolve("plans for next month", tuesday)
	require.NotNil(t, ref)
	assert.Equal(t, date(2026, time.October, 1), ref.Range.Start)
	assert.Equal(t, date(2026, time.October, 31), ref.Range.End)
}

func TestResolveYearKeywords(t *testing.T) {
	ref := Resolve("everything from last year", tuesday)
	require.NotNil(t, ref)
	assert.Equal(t, date(2025, time.January, 1), ref.Range.Start)
	assert.Equal(t, date(2025, time.December, 31), ref.Range.End)
}

func TestResolveDayOffsets(t *testing.T) {
	ref := Resolve("what did i eat 3 days ago", tuesday)
	require.NotNil(t, ref)
	assert.Equal(t, date(2026, time.August, 29), ref.Date)

	ref = Resolve("the dentist appointment in 5 days", tuesday)
	require.NotNil(t, ref)
	assert.Equal(t, date(2026, time.September, 6), ref.Date)
}

func TestResolveWeekdayReferences(t *testing.T) {
	cases := []struct {
		query string
		want  time.Time
	}{
		{"the meeting on friday", date(2026, time.September, 4)},
		{"see you on Fri", date(2026, time.September, 4)},
		{"tuesday", date(2026, time.September, 8)}, // bare weekday never resolves to today
		{"next monday", date(2026, time.September, 7)},
		{"next friday", date(2026, time.September, 4)},
		{"last friday", date(2026, time.August, 28)},
		{"last wednesday", date(2026, time.August, 26)},
		{"this wednesday", date(2026, time.September, 2)},
	}
	for _, tc := range cases {
		ref := Resolve(tc.query, tuesday)
		require.NotNil(t, ref, "query: %q", tc.query)
		assert.Equal(t, tc.want, ref.Date, "query: %q", tc.query)
	}
}

func TestResolveRelativeRanges(t *testing.T) {
	ref := Resolve("show me the last 7 days", tuesday)
	require.NotNil(t, ref)
	assert.Equal(t, KindRange, ref.Kind)
	assert.Equal(t, date(2026, time.August, 25), ref.Range.Start)
	assert.Equal(t, date(2026, time.September, 1), ref.Range.End)

	ref = Resolve("schedule for the next 2 weeks", tuesday)
	require.NotNil(t, ref)
	assert.Equal(t, date(2026, time.September, 1), ref.Range.Start)
	assert.Equal(t, date(2026, time.September, 15), ref.Range.End)

	ref = Resolve("over the past 2 months", tuesday)
	require.NotNil(t, ref)
	assert.Equal(t, date(2026, time.July, 3), ref.Range.Start, "months approximate to 30 days")
}

func TestResolvePriorityOrder(t *testing.T) {
	// An explicit week token beats every keyword in the same text.
	ref := Resolve("2026-W4 not today", tuesday)
	require.NotNil(t, ref)
	assert.Equal(t, KindWeek, ref.Kind)

	// Single-day keywords beat week keywords.
	ref = Resolve("today, not this week", tuesday)
	require.NotNil(t, ref)
	assert.Equal(t, KindDate, ref.Kind)
	assert.Equal(t, date(2026, time.September, 1), ref.Date)
}

func TestResolveNoMatch(t *testing.T) {
	assert.Nil(t, Resolve("tell me a joke", tuesday))
	assert.Nil(t, Resolve("", tuesday))
}

func TestAsRangeCollapsesEveryKind(t *testing.T) {
	day := Resolve("today", tuesday).AsRange()
	assert.Equal(t, day.Start, day.End)

	week := Resolve("2026-W4", tuesday).AsRange()
	assert.Equal(t, date(2026, time.January, 19), week.Start)
	assert.Equal(t, date(2026, time.January, 25), week.End)
}
