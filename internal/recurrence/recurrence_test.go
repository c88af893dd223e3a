package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"invcal/internal/calendar"
)

func dateStrings(ds []calendar.Date) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.DateString()
	}
	return out
}

type ScheduleSuite struct {
	suite.Suite
}

func TestScheduleSuite(t *testing.T) {
	suite.Run(t, new(ScheduleSuite))
}

func (s *ScheduleSuite) TestMonthlyFromJan31KeepsAnchorDay() {
	got := GenerateSchedule(calendar.MustNew(2024, time.January, 31), Rule{Unit: Monthly, Every: 1, Normalization: SameDay}, 3)
	s.Equal([]string{"2024-01-31", "2024-02-29", "2024-03-31"}, dateStrings(got))

	got = GenerateSchedule(calendar.MustNew(2023, time.January, 31), Rule{Unit: Monthly}, 6)
	s.Equal([]string{"2023-01-31", "2023-02-28", "2023-03-31", "2023-04-30", "2023-05-31", "2023-06-30"}, dateStrings(got))
}

func (s *ScheduleSuite) TestNextOccurrence_MonthEnd() {
	jan31 := calendar.MustNew(2023, time.January, 31)
	for _, norm := range []Normalization{SameDay, EndOfMonth, ClosestValid} {
		s.Run(string(norm), func() {
			got := NextOccurrence(jan31, Rule{Unit: Monthly, Normalization: norm})
			s.Equal("2023-02-28", got.DateString())

			leap := NextOccurrence(calendar.MustNew(2024, time.January, 31), Rule{Unit: Monthly, Normalization: norm})
			s.Equal("2024-02-29", leap.DateString())
		})
	}
}

func (s *ScheduleSuite) TestEndOfMonthFromMidMonth() {
	got := GenerateSchedule(calendar.MustNew(2024, time.January, 15), Rule{Unit: Monthly, Normalization: EndOfMonth}, 4)
	s.Equal([]string{"2024-01-15", "2024-02-29", "2024-03-31", "2024-04-30"}, dateStrings(got))
}

func (s *ScheduleSuite) TestYearlyLeapDayClampsToFeb28() {
	feb29 := calendar.MustNew(2020, time.February, 29)
	s.Equal("2021-02-28", NextOccurrence(feb29, Rule{Unit: Yearly}).DateString())

	got := GenerateSchedule(feb29, Rule{Unit: Yearly}, 5)
	s.Equal([]string{"2020-02-29", "2021-02-28", "2022-02-28", "2023-02-28", "2024-02-29"}, dateStrings(got))
}

func (s *ScheduleSuite) TestFixedSteps() {
	start := calendar.MustNew(2024, time.December, 30)
	s.Equal("2024-12-31", NextOccurrence(start, Rule{Unit: Daily}).DateString())
	s.Equal("2025-01-13", NextOccurrence(start, Rule{Unit: Weekly, Every: 2}).DateString())
	s.Equal("2025-02-13", NextOccurrence(start, Rule{Unit: Custom, Days: 45}).DateString())
}

func (s *ScheduleSuite) TestPreservesClockAndLocation() {
	seoul := time.FixedZone("KST", 9*3600)
	start, err := calendar.NewAt(2024, time.January, 31, calendar.Clock{Hour: 9, Minute: 15}, seoul)
	s.Require().NoError(err)

	next := NextOccurrence(start, Rule{Unit: Monthly})
	s.Equal(calendar.Clock{Hour: 9, Minute: 15}, next.Clock())
	s.Equal(seoul, next.Location())
}

func (s *ScheduleSuite) TestCountAndOrdering() {
	s.Empty(GenerateSchedule(calendar.MustNew(2024, time.January, 1), Rule{Unit: Daily}, 0))
	s.Empty(GenerateSchedule(calendar.MustNew(2024, time.January, 1), Rule{Unit: Daily}, -3))

	rules := []Rule{
		{Unit: Daily},
		{Unit: Weekly, Every: 3},
		{Unit: Monthly, Normalization: EndOfMonth},
		{Unit: Monthly, Every: 5},
		{Unit: Yearly},
		{Unit: Custom, Days: 10},
	}
	anchor := calendar.MustNew(2024, time.January, 31)
	for _, r := range rules {
		got := GenerateSchedule(anchor, r, 25)
		s.Len(got, 25)
		s.True(got[0].Equal(anchor))
		for i := 1; i < len(got); i++ {
			s.False(got[i].Before(got[i-1]), "%v not monotonic at %d", r, i)
		}
	}
}

func (s *ScheduleSuite) TestOccurrencesBetween() {
	anchor := calendar.MustNew(2024, time.January, 31)
	got := OccurrencesBetween(anchor, Rule{Unit: Monthly}, calendar.MustNew(2024, time.March, 1), calendar.MustNew(2024, time.June, 30))
	s.Equal([]string{"2024-03-31", "2024-04-30", "2024-05-31", "2024-06-30"}, dateStrings(got))

	s.Empty(OccurrencesBetween(anchor, Rule{Unit: Monthly}, calendar.MustNew(2024, time.June, 30), calendar.MustNew(2024, time.March, 1)))
}

func TestRuleValidate(t *testing.T) {
	require.NoError(t, Rule{Unit: Monthly}.Validate())
	require.NoError(t, Rule{Unit: Custom, Days: 3}.Validate())

	var verr *calendar.ValidationError
	require.ErrorAs(t, Rule{Unit: "fortnightly"}.Validate(), &verr)
	assert.Equal(t, "Unit", verr.Field)
	require.ErrorAs(t, Rule{Unit: Custom}.Validate(), &verr)
	assert.Equal(t, "Days", verr.Field)
	require.ErrorAs(t, Rule{Unit: Daily, Every: -1}.Validate(), &verr)
	assert.Equal(t, "Every", verr.Field)
	require.ErrorAs(t, Rule{Unit: Daily, Normalization: "nearest"}.Validate(), &verr)
	assert.Equal(t, "Normalization", verr.Field)
}

func TestParseNormalization(t *testing.T) {
	for in, want := range map[string]Normalization{
		"":               SameDay,
		"sameDay":        SameDay,
		"end_of_month":   EndOfMonth,
		"End-Of-Month":   EndOfMonth,
		"closestValid":   ClosestValid,
		" closest_valid": ClosestValid,
	} {
		got, err := ParseNormalization(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseNormalization("nearest")
	assert.Error(t, err)
}

func TestFrequency(t *testing.T) {
	f, err := ParseFrequency("Quarterly")
	require.NoError(t, err)
	assert.Equal(t, FreqQuarterly, f)
	assert.Equal(t, Rule{Unit: Monthly, Every: 3, Normalization: EndOfMonth}, f.Rule(EndOfMonth))
	assert.Equal(t, 90, f.NominalDays())

	f, err = ParseFrequency("custom:45")
	require.NoError(t, err)
	assert.Equal(t, CustomFrequency(45), f)
	assert.Equal(t, Rule{Unit: Custom, Days: 45}, f.Rule(SameDay))
	assert.Equal(t, "Every 45 days", f.Label())

	_, err = ParseFrequency("custom:0")
	assert.Error(t, err)
	_, err = ParseFrequency("hourly")
	assert.Error(t, err)

	assert.Equal(t, Rule{Unit: Weekly, Every: 2}, FreqBiweekly.Rule(EndOfMonth))
}

func TestFrequencyOf(t *testing.T) {
	cases := []struct {
		rule Rule
		want Frequency
		ok   bool
	}{
		{Rule{Unit: Monthly, Every: 3, Normalization: EndOfMonth}, FreqQuarterly, true},
		{Rule{Unit: Yearly}, FreqAnnual, true},
		{Rule{Unit: Weekly, Every: 2}, FreqBiweekly, true},
		{Rule{Unit: Weekly, Every: 3}, CustomFrequency(21), true},
		{Rule{Unit: Daily, Every: 10}, CustomFrequency(10), true},
		{Rule{Unit: Custom, Days: 45}, CustomFrequency(45), true},
		{Rule{Unit: Monthly, Every: 4}, "", false},
	}
	for _, tc := range cases {
		got, ok := FrequencyOf(tc.rule)
		assert.Equal(t, tc.ok, ok, "%+v", tc.rule)
		assert.Equal(t, tc.want, got, "%+v", tc.rule)
	}
}

type RRuleSuite struct {
	suite.Suite
}

func TestRRuleSuite(t *testing.T) {
	suite.Run(t, new(RRuleSuite))
}

func (s *RRuleSuite) TestString() {
	jan15 := calendar.MustNew(2024, time.January, 15)
	jan31 := calendar.MustNew(2024, time.January, 31)
	feb29 := calendar.MustNew(2020, time.February, 29)

	s.Equal("FREQ=MONTHLY;INTERVAL=1;BYMONTHDAY=15", Rule{Unit: Monthly}.RRule(jan15))
	s.Equal("FREQ=MONTHLY;INTERVAL=1;BYSETPOS=-1;BYMONTHDAY=28,29,30,31", Rule{Unit: Monthly}.RRule(jan31))
	s.Equal("FREQ=MONTHLY;INTERVAL=3;BYMONTHDAY=-1", Rule{Unit: Monthly, Every: 3, Normalization: EndOfMonth}.RRule(jan31))
	s.Equal("FREQ=YEARLY;INTERVAL=1;BYSETPOS=-1;BYMONTH=2;BYMONTHDAY=28,29", Rule{Unit: Yearly}.RRule(feb29))
	s.Equal("FREQ=DAILY;INTERVAL=45", Rule{Unit: Custom, Days: 45}.RRule(jan15))
	s.Equal("FREQ=WEEKLY;INTERVAL=2", Rule{Unit: Weekly, Every: 2}.RRule(jan15))
}

// The RRULE form must expand to the same dates GenerateSchedule produces.
func (s *RRuleSuite) TestExpandMatchesSchedule() {
	cases := []struct {
		name   string
		anchor calendar.Date
		rule   Rule
	}{
		{"monthly mid-month", calendar.MustNew(2024, time.January, 15), Rule{Unit: Monthly}},
		{"monthly jan 31", calendar.MustNew(2024, time.January, 31), Rule{Unit: Monthly}},
		{"monthly jan 30 closest", calendar.MustNew(2023, time.January, 30), Rule{Unit: Monthly, Normalization: ClosestValid}},
		{"month end", calendar.MustNew(2024, time.January, 31), Rule{Unit: Monthly, Normalization: EndOfMonth}},
		{"quarterly", calendar.MustNew(2023, time.November, 30), Rule{Unit: Monthly, Every: 3}},
		{"yearly leap day", calendar.MustNew(2020, time.February, 29), Rule{Unit: Yearly}},
		{"biweekly", calendar.MustNew(2024, time.February, 26), Rule{Unit: Weekly, Every: 2}},
		{"custom", calendar.MustNew(2024, time.February, 26), Rule{Unit: Custom, Days: 45}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			want := GenerateSchedule(tc.anchor, tc.rule, 12)
			got, err := tc.rule.Expand(tc.anchor, tc.anchor, want[len(want)-1])
			s.Require().NoError(err)
			s.Equal(dateStrings(want), dateStrings(got))
		})
	}
}

func (s *RRuleSuite) TestFromRRule() {
	anchor := calendar.MustNew(2024, time.January, 15)
	r, err := FromRRule("RRULE:FREQ=MONTHLY;INTERVAL=3;BYMONTHDAY=-1", anchor)
	s.Require().NoError(err)
	s.Equal(Rule{Unit: Monthly, Every: 3, Normalization: EndOfMonth}, r)

	r, err = FromRRule("FREQ=WEEKLY", anchor)
	s.Require().NoError(err)
	s.Equal(Rule{Unit: Weekly, Every: 1, Normalization: SameDay}, r)

	r, err = FromRRule("FREQ=YEARLY;BYMONTH=1;BYMONTHDAY=15", anchor)
	s.Require().NoError(err)
	s.Equal(Rule{Unit: Yearly, Every: 1, Normalization: SameDay}, r)

	_, err = FromRRule("FREQ=HOURLY", anchor)
	s.Error(err)
	_, err = FromRRule("garbage", anchor)
	s.Error(err)
}

func (s *RRuleSuite) TestFromRRule_RejectsOtherDays() {
	anchor := calendar.MustNew(2024, time.January, 6)
	for _, rule := range []string{
		"FREQ=MONTHLY;BYDAY=1SA",
		"FREQ=WEEKLY;BYDAY=MO,TH",
		"FREQ=MONTHLY;BYMONTHDAY=1,15",
		"FREQ=MONTHLY;BYMONTHDAY=20",
		"FREQ=MONTHLY;BYMONTHDAY=6;BYSETPOS=1",
		"FREQ=YEARLY;BYMONTH=3",
		"FREQ=MONTHLY;COUNT=5",
		"FREQ=MONTHLY;UNTIL=20241231T000000Z",
		"FREQ=DAILY;BYMONTHDAY=6",
	} {
		_, err := FromRRule(rule, anchor)
		var verr *calendar.ValidationError
		s.True(errors.As(err, &verr), rule)
	}
}

func (s *RRuleSuite) TestRoundTrip() {
	anchor := calendar.MustNew(2024, time.January, 31)
	for _, r := range []Rule{
		{Unit: Monthly, Every: 2, Normalization: SameDay},
		{Unit: Monthly, Every: 1, Normalization: EndOfMonth},
		{Unit: Yearly, Every: 1, Normalization: SameDay},
		{Unit: Weekly, Every: 4, Normalization: SameDay},
	} {
		back, err := FromRRule(r.RRule(anchor), anchor)
		s.Require().NoError(err)
		s.Equal(r, back)
	}

	mid := calendar.MustNew(2024, time.May, 12)
	back, err := FromRRule(Rule{Unit: Yearly, Every: 1}.RRule(mid), mid)
	s.Require().NoError(err)
	s.Equal(Rule{Unit: Yearly, Every: 1, Normalization: SameDay}, back)
}

func TestFirstOnOrAfter(t *testing.T) {
	anchor := calendar.MustNew(2024, time.January, 31)
	rule := Rule{Unit: Monthly}

	assert.Equal(t, "2024-01-31", FirstOnOrAfter(anchor, rule, calendar.MustNew(2023, time.June, 1)).DateString())
	assert.Equal(t, "2024-04-30", FirstOnOrAfter(anchor, rule, calendar.MustNew(2024, time.April, 1)).DateString())
	assert.Equal(t, "2024-04-30", FirstOnOrAfter(anchor, rule, calendar.MustNew(2024, time.April, 30)).DateString())
	assert.Equal(t, "2024-05-31", FirstOnOrAfter(anchor, rule, calendar.MustNew(2024, time.May, 1)).DateString())
}
