package schedule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	transit "github.com/transitgrid/transit"
	"github.com/transitgrid/transit/schedule"
	"github.com/transitgrid/transit/testutil"
)

// referenceFeed has one trip T1 departing s1 at 08:02:30 and arriving
// s2 at 08:30:00.
func referenceFeed(t *testing.T) *transit.Feed {
	return testutil.BuildFeed(t, map[string][]string{
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon",
			"s1,One,51.5000,-0.1000",
			"s2,Two,51.5200,-0.1100",
		},
		"routes.txt": {
			"route_id,route_short_name,route_type",
			"r1,1,3",
		},
		"trips.txt": {
			"trip_id,route_id,service_id",
			"T1,r1,svc",
		},
		"stop_times.txt": {
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"T1,s1,1,08:02:30,08:02:30",
			"T1,s2,2,08:30:00,08:30:00",
		},
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"svc,1,1,1,1,1,1,1,20250101,20251231",
		},
	})
}

func TestScheduleStartDeviation(t *testing.T) {
	feed := referenceFeed(t)

	sched := &schedule.Schedule{Rows: []schedule.Row{{
		Block:      "B1",
		TripID:     "T1",
		StartPlace: "s1",
		EndPlace:   "s2",
		StartTime:  8 * 3600,
		EndTime:    8*3600 + 30*60,
		Type:       schedule.Revenue,
	}}}

	// Standard: a 150s deviation against a 60s tolerance is a
	// warning.
	report := schedule.Validate(sched, feed, schedule.Config{
		Compliance:           schedule.Standard,
		TimeToleranceSeconds: 60,
	})
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "W007", report.Issues[0].Code)
	assert.Equal(t, schedule.SeverityWarning, report.Issues[0].Severity)
	assert.Contains(t, report.Issues[0].Message, "schedule start deviates from GTFS")
	assert.True(t, report.IsValid)

	// Strict: the same finding is an error.
	report = schedule.Validate(sched, feed, schedule.Config{
		Compliance:           schedule.Strict,
		TimeToleranceSeconds: 60,
	})
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "E007", report.Issues[0].Code)
	assert.False(t, report.IsValid)

	// A wide enough tolerance clears it.
	report = schedule.Validate(sched, feed, schedule.Config{
		Compliance:           schedule.Standard,
		TimeToleranceSeconds: 300,
	})
	assert.Empty(t, report.Issues)
	assert.True(t, report.IsValid)
}

func TestMissingTripReference(t *testing.T) {
	feed := referenceFeed(t)

	sched := &schedule.Schedule{Rows: []schedule.Row{{
		Block:     "B1",
		TripID:    "T404",
		StartTime: 8 * 3600,
		EndTime:   9 * 3600,
		Type:      schedule.Revenue,
	}}}

	report := schedule.Validate(sched, feed, schedule.Config{
		Compliance:           schedule.Standard,
		TimeToleranceSeconds: 60,
	})
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "E006", report.Issues[0].Code)
	assert.False(t, report.IsValid)

	// Lenient skips GTFS rules entirely.
	report = schedule.Validate(sched, feed, schedule.Config{Compliance: schedule.Lenient})
	assert.Empty(t, report.Issues)
}

func TestStructuralRules(t *testing.T) {
	sched := &schedule.Schedule{Rows: []schedule.Row{
		// Ends before it starts.
		{Block: "B1", StartPlace: "a", EndPlace: "b", StartTime: 9 * 3600, EndTime: 8 * 3600, Type: schedule.Revenue},
		// Overlaps the row above and breaks continuity.
		{Block: "B1", StartPlace: "c", EndPlace: "d", StartTime: 8*3600 + 1800, EndTime: 10 * 3600, Type: schedule.Revenue},
	}}

	report := schedule.Validate(sched, nil, schedule.Config{Compliance: schedule.Lenient})
	codes := map[string]int{}
	for _, issue := range report.Issues {
		codes[issue.Code]++
	}
	assert.Equal(t, 1, codes["E001"], "time order")
	assert.NotZero(t, codes["E002"], "continuity")
	assert.Equal(t, 1, codes["E005"], "overlap")
	assert.False(t, report.IsValid)
}

func TestLayoverFloor(t *testing.T) {
	sched := &schedule.Schedule{Rows: []schedule.Row{
		{Block: "B1", StartPlace: "a", EndPlace: "b", StartTime: 8 * 3600, EndTime: 9 * 3600, Type: schedule.Revenue},
		{Block: "B1", StartPlace: "b", EndPlace: "a", StartTime: 9*3600 + 60, EndTime: 10 * 3600, Type: schedule.Revenue},
	}}

	report := schedule.Validate(sched, nil, schedule.Config{
		Compliance:        schedule.Lenient,
		MinLayoverSeconds: 300,
	})
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "E002", report.Issues[0].Code)
	assert.Contains(t, report.Issues[0].Message, "layover")
}

func TestDutyRules(t *testing.T) {
	sched := &schedule.Schedule{Rows: []schedule.Row{
		{Block: "B1", DutyID: "D1", StartPlace: "a", EndPlace: "a", StartTime: 6 * 3600, EndTime: 11 * 3600, Type: schedule.Revenue},
		{Block: "B1", DutyID: "D1", StartPlace: "a", EndPlace: "a", StartTime: 11 * 3600, EndTime: 17 * 3600, Type: schedule.Revenue},
	}}

	// Eleven hours on duty against a ten hour ceiling, with no
	// break across the whole span.
	report := schedule.Validate(sched, nil, schedule.Config{
		Compliance:                  schedule.Lenient,
		MaxDutyLengthSeconds:        10 * 3600,
		MaxContinuousDrivingSeconds: 5 * 3600,
		MinBreakDurationSeconds:     30 * 60,
	})

	codes := map[string]int{}
	for _, issue := range report.Issues {
		codes[issue.Code]++
	}
	assert.Equal(t, 1, codes["E003"], "duty length")
	assert.Equal(t, 1, codes["E004"], "continuous driving")
}

func TestBreakResetsDriving(t *testing.T) {
	sched := &schedule.Schedule{Rows: []schedule.Row{
		{Block: "B1", DutyID: "D1", StartPlace: "a", EndPlace: "a", StartTime: 6 * 3600, EndTime: 10 * 3600, Type: schedule.Revenue},
		{Block: "B1", DutyID: "D1", StartPlace: "a", EndPlace: "a", StartTime: 10 * 3600, EndTime: 10*3600 + 2400, Type: schedule.Break},
		{Block: "B1", DutyID: "D1", StartPlace: "a", EndPlace: "a", StartTime: 10*3600 + 2400, EndTime: 14 * 3600, Type: schedule.Revenue},
	}}

	report := schedule.Validate(sched, nil, schedule.Config{
		Compliance:                  schedule.Lenient,
		MaxContinuousDrivingSeconds: 5 * 3600,
		MinBreakDurationSeconds:     30 * 60,
	})
	assert.Empty(t, report.Issues)
	assert.True(t, report.IsValid)
}

func TestEndpointMismatch(t *testing.T) {
	feed := referenceFeed(t)

	sched := &schedule.Schedule{Rows: []schedule.Row{{
		Block:      "B1",
		TripID:     "T1",
		StartPlace: "somewhere_else",
		EndPlace:   "s2",
		StartTime:  8*3600 + 150,
		EndTime:    8*3600 + 30*60,
		Type:       schedule.Revenue,
	}}}

	report := schedule.Validate(sched, feed, schedule.Config{
		Compliance:           schedule.Standard,
		TimeToleranceSeconds: 300,
	})
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "W009", report.Issues[0].Code)
}
