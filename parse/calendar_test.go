package parse

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitgrid/transit/model"
)

func TestCalendars(t *testing.T) {
	for _, tc := range []struct {
		name     string
		content  string
		expected []model.Calendar
		warnings int
	}{
		{
			"weekdays",
			`service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date
svc,1,1,1,1,1,0,0,20250101,20251231`,
			[]model.Calendar{{
				ServiceID: "svc",
				StartDate: "20250101",
				EndDate:   "20251231",
				Weekday: 1<<time.Monday | 1<<time.Tuesday | 1<<time.Wednesday |
					1<<time.Thursday | 1<<time.Friday,
			}},
			0,
		},
		{
			"missing day columns default to off",
			`service_id,saturday,start_date,end_date
wknd,1,20250101,20251231`,
			[]model.Calendar{{
				ServiceID: "wknd",
				StartDate: "20250101",
				EndDate:   "20251231",
				Weekday:   1 << time.Saturday,
			}},
			0,
		},
		{
			"bad flag",
			`service_id,monday,start_date,end_date
svc,3,20250101,20251231`,
			nil,
			1,
		},
		{
			"start after end",
			`service_id,monday,start_date,end_date
svc,1,20251231,20250101`,
			nil,
			1,
		},
		{
			"repeated service id",
			`service_id,monday,start_date,end_date
svc,1,20250101,20251231
svc,1,20250101,20251231`,
			[]model.Calendar{{
				ServiceID: "svc",
				StartDate: "20250101",
				EndDate:   "20251231",
				Weekday:   1 << time.Monday,
			}},
			1,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cals, info, err := Calendars("calendar.txt", strings.NewReader(tc.content), Options{})
			require.NoError(t, err)
			if tc.expected == nil {
				assert.Len(t, cals, 0)
			} else {
				assert.Equal(t, tc.expected, cals)
			}
			assert.Len(t, info.Warnings, tc.warnings)
		})
	}
}

func TestCalendarDates(t *testing.T) {
	dates, info, err := CalendarDates("calendar_dates.txt", strings.NewReader(`service_id,date,exception_type
svc,20250704,2
svc,20250705,1
svc,20250704,2
svc,20250706,9`), Options{})
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, model.ExceptionRemoved, dates[0].ExceptionType)
	assert.Equal(t, model.ExceptionAdded, dates[1].ExceptionType)

	// One duplicate, one bad exception type.
	assert.Len(t, info.Warnings, 2)
}
