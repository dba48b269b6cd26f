package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitgrid/transit/model"
)

func TestEasterSunday(t *testing.T) {
	assert.Equal(t, "20240331", easterSunday(2024).Compact())
	assert.Equal(t, "20250420", easterSunday(2025).Compact())
	assert.Equal(t, "20260405", easterSunday(2026).Compact())
}

func TestYearHolidays2025(t *testing.T) {
	h := holidaysForYear(2025)

	assert.Equal(t, "20250101", h.newYearsObserved.Compact())
	assert.Equal(t, "20250418", h.goodFriday.Compact())
	assert.Equal(t, "20250421", h.easterMonday.Compact())
	assert.Equal(t, "20250505", h.mayDay.Compact())
	assert.Equal(t, "20250526", h.springBank.Compact())
	assert.Equal(t, "20250804", h.augustScotland.Compact())
	assert.Equal(t, "20250825", h.lateSummer.Compact())
	assert.Equal(t, "20251225", h.christmasObs.Compact())
	assert.Equal(t, "20251226", h.boxingObs.Compact())
}

func TestWeekendSubstitution(t *testing.T) {
	// 2027: Christmas on a Saturday, Boxing Day on a Sunday.
	h := holidaysForYear(2027)
	assert.Equal(t, "20271227", h.christmasObs.Compact())
	assert.Equal(t, "20271228", h.boxingObs.Compact())

	// 2022: New Year on a Saturday; Scotland's 2 January on a
	// Sunday cascades past the New Year substitute.
	h = holidaysForYear(2022)
	assert.Equal(t, "20220103", h.newYearsObserved.Compact())
	assert.Equal(t, "20220104", h.jan2Observed.Compact())
}

func TestResolveHolidayWindow(t *testing.T) {
	start := model.MustParseDate("2025-01-01")
	end := model.MustParseDate("2025-12-31")

	dates := resolveHoliday("GoodFriday", England, start, end)
	require.Len(t, dates, 1)
	assert.Equal(t, "20250418", dates[0].Compact())

	// Outside the window nothing resolves.
	dates = resolveHoliday("GoodFriday", England,
		model.MustParseDate("2025-06-01"), model.MustParseDate("2025-06-30"))
	assert.Empty(t, dates)

	// A multi-year window resolves one per year.
	dates = resolveHoliday("ChristmasDay", England,
		model.MustParseDate("2024-01-01"), model.MustParseDate("2025-12-31"))
	require.Len(t, dates, 2)

	// Unknown names come back nil.
	assert.Nil(t, resolveHoliday("NotAHoliday", England, start, end))
}

func TestRegionalTables(t *testing.T) {
	start := model.MustParseDate("2025-01-01")
	end := model.MustParseDate("2025-12-31")

	england := resolveHoliday("AllBankHolidays", England, start, end)
	scotland := resolveHoliday("AllBankHolidays", Scotland, start, end)
	ni := resolveHoliday("AllBankHolidays", NorthernIreland, start, end)

	assert.Len(t, england, 8)
	assert.Len(t, scotland, 9)
	assert.Len(t, ni, 10)

	has := func(dates []model.Date, compact string) bool {
		for _, d := range dates {
			if d.Compact() == compact {
				return true
			}
		}
		return false
	}

	// Easter Monday is not a Scottish bank holiday; 2 January is.
	assert.False(t, has(scotland, "20250421"))
	assert.True(t, has(scotland, "20250102"))

	// St Patrick's Day belongs to Northern Ireland only.
	assert.True(t, has(ni, "20250317"))
	assert.False(t, has(england, "20250317"))
}
