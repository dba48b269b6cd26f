package convert

import (
	"sync"
	"time"

	"github.com/transitgrid/transit/model"
)

// Region selects the bank-holiday table used to resolve the symbolic
// holiday names a TXC operating profile carries.
type Region int

const (
	England Region = iota
	Scotland
	Wales
	NorthernIreland
)

func (r Region) String() string {
	switch r {
	case Scotland:
		return "scotland"
	case Wales:
		return "wales"
	case NorthernIreland:
		return "northern_ireland"
	}
	return "england"
}

// yearHolidays holds one calendar year's holiday dates, region
// agnostic; regional membership is applied at name resolution.
type yearHolidays struct {
	newYearsDay      model.Date
	newYearsObserved model.Date
	jan2Scotland     model.Date
	jan2Observed     model.Date
	stPatricksDay    model.Date
	goodFriday       model.Date
	easterMonday     model.Date
	mayDay           model.Date
	springBank       model.Date
	boyne            model.Date
	augustScotland   model.Date
	lateSummer       model.Date
	stAndrewsDay     model.Date
	stAndrewsObs     model.Date
	christmasEve     model.Date
	christmasDay     model.Date
	boxingDay        model.Date
	christmasObs     model.Date
	boxingObs        model.Date
	newYearsEve      model.Date
}

// Holiday tables are computed on first use and cached immutably for the
// process lifetime.
var (
	holidayMu    sync.Mutex
	holidayCache = map[int]*yearHolidays{}
)

// easterSunday computes Gregorian Easter via the anonymous algorithm.
func easterSunday(year int) model.Date {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return model.Date{Year: year, Month: time.Month(month), Day: day}
}

// firstWeekday returns the first occurrence of weekday in a month.
func firstWeekday(year int, month time.Month, weekday time.Weekday) model.Date {
	d := model.Date{Year: year, Month: month, Day: 1}
	for d.Weekday() != weekday {
		d = d.AddDays(1)
	}
	return d
}

// lastWeekday returns the last occurrence of weekday in a month.
func lastWeekday(year int, month time.Month, weekday time.Weekday) model.Date {
	d := model.DateOf(time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1))
	for d.Weekday() != weekday {
		d = d.AddDays(-1)
	}
	return d
}

// observed substitutes a holiday falling on a weekend (or on a date
// already taken by another substitute) with the next free weekday.
func observed(d model.Date, taken map[string]bool) model.Date {
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday || taken[d.Compact()] {
		d = d.AddDays(1)
	}
	return d
}

func holidaysForYear(year int) *yearHolidays {
	holidayMu.Lock()
	defer holidayMu.Unlock()

	if h, found := holidayCache[year]; found {
		return h
	}

	easter := easterSunday(year)
	h := &yearHolidays{
		newYearsDay:    model.Date{Year: year, Month: time.January, Day: 1},
		jan2Scotland:   model.Date{Year: year, Month: time.January, Day: 2},
		stPatricksDay:  model.Date{Year: year, Month: time.March, Day: 17},
		goodFriday:     easter.AddDays(-2),
		easterMonday:   easter.AddDays(1),
		mayDay:         firstWeekday(year, time.May, time.Monday),
		springBank:     lastWeekday(year, time.May, time.Monday),
		boyne:          model.Date{Year: year, Month: time.July, Day: 12},
		augustScotland: firstWeekday(year, time.August, time.Monday),
		lateSummer:     lastWeekday(year, time.August, time.Monday),
		stAndrewsDay:   model.Date{Year: year, Month: time.November, Day: 30},
		christmasEve:   model.Date{Year: year, Month: time.December, Day: 24},
		christmasDay:   model.Date{Year: year, Month: time.December, Day: 25},
		boxingDay:      model.Date{Year: year, Month: time.December, Day: 26},
		newYearsEve:    model.Date{Year: year, Month: time.December, Day: 31},
	}

	// January substitutes cascade: if New Year lands on a weekend
	// its replacement may displace Scotland's 2 January.
	taken := map[string]bool{}
	h.newYearsObserved = observed(h.newYearsDay, taken)
	taken[h.newYearsObserved.Compact()] = true
	h.jan2Observed = observed(h.jan2Scotland, taken)

	// Christmas and Boxing Day substitute jointly.
	taken = map[string]bool{}
	h.christmasObs = observed(h.christmasDay, taken)
	taken[h.christmasObs.Compact()] = true
	h.boxingObs = observed(h.boxingDay, taken)

	h.stPatricksDay = observed(h.stPatricksDay, nil)
	h.boyne = observed(h.boyne, nil)
	h.stAndrewsObs = observed(h.stAndrewsDay, nil)

	holidayCache[year] = h
	return h
}

// regionHolidays lists the dates "AllBankHolidays" covers for a region
// in one year.
func regionHolidays(region Region, year int) []model.Date {
	h := holidaysForYear(year)

	switch region {
	case Scotland:
		return []model.Date{
			h.newYearsObserved, h.jan2Observed, h.goodFriday,
			h.mayDay, h.springBank, h.augustScotland,
			h.stAndrewsObs, h.christmasObs, h.boxingObs,
		}
	case NorthernIreland:
		return []model.Date{
			h.newYearsObserved, h.stPatricksDay, h.goodFriday,
			h.easterMonday, h.mayDay, h.springBank, h.boyne,
			h.lateSummer, h.christmasObs, h.boxingObs,
		}
	}
	// England and Wales share a table.
	return []model.Date{
		h.newYearsObserved, h.goodFriday, h.easterMonday,
		h.mayDay, h.springBank, h.lateSummer,
		h.christmasObs, h.boxingObs,
	}
}

// resolveHoliday maps one symbolic TXC holiday element name to
// concrete dates within [start, end]. Unknown names resolve to nil;
// the caller reports them.
func resolveHoliday(name string, region Region, start, end model.Date) []model.Date {
	dates := []model.Date{}
	for year := start.Year; year <= end.Year; year++ {
		h := holidaysForYear(year)

		var resolved []model.Date
		switch name {
		case "AllBankHolidays":
			resolved = regionHolidays(region, year)
		case "AllHolidaysExceptChristmas":
			for _, d := range regionHolidays(region, year) {
				if d != h.christmasObs && d != h.boxingObs {
					resolved = append(resolved, d)
				}
			}
		case "HolidayMondays":
			for _, d := range regionHolidays(region, year) {
				if d.Weekday() == time.Monday {
					resolved = append(resolved, d)
				}
			}
		case "Christmas":
			resolved = []model.Date{h.christmasDay, h.boxingDay}
		case "DisplacementHolidays":
			if h.christmasObs != h.christmasDay {
				resolved = append(resolved, h.christmasObs)
			}
			if h.boxingObs != h.boxingDay {
				resolved = append(resolved, h.boxingObs)
			}
			if h.newYearsObserved != h.newYearsDay {
				resolved = append(resolved, h.newYearsObserved)
			}
			if region == Scotland && h.jan2Observed != h.jan2Scotland {
				resolved = append(resolved, h.jan2Observed)
			}
		case "EarlyRunOff", "EarlyRunOffDays":
			resolved = []model.Date{h.christmasEve, h.newYearsEve}
		case "NewYearsDay":
			resolved = []model.Date{h.newYearsDay}
		case "NewYearsDayHoliday":
			resolved = []model.Date{h.newYearsObserved}
		case "Jan2ndScotland":
			resolved = []model.Date{h.jan2Scotland}
		case "Jan2ndScotlandHoliday":
			resolved = []model.Date{h.jan2Observed}
		case "StPatricksDay", "StPatricksDayHoliday":
			resolved = []model.Date{h.stPatricksDay}
		case "GoodFriday":
			resolved = []model.Date{h.goodFriday}
		case "EasterMonday":
			resolved = []model.Date{h.easterMonday}
		case "MayDay":
			resolved = []model.Date{h.mayDay}
		case "SpringBank":
			resolved = []model.Date{h.springBank}
		case "BattleOfTheBoyne", "OrangemensDay":
			resolved = []model.Date{h.boyne}
		case "AugustBankHolidayScotland":
			resolved = []model.Date{h.augustScotland}
		case "LateSummerBankHolidayNotScotland":
			resolved = []model.Date{h.lateSummer}
		case "StAndrewsDay":
			resolved = []model.Date{h.stAndrewsDay}
		case "StAndrewsDayHoliday":
			resolved = []model.Date{h.stAndrewsObs}
		case "ChristmasEve":
			resolved = []model.Date{h.christmasEve}
		case "ChristmasDay":
			resolved = []model.Date{h.christmasDay}
		case "ChristmasDayHoliday":
			resolved = []model.Date{h.christmasObs}
		case "BoxingDay":
			resolved = []model.Date{h.boxingDay}
		case "BoxingDayHoliday":
			resolved = []model.Date{h.boxingObs}
		case "NewYearsEve":
			resolved = []model.Date{h.newYearsEve}
		default:
			return nil
		}

		for _, d := range resolved {
			if !d.Before(start) && !d.After(end) {
				dates = append(dates, d)
			}
		}
	}
	return dates
}
