package transit

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/transitgrid/transit/model"
)

// zipEpoch is the fixed modification timestamp stamped on every archive
// entry, so identical feeds serialize to identical bytes.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

type column struct {
	name     string
	optional bool
	value    func(i int) string
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func weekdayFlag(mask int8, day time.Weekday) string {
	if mask&(1<<day) != 0 {
		return "1"
	}
	return "0"
}

// columnsFor returns the full column schema of a table plus the record
// count. Shapes flatten to one row per point.
func (f *Feed) columnsFor(t Table) ([]column, int, error) {
	switch t {
	case TableAgency:
		a := f.Agencies
		return []column{
			{"agency_id", true, func(i int) string { return a[i].ID }},
			{"agency_name", false, func(i int) string { return a[i].Name }},
			{"agency_url", false, func(i int) string { return a[i].URL }},
			{"agency_timezone", false, func(i int) string { return a[i].Timezone }},
		}, len(a), nil

	case TableStops:
		s := f.Stops
		return []column{
			{"stop_id", false, func(i int) string { return s[i].ID }},
			{"stop_code", true, func(i int) string { return s[i].Code }},
			{"stop_name", false, func(i int) string { return s[i].Name }},
			{"stop_desc", true, func(i int) string { return s[i].Desc }},
			{"stop_lat", false, func(i int) string { return formatCoord(s[i].Lat) }},
			{"stop_lon", false, func(i int) string { return formatCoord(s[i].Lon) }},
		}, len(s), nil

	case TableRoutes:
		r := f.Routes
		return []column{
			{"route_id", false, func(i int) string { return r[i].ID }},
			{"agency_id", true, func(i int) string { return r[i].AgencyID }},
			{"route_short_name", true, func(i int) string { return r[i].ShortName }},
			{"route_long_name", true, func(i int) string { return r[i].LongName }},
			{"route_desc", true, func(i int) string { return r[i].Desc }},
			{"route_type", false, func(i int) string { return strconv.Itoa(int(r[i].Type)) }},
		}, len(r), nil

	case TableTrips:
		tr := f.Trips
		return []column{
			{"route_id", false, func(i int) string { return tr[i].RouteID }},
			{"service_id", false, func(i int) string { return tr[i].ServiceID }},
			{"trip_id", false, func(i int) string { return tr[i].ID }},
			{"trip_headsign", true, func(i int) string { return tr[i].Headsign }},
			{"block_id", true, func(i int) string { return tr[i].BlockID }},
			{"shape_id", true, func(i int) string { return tr[i].ShapeID }},
		}, len(tr), nil

	case TableStopTimes:
		st := f.StopTimes
		return []column{
			{"trip_id", false, func(i int) string { return st[i].TripID }},
			{"arrival_time", false, func(i int) string { return st[i].Arrival.String() }},
			{"departure_time", false, func(i int) string { return st[i].Departure.String() }},
			{"stop_id", false, func(i int) string { return st[i].StopID }},
			{"stop_sequence", false, func(i int) string { return strconv.FormatUint(uint64(st[i].StopSequence), 10) }},
			{"stop_headsign", true, func(i int) string { return st[i].Headsign }},
		}, len(st), nil

	case TableCalendar:
		c := f.Calendars
		return []column{
			{"service_id", false, func(i int) string { return c[i].ServiceID }},
			{"monday", false, func(i int) string { return weekdayFlag(c[i].Weekday, time.Monday) }},
			{"tuesday", false, func(i int) string { return weekdayFlag(c[i].Weekday, time.Tuesday) }},
			{"wednesday", false, func(i int) string { return weekdayFlag(c[i].Weekday, time.Wednesday) }},
			{"thursday", false, func(i int) string { return weekdayFlag(c[i].Weekday, time.Thursday) }},
			{"friday", false, func(i int) string { return weekdayFlag(c[i].Weekday, time.Friday) }},
			{"saturday", false, func(i int) string { return weekdayFlag(c[i].Weekday, time.Saturday) }},
			{"sunday", false, func(i int) string { return weekdayFlag(c[i].Weekday, time.Sunday) }},
			{"start_date", false, func(i int) string { return c[i].StartDate }},
			{"end_date", false, func(i int) string { return c[i].EndDate }},
		}, len(c), nil

	case TableCalendarDates:
		cd := f.CalendarDates
		return []column{
			{"service_id", false, func(i int) string { return cd[i].ServiceID }},
			{"date", false, func(i int) string { return cd[i].Date }},
			{"exception_type", false, func(i int) string { return strconv.Itoa(int(cd[i].ExceptionType)) }},
		}, len(cd), nil

	case TableShapes:
		type flatPoint struct {
			shapeID string
			pt      model.ShapePoint
		}
		flat := []flatPoint{}
		for _, sh := range f.Shapes {
			for _, pt := range sh.Points {
				flat = append(flat, flatPoint{sh.ID, pt})
			}
		}
		return []column{
			{"shape_id", false, func(i int) string { return flat[i].shapeID }},
			{"shape_pt_lat", false, func(i int) string { return formatCoord(flat[i].pt.Lat) }},
			{"shape_pt_lon", false, func(i int) string { return formatCoord(flat[i].pt.Lon) }},
			{"shape_pt_sequence", false, func(i int) string { return strconv.FormatUint(uint64(flat[i].pt.Sequence), 10) }},
		}, len(flat), nil
	}

	return nil, 0, fmt.Errorf("unknown table '%s'", t)
}

// extrasFor returns the per-record unknown-column accessor for a table.
// Only populated after a round-trip load; nil otherwise.
func (f *Feed) extrasFor(t Table) (names []string, get func(i int) map[string]string) {
	info := f.tableInfo(t)
	if info == nil || len(info.ExtraColumns) == 0 {
		return nil, nil
	}
	names = info.ExtraColumns

	switch t {
	case TableAgency:
		get = func(i int) map[string]string { return f.Agencies[i].Extras }
	case TableStops:
		get = func(i int) map[string]string { return f.Stops[i].Extras }
	case TableRoutes:
		get = func(i int) map[string]string { return f.Routes[i].Extras }
	case TableTrips:
		get = func(i int) map[string]string { return f.Trips[i].Extras }
	case TableStopTimes:
		get = func(i int) map[string]string { return f.StopTimes[i].Extras }
	case TableCalendar:
		get = func(i int) map[string]string { return f.Calendars[i].Extras }
	case TableCalendarDates:
		get = func(i int) map[string]string { return f.CalendarDates[i].Extras }
	}
	return names, get
}

// stopTimeOrder yields stop_time indices grouped by trip in first-seen
// order, each group sorted by stop_sequence. This is the emission order
// for writes.
func stopTimeOrder(f *Feed) []int {
	tripOrder := []string{}
	byTrip := map[string][]int{}
	for i, st := range f.StopTimes {
		if _, found := byTrip[st.TripID]; !found {
			tripOrder = append(tripOrder, st.TripID)
		}
		byTrip[st.TripID] = append(byTrip[st.TripID], i)
	}

	order := make([]int, 0, len(f.StopTimes))
	for _, tripID := range tripOrder {
		idx := byTrip[tripID]
		sort.SliceStable(idx, func(a, b int) bool {
			return f.StopTimes[idx[a]].StopSequence < f.StopTimes[idx[b]].StopSequence
		})
		order = append(order, idx...)
	}
	return order
}

// encodeTable serializes one table. Optional columns are dropped when
// every record leaves them empty; unknown columns from a round-trip
// load are appended with their verbatim names.
func (f *Feed) encodeTable(t Table) ([]byte, error) {
	cols, n, err := f.columnsFor(t)
	if err != nil {
		return nil, err
	}

	var order []int
	if t == TableStopTimes {
		order = stopTimeOrder(f)
	} else {
		order = make([]int, n)
		for i := range order {
			order[i] = i
		}
	}

	kept := []column{}
	for _, c := range cols {
		if !c.optional {
			kept = append(kept, c)
			continue
		}
		for _, i := range order {
			if c.value(i) != "" {
				kept = append(kept, c)
				break
			}
		}
	}

	extraNames, extras := f.extrasFor(t)

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	header := make([]string, 0, len(kept)+len(extraNames))
	for _, c := range kept {
		header = append(header, c.name)
	}
	header = append(header, extraNames...)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	row := make([]string, len(header))
	for _, i := range order {
		row = row[:0]
		for _, c := range kept {
			row = append(row, c.value(i))
		}
		if extras != nil {
			m := extras(i)
			for _, name := range extraNames {
				row = append(row, m[name])
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// writeTables reports which tables a write emits: the five required
// ones always, the rest only when populated. A feed with no
// calendar_dates rows still gets a calendar table (header-only when it
// too is empty) so the output reloads.
func (f *Feed) writeTables() []Table {
	tables := []Table{}
	for _, t := range tableOrder {
		switch t {
		case TableCalendar:
			if len(f.Calendars) > 0 || len(f.CalendarDates) == 0 {
				tables = append(tables, t)
			}
		case TableCalendarDates:
			if len(f.CalendarDates) > 0 {
				tables = append(tables, t)
			}
		case TableShapes:
			if len(f.Shapes) > 0 {
				tables = append(tables, t)
			}
		default:
			tables = append(tables, t)
		}
	}
	return tables
}

// WriteToDirectory serializes the feed as loose files under dir,
// creating it if needed.
func WriteToDirectory(f *Feed, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating feed directory")
	}
	for _, t := range f.writeTables() {
		buf, err := f.encodeTable(t)
		if err != nil {
			return errors.Wrapf(err, "encoding %s", t)
		}
		if err := os.WriteFile(filepath.Join(dir, string(t)), buf, 0o644); err != nil {
			return errors.Wrapf(err, "writing %s", t)
		}
	}
	return nil
}

// WriteZipBytes serializes the feed as a ZIP archive. Entry order and
// timestamps are fixed, and identical feeds produce identical bytes.
func WriteZipBytes(f *Feed) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	for _, t := range f.writeTables() {
		data, err := f.encodeTable(t)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding %s", t)
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     string(t),
			Method:   zip.Deflate,
			Modified: zipEpoch,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "creating zip entry %s", t)
		}
		if _, err := w.Write(data); err != nil {
			return nil, errors.Wrapf(err, "writing zip entry %s", t)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "closing zip")
	}
	return buf.Bytes(), nil
}

// WriteToZip serializes the feed as a ZIP archive at path.
func WriteToZip(f *Feed, path string) error {
	buf, err := WriteZipBytes(f)
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, buf, 0o644), "writing %s", path)
}

// copyTo streams one raw table without decoding it, used by lazy writes
// for tables that were never materialized.
func copyTo(w io.Writer, rc io.ReadCloser) error {
	defer rc.Close()
	_, err := io.Copy(w, rc)
	return err
}
