package transit

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"github.com/transitgrid/transit/model"
	"github.com/transitgrid/transit/parse"
)

// lazyTable guards the one-shot materialization of a single table. The
// first caller parses; concurrent callers block on the same guard and
// observe the parsed value. Guards are per-table, so distinct tables
// materialize in parallel.
type lazyTable[T any] struct {
	once   sync.Once
	loaded bool
	rows   []T
	info   *parse.TableInfo
	err    error
}

func (l *lazyTable[T]) get(load func() ([]T, *parse.TableInfo, error)) ([]T, error) {
	l.once.Do(func() {
		l.rows, l.info, l.err = load()
		l.loaded = true
	})
	return l.rows, l.err
}

// LazyFeed holds a feed source without parsing table bodies. Counts
// stream rows without building records; the first access to a table's
// records parses and caches it.
type LazyFeed struct {
	src  source
	opts LoadOptions

	agencies      lazyTable[model.Agency]
	stops         lazyTable[model.Stop]
	routes        lazyTable[model.Route]
	trips         lazyTable[model.Trip]
	stopTimes     lazyTable[model.StopTime]
	calendars     lazyTable[model.Calendar]
	calendarDates lazyTable[model.CalendarDate]
	shapes        lazyTable[model.Shape]

	countMu sync.Mutex
	counts  map[Table]int
}

// LazyFromDirectory opens a feed directory, verifying layout but
// parsing nothing.
func LazyFromDirectory(dir string, opts LoadOptions) (*LazyFeed, error) {
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		missing := make([]string, len(requiredTables))
		for i, t := range requiredTables {
			missing[i] = string(t)
		}
		return nil, &FeedFileMissingError{Path: dir, Missing: missing}
	}
	src := &dirSource{dir: dir}
	if err := checkLayout(src); err != nil {
		return nil, err
	}
	return &LazyFeed{src: src, opts: opts, counts: map[Table]int{}}, nil
}

// LazyFromZip opens a zipped feed from disk, verifying layout but
// parsing nothing.
func LazyFromZip(path string, opts LoadOptions) (*LazyFeed, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		missing := make([]string, len(requiredTables))
		for i, t := range requiredTables {
			missing[i] = string(t)
		}
		return nil, &FeedFileMissingError{Path: path, Missing: missing}
	}
	return LazyFromZipBytes(buf, opts)
}

// LazyFromZipBytes opens an in-memory zipped feed.
func LazyFromZipBytes(buf []byte, opts LoadOptions) (*LazyFeed, error) {
	src, err := newZipSource("", buf)
	if err != nil {
		return nil, err
	}
	if err := checkLayout(src); err != nil {
		return nil, err
	}
	return &LazyFeed{src: src, opts: opts, counts: map[Table]int{}}, nil
}

func lazyLoad[T any](f *LazyFeed, t Table, l *lazyTable[T],
	fn func(string, io.Reader, parse.Options) ([]T, *parse.TableInfo, error)) ([]T, error) {

	return l.get(func() ([]T, *parse.TableInfo, error) {
		if !f.src.has(string(t)) {
			return nil, &parse.TableInfo{File: string(t)}, nil
		}
		rc, err := f.src.open(string(t))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "opening %s", t)
		}
		defer rc.Close()
		return fn(string(t), rc, f.opts.parseOptions())
	})
}

func (f *LazyFeed) Agencies() ([]model.Agency, error) {
	return lazyLoad(f, TableAgency, &f.agencies, parse.Agencies)
}

func (f *LazyFeed) Stops() ([]model.Stop, error) {
	return lazyLoad(f, TableStops, &f.stops, parse.Stops)
}

func (f *LazyFeed) Routes() ([]model.Route, error) {
	return lazyLoad(f, TableRoutes, &f.routes, parse.Routes)
}

func (f *LazyFeed) Trips() ([]model.Trip, error) {
	return lazyLoad(f, TableTrips, &f.trips, parse.Trips)
}

func (f *LazyFeed) StopTimes() ([]model.StopTime, error) {
	return lazyLoad(f, TableStopTimes, &f.stopTimes, parse.StopTimes)
}

func (f *LazyFeed) Calendars() ([]model.Calendar, error) {
	return lazyLoad(f, TableCalendar, &f.calendars, parse.Calendars)
}

func (f *LazyFeed) CalendarDates() ([]model.CalendarDate, error) {
	return lazyLoad(f, TableCalendarDates, &f.calendarDates, parse.CalendarDates)
}

func (f *LazyFeed) Shapes() ([]model.Shape, error) {
	return lazyLoad(f, TableShapes, &f.shapes, parse.Shapes)
}

// Count returns the record count of a table without materializing it.
// Rows are streamed and the result cached; shapes count distinct shape
// ids so the figure matches Feed.Count. A missing optional table counts
// zero.
func (f *LazyFeed) Count(t Table) (int, error) {
	f.countMu.Lock()
	defer f.countMu.Unlock()

	if n, found := f.counts[t]; found {
		return n, nil
	}
	if !f.src.has(string(t)) {
		f.counts[t] = 0
		return 0, nil
	}

	rc, err := f.src.open(string(t))
	if err != nil {
		return 0, errors.Wrapf(err, "opening %s", t)
	}
	defer rc.Close()

	var n int
	if t == TableShapes {
		n, err = countDistinctShapes(rc)
	} else {
		n, err = parse.CountRows(rc)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "counting %s", t)
	}

	f.counts[t] = n
	return n, nil
}

// countDistinctShapes streams shapes.txt counting distinct shape_id
// values without building point records.
func countDistinctShapes(data io.Reader) (int, error) {
	r := csv.NewReader(bom.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	idCol := -1
	arity := -1
	ids := map[string]bool{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return len(ids), nil
		}
		if err != nil {
			return 0, err
		}
		if arity == -1 {
			arity = len(rec)
			for i, h := range rec {
				if strings.ToLower(strings.TrimSpace(h)) == "shape_id" {
					idCol = i
				}
			}
			continue
		}
		if len(rec) != arity || idCol < 0 || idCol >= len(rec) {
			continue
		}
		ids[rec[idCol]] = true
	}
}

// Feed materializes every table and returns the assembled Feed. The
// context is observed between tables.
func (f *LazyFeed) Feed(ctx context.Context) (*Feed, error) {
	feed := &Feed{}

	steps := []struct {
		table Table
		fn    func() (*parse.TableInfo, error)
	}{
		{TableAgency, func() (*parse.TableInfo, error) {
			rows, err := f.Agencies()
			feed.Agencies = rows
			return f.agencies.info, err
		}},
		{TableStops, func() (*parse.TableInfo, error) {
			rows, err := f.Stops()
			feed.Stops = rows
			return f.stops.info, err
		}},
		{TableRoutes, func() (*parse.TableInfo, error) {
			rows, err := f.Routes()
			feed.Routes = rows
			return f.routes.info, err
		}},
		{TableTrips, func() (*parse.TableInfo, error) {
			rows, err := f.Trips()
			feed.Trips = rows
			return f.trips.info, err
		}},
		{TableStopTimes, func() (*parse.TableInfo, error) {
			rows, err := f.StopTimes()
			feed.StopTimes = rows
			return f.stopTimes.info, err
		}},
		{TableCalendar, func() (*parse.TableInfo, error) {
			rows, err := f.Calendars()
			feed.Calendars = rows
			return f.calendars.info, err
		}},
		{TableCalendarDates, func() (*parse.TableInfo, error) {
			rows, err := f.CalendarDates()
			feed.CalendarDates = rows
			return f.calendarDates.info, err
		}},
		{TableShapes, func() (*parse.TableInfo, error) {
			rows, err := f.Shapes()
			feed.Shapes = rows
			return f.shapes.info, err
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, Cancelled(err)
		}
		info, err := step.fn()
		if err != nil {
			return nil, err
		}
		if info != nil {
			feed.setTableInfo(step.table, info)
			feed.Warnings = append(feed.Warnings, info.Warnings...)
		}
	}

	return feed, nil
}

// WriteZipBytes serializes the lazy feed. Materialized tables are
// re-encoded; untouched tables are copied byte-for-byte from the
// source. Mutating writes must not race table accessors.
func (f *LazyFeed) WriteZipBytes() ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	write := func(t Table, data []byte, raw io.ReadCloser) error {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     string(t),
			Method:   zip.Deflate,
			Modified: zipEpoch,
		})
		if err != nil {
			return errors.Wrapf(err, "creating zip entry %s", t)
		}
		if raw != nil {
			return errors.Wrapf(copyTo(w, raw), "copying %s", t)
		}
		_, err = w.Write(data)
		return errors.Wrapf(err, "writing %s", t)
	}

	for _, t := range tableOrder {
		materialized, feed := f.materializedTable(t)
		if materialized && !f.src.has(string(t)) && feed.Count(t) == 0 {
			// Absent in the source and still empty: nothing to emit.
			materialized = false
		}
		if materialized {
			data, err := feed.encodeTable(t)
			if err != nil {
				return nil, err
			}
			if err := write(t, data, nil); err != nil {
				return nil, err
			}
			continue
		}
		if !f.src.has(string(t)) {
			continue
		}
		rc, err := f.src.open(string(t))
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", t)
		}
		if err := write(t, nil, rc); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "closing zip")
	}
	return buf.Bytes(), nil
}

// materializedTable reports whether t has been parsed, and if so hands
// back a shallow Feed carrying just that table for encoding.
func (f *LazyFeed) materializedTable(t Table) (bool, *Feed) {
	feed := &Feed{}
	switch t {
	case TableAgency:
		if !f.agencies.loaded {
			return false, nil
		}
		feed.Agencies = f.agencies.rows
		feed.setTableInfo(t, f.agencies.info)
	case TableStops:
		if !f.stops.loaded {
			return false, nil
		}
		feed.Stops = f.stops.rows
		feed.setTableInfo(t, f.stops.info)
	case TableRoutes:
		if !f.routes.loaded {
			return false, nil
		}
		feed.Routes = f.routes.rows
		feed.setTableInfo(t, f.routes.info)
	case TableTrips:
		if !f.trips.loaded {
			return false, nil
		}
		feed.Trips = f.trips.rows
		feed.setTableInfo(t, f.trips.info)
	case TableStopTimes:
		if !f.stopTimes.loaded {
			return false, nil
		}
		feed.StopTimes = f.stopTimes.rows
		feed.setTableInfo(t, f.stopTimes.info)
	case TableCalendar:
		if !f.calendars.loaded {
			return false, nil
		}
		feed.Calendars = f.calendars.rows
		feed.setTableInfo(t, f.calendars.info)
	case TableCalendarDates:
		if !f.calendarDates.loaded {
			return false, nil
		}
		feed.CalendarDates = f.calendarDates.rows
		feed.setTableInfo(t, f.calendarDates.info)
	case TableShapes:
		if !f.shapes.loaded {
			return false, nil
		}
		feed.Shapes = f.shapes.rows
		feed.setTableInfo(t, f.shapes.info)
	default:
		return false, nil
	}
	return true, feed
}
