package transit

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/transitgrid/transit/parse"
)

// LoadOptions tune feed loading. The zero value gives a lenient,
// non-round-trip load.
type LoadOptions struct {
	// Strict surfaces the first row-level parse failure instead of
	// collecting it as a warning.
	Strict bool

	// RoundTrip keeps unknown columns and verbatim headers so a
	// later write reproduces them.
	RoundTrip bool
}

func (o LoadOptions) parseOptions() parse.Options {
	return parse.Options{Strict: o.Strict, RoundTrip: o.RoundTrip}
}

// source abstracts a feed container: a directory on disk or a ZIP
// archive held in memory.
type source interface {
	open(name string) (io.ReadCloser, error)
	has(name string) bool
	path() string
}

type dirSource struct {
	dir string
}

func (s *dirSource) open(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.dir, name))
}

func (s *dirSource) has(name string) bool {
	fi, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil && !fi.IsDir()
}

func (s *dirSource) path() string {
	return s.dir
}

type zipSource struct {
	name string
	// Entries keyed by basename. Some producers nest the tables in
	// a subdirectory; the basename is what identifies a table.
	files map[string]*zip.File
}

func newZipSource(name string, buf []byte) (*zipSource, error) {
	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, errors.Wrap(err, "unzipping")
	}

	files := map[string]*zip.File{}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		files[path[len(path)-1]] = f
	}

	return &zipSource{name: name, files: files}, nil
}

func (s *zipSource) open(name string) (io.ReadCloser, error) {
	f, found := s.files[name]
	if !found {
		return nil, errors.Errorf("no such entry: %s", name)
	}
	return f.Open()
}

func (s *zipSource) has(name string) bool {
	_, found := s.files[name]
	return found
}

func (s *zipSource) path() string {
	return s.name
}

// LoadFromDirectory parses a feed laid out as loose files in dir.
func LoadFromDirectory(ctx context.Context, dir string, opts LoadOptions) (*Feed, error) {
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		missing := make([]string, len(requiredTables))
		for i, t := range requiredTables {
			missing[i] = string(t)
		}
		return nil, &FeedFileMissingError{Path: dir, Missing: missing}
	}
	return loadFeed(ctx, &dirSource{dir: dir}, opts)
}

// LoadFromZip parses a zipped feed from disk.
func LoadFromZip(ctx context.Context, path string, opts LoadOptions) (*Feed, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		missing := make([]string, len(requiredTables))
		for i, t := range requiredTables {
			missing[i] = string(t)
		}
		return nil, &FeedFileMissingError{Path: path, Missing: missing}
	}
	src, err := newZipSource(path, buf)
	if err != nil {
		return nil, err
	}
	return loadFeed(ctx, src, opts)
}

// LoadFromZipBytes parses a zipped feed already held in memory.
func LoadFromZipBytes(ctx context.Context, buf []byte, opts LoadOptions) (*Feed, error) {
	src, err := newZipSource("", buf)
	if err != nil {
		return nil, err
	}
	return loadFeed(ctx, src, opts)
}

// checkLayout verifies the required tables are present before any
// parsing starts.
func checkLayout(src source) error {
	missing := []string{}
	for _, t := range requiredTables {
		if !src.has(string(t)) {
			missing = append(missing, string(t))
		}
	}
	if !src.has(string(TableCalendar)) && !src.has(string(TableCalendarDates)) {
		missing = append(missing, string(TableCalendar)+" or "+string(TableCalendarDates))
	}
	if len(missing) > 0 {
		return &FeedFileMissingError{Path: src.path(), Missing: missing}
	}
	return nil
}

func loadFeed(ctx context.Context, src source, opts LoadOptions) (*Feed, error) {
	if err := checkLayout(src); err != nil {
		return nil, err
	}

	feed := &Feed{}
	pOpts := opts.parseOptions()

	load := func(t Table, fn func(io.Reader) (*parse.TableInfo, error)) error {
		if err := ctx.Err(); err != nil {
			return Cancelled(err)
		}
		if !src.has(string(t)) {
			return nil
		}
		rc, err := src.open(string(t))
		if err != nil {
			return errors.Wrapf(err, "opening %s", t)
		}
		defer rc.Close()

		info, err := fn(rc)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", t)
		}
		feed.setTableInfo(t, info)
		feed.Warnings = append(feed.Warnings, info.Warnings...)
		return nil
	}

	steps := []struct {
		table Table
		fn    func(io.Reader) (*parse.TableInfo, error)
	}{
		{TableAgency, func(r io.Reader) (*parse.TableInfo, error) {
			rows, info, err := parse.Agencies(string(TableAgency), r, pOpts)
			feed.Agencies = rows
			return info, err
		}},
		{TableStops, func(r io.Reader) (*parse.TableInfo, error) {
			rows, info, err := parse.Stops(string(TableStops), r, pOpts)
			feed.Stops = rows
			return info, err
		}},
		{TableRoutes, func(r io.Reader) (*parse.TableInfo, error) {
			rows, info, err := parse.Routes(string(TableRoutes), r, pOpts)
			feed.Routes = rows
			return info, err
		}},
		{TableTrips, func(r io.Reader) (*parse.TableInfo, error) {
			rows, info, err := parse.Trips(string(TableTrips), r, pOpts)
			feed.Trips = rows
			return info, err
		}},
		{TableStopTimes, func(r io.Reader) (*parse.TableInfo, error) {
			rows, info, err := parse.StopTimes(string(TableStopTimes), r, pOpts)
			feed.StopTimes = rows
			return info, err
		}},
		{TableCalendar, func(r io.Reader) (*parse.TableInfo, error) {
			rows, info, err := parse.Calendars(string(TableCalendar), r, pOpts)
			feed.Calendars = rows
			return info, err
		}},
		{TableCalendarDates, func(r io.Reader) (*parse.TableInfo, error) {
			rows, info, err := parse.CalendarDates(string(TableCalendarDates), r, pOpts)
			feed.CalendarDates = rows
			return info, err
		}},
		{TableShapes, func(r io.Reader) (*parse.TableInfo, error) {
			rows, info, err := parse.Shapes(string(TableShapes), r, pOpts)
			feed.Shapes = rows
			return info, err
		}},
	}

	for _, step := range steps {
		if err := load(step.table, step.fn); err != nil {
			return nil, err
		}
	}

	return feed, nil
}
