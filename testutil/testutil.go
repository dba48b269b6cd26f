package testutil

// Helpers for building feeds and archives in tests.

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	transit "github.com/transitgrid/transit"
)

// BuildZip assembles an in-memory ZIP from filename to line-list.
func BuildZip(t testing.TB, files map[string][]string) []byte {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for filename, content := range files {
		f, err := w.Create(filename)
		require.NoError(t, err)
		_, err = f.Write([]byte(strings.Join(content, "\n")))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return buf.Bytes()
}

// FillRequired pads the file map with header-only versions of the
// missing required tables (agency gets one default row) so small
// fixtures stay small.
func FillRequired(files map[string][]string) map[string][]string {
	if files["agency.txt"] == nil {
		files["agency.txt"] = []string{
			"agency_id,agency_timezone,agency_name,agency_url",
			"a,UTC,FooAgency,http://example.com",
		}
	}
	if files["calendar.txt"] == nil && files["calendar_dates.txt"] == nil {
		files["calendar.txt"] = []string{"service_id,start_date,end_date"}
	}
	if files["routes.txt"] == nil {
		files["routes.txt"] = []string{"route_id,route_short_name,route_type"}
	}
	if files["trips.txt"] == nil {
		files["trips.txt"] = []string{"trip_id,route_id,service_id"}
	}
	if files["stops.txt"] == nil {
		files["stops.txt"] = []string{"stop_id,stop_name,stop_lat,stop_lon"}
	}
	if files["stop_times.txt"] == nil {
		files["stop_times.txt"] = []string{"trip_id,stop_id,stop_sequence,arrival_time,departure_time"}
	}
	return files
}

// BuildFeed loads a feed from inline table content, padding required
// tables as needed.
func BuildFeed(t testing.TB, files map[string][]string) *transit.Feed {
	buf := BuildZip(t, FillRequired(files))
	feed, err := transit.LoadFromZipBytes(context.Background(), buf, transit.LoadOptions{})
	require.NoError(t, err)
	return feed
}

// WriteDir materializes inline table content as loose files in a fresh
// temp directory.
func WriteDir(t testing.TB, files map[string][]string) string {
	dir := t.TempDir()
	for filename, content := range files {
		err := os.WriteFile(filepath.Join(dir, filename), []byte(strings.Join(content, "\n")), 0o644)
		require.NoError(t, err)
	}
	return dir
}
