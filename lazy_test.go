package transit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	transit "github.com/transitgrid/transit"
	"github.com/transitgrid/transit/testutil"
)

func lazyFiles() map[string][]string {
	files := minimalFiles()
	files["shapes.txt"] = []string{
		"shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence",
		"sh1,0.0,0.0,1",
		"sh1,0.1,0.1,2",
		"sh2,1.0,1.0,1",
		"sh2,1.1,1.1,2",
	}
	return files
}

func TestLazyCounts(t *testing.T) {
	lazy, err := transit.LazyFromZipBytes(testutil.BuildZip(t, lazyFiles()), transit.LoadOptions{})
	require.NoError(t, err)

	for _, tc := range []struct {
		table transit.Table
		count int
	}{
		{transit.TableAgency, 1},
		{transit.TableStops, 1},
		{transit.TableRoutes, 1},
		{transit.TableTrips, 1},
		{transit.TableStopTimes, 2},
		{transit.TableCalendar, 1},
		{transit.TableCalendarDates, 0},
		// Shapes count distinct ids, not points.
		{transit.TableShapes, 2},
	} {
		n, err := lazy.Count(tc.table)
		require.NoError(t, err)
		assert.Equal(t, tc.count, n, "count for %s", tc.table)
	}

	// Counting again hits the cache.
	n, err := lazy.Count(transit.TableStopTimes)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLazyMaterialization(t *testing.T) {
	lazy, err := transit.LazyFromZipBytes(testutil.BuildZip(t, lazyFiles()), transit.LoadOptions{})
	require.NoError(t, err)

	stops, err := lazy.Stops()
	require.NoError(t, err)
	require.Len(t, stops, 1)

	// Repeated access observes the same parse.
	again, err := lazy.Stops()
	require.NoError(t, err)
	assert.Equal(t, stops, again)

	feed, err := lazy.Feed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, feed.Count(transit.TableStopTimes))
	assert.Equal(t, 2, feed.Count(transit.TableShapes))
}

func TestLazyMissingRequired(t *testing.T) {
	files := lazyFiles()
	delete(files, "trips.txt")

	_, err := transit.LazyFromZipBytes(testutil.BuildZip(t, files), transit.LoadOptions{})
	require.Error(t, err)

	var missing *transit.FeedFileMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"trips.txt"}, missing.Missing)
}

func TestLazyWritePreservesUntouchedTables(t *testing.T) {
	src := testutil.BuildZip(t, lazyFiles())

	lazy, err := transit.LazyFromZipBytes(src, transit.LoadOptions{})
	require.NoError(t, err)

	// Touch one table only.
	_, err = lazy.Agencies()
	require.NoError(t, err)

	out, err := lazy.WriteZipBytes()
	require.NoError(t, err)

	// The output reloads with identical content everywhere.
	reloaded, err := transit.LoadFromZipBytes(context.Background(), out, transit.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Count(transit.TableStopTimes))
	assert.Equal(t, 2, reloaded.Count(transit.TableShapes))
	assert.Equal(t, 1, reloaded.Count(transit.TableAgency))
}
