package convert_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	transit "github.com/transitgrid/transit"
	"github.com/transitgrid/transit/convert"
	"github.com/transitgrid/transit/filter"
	"github.com/transitgrid/transit/model"
	"github.com/transitgrid/transit/txc"
)

const minimalTXC = `<?xml version="1.0" encoding="UTF-8"?>
<TransXChange xmlns="http://www.transxchange.org.uk/" SchemaVersion="2.5">
  <StopPoints>
    <AnnotatedStopPointRef>
      <StopPointRef>ATCO1</StopPointRef><CommonName>First</CommonName>
      <Location><Latitude>51.50</Latitude><Longitude>-0.10</Longitude></Location>
    </AnnotatedStopPointRef>
    <AnnotatedStopPointRef>
      <StopPointRef>ATCO2</StopPointRef><CommonName>Second</CommonName>
      <Location><Latitude>51.55</Latitude><Longitude>-0.12</Longitude></Location>
    </AnnotatedStopPointRef>
  </StopPoints>
  <RouteSections>
    <RouteSection id="RS1">
      <RouteLink id="RL1">
        <From><StopPointRef>ATCO1</StopPointRef></From>
        <To><StopPointRef>ATCO2</StopPointRef></To>
        <Track><Mapping>
          <Location><Latitude>51.50</Latitude><Longitude>-0.10</Longitude></Location>
          <Location><Latitude>51.52</Latitude><Longitude>-0.11</Longitude></Location>
          <Location><Latitude>51.55</Latitude><Longitude>-0.12</Longitude></Location>
        </Mapping></Track>
      </RouteLink>
    </RouteSection>
  </RouteSections>
  <Routes>
    <Route id="R1"><RouteSectionRef>RS1</RouteSectionRef></Route>
  </Routes>
  <JourneyPatternSections>
    <JourneyPatternSection id="JPS1">
      <JourneyPatternTimingLink id="JPTL1">
        <From SequenceNumber="1"><StopPointRef>ATCO1</StopPointRef></From>
        <To SequenceNumber="2"><StopPointRef>ATCO2</StopPointRef></To>
        <RunTime>PT5M</RunTime>
      </JourneyPatternTimingLink>
    </JourneyPatternSection>
  </JourneyPatternSections>
  <Operators>
    <Operator id="O1">
      <OperatorCode>OP1</OperatorCode>
      <OperatorShortName>Acme Buses</OperatorShortName>
    </Operator>
  </Operators>
  <Services>
    <Service>
      <ServiceCode>SVC1</ServiceCode>
      <Lines><Line id="L1"><LineName>L1</LineName></Line></Lines>
      <OperatingPeriod>
        <StartDate>2025-01-01</StartDate><EndDate>2025-12-31</EndDate>
      </OperatingPeriod>
      <OperatingProfile>
        <RegularDayType><DaysOfWeek><MondayToFriday/></DaysOfWeek></RegularDayType>
      </OperatingProfile>
      <RegisteredOperatorRef>O1</RegisteredOperatorRef>
      <Mode>bus</Mode>
      <Description>Town circular</Description>
      <StandardService>
        <Origin>First</Origin><Destination>Second</Destination>
        <JourneyPattern id="JP1">
          <RouteRef>R1</RouteRef>
          <JourneyPatternSectionRefs>JPS1</JourneyPatternSectionRefs>
        </JourneyPattern>
      </StandardService>
    </Service>
  </Services>
  <VehicleJourneys>
    <VehicleJourney>
      <VehicleJourneyCode>VJ1</VehicleJourneyCode>
      <ServiceRef>SVC1</ServiceRef>
      <LineRef>L1</LineRef>
      <JourneyPatternRef>JP1</JourneyPatternRef>
      <DepartureTime>09:00:00</DepartureTime>
    </VehicleJourney>
  </VehicleJourneys>
</TransXChange>`

func parseDoc(t *testing.T, content, name string) *txc.Document {
	doc := txc.ParseBytes([]byte(content))
	require.Empty(t, doc.Diagnostics)
	doc.Name = name
	return doc
}

func TestConvertMinimal(t *testing.T) {
	result, err := convert.Convert(parseDoc(t, minimalTXC, "minimal.xml"), convert.Options{})
	require.NoError(t, err)
	require.Empty(t, result.Warnings)

	feed := result.Feed

	require.Len(t, feed.Agencies, 1)
	assert.Equal(t, "OP1", feed.Agencies[0].ID)
	assert.Equal(t, "Acme Buses", feed.Agencies[0].Name)
	assert.Equal(t, "Europe/London", feed.Agencies[0].Timezone)

	require.Len(t, feed.Routes, 1)
	assert.Equal(t, "SVC1:L1", feed.Routes[0].ID)
	assert.Equal(t, "L1", feed.Routes[0].ShortName)
	assert.Equal(t, "Town circular", feed.Routes[0].LongName)
	assert.Equal(t, model.RouteTypeBus, feed.Routes[0].Type)
	assert.Equal(t, "OP1", feed.Routes[0].AgencyID)

	require.Len(t, feed.Stops, 2)
	assert.Equal(t, "ATCO1", feed.Stops[0].ID)
	assert.Equal(t, 51.50, feed.Stops[0].Lat)

	require.Len(t, feed.Trips, 1)
	assert.Equal(t, "VJ1", feed.Trips[0].ID)
	assert.Equal(t, "SVC1:L1", feed.Trips[0].RouteID)
	assert.Equal(t, "Second", feed.Trips[0].Headsign)

	require.Len(t, feed.StopTimes, 2)
	assert.Equal(t, "09:00:00", feed.StopTimes[0].Departure.String())
	assert.Equal(t, "09:05:00", feed.StopTimes[1].Arrival.String())
	assert.Equal(t, uint32(1), feed.StopTimes[0].StopSequence)
	assert.Equal(t, uint32(2), feed.StopTimes[1].StopSequence)

	require.Len(t, feed.Calendars, 1)
	cal := feed.Calendars[0]
	assert.Equal(t, "20250101", cal.StartDate)
	assert.Equal(t, "20251231", cal.EndDate)
	expected := int8(1<<time.Monday | 1<<time.Tuesday | 1<<time.Wednesday |
		1<<time.Thursday | 1<<time.Friday)
	assert.Equal(t, expected, cal.Weekday)
	assert.Equal(t, cal.ServiceID, feed.Trips[0].ServiceID)

	assert.Empty(t, feed.CalendarDates)
	assert.Empty(t, feed.Shapes)

	assert.Equal(t, convert.Stats{
		Agencies:  1,
		Routes:    1,
		Stops:     2,
		Trips:     1,
		StopTimes: 2,
		Calendars: 1,
	}, result.Stats)

	require.NoError(t, feed.Validate())
}

func TestConvertShapes(t *testing.T) {
	result, err := convert.Convert(parseDoc(t, minimalTXC, "minimal.xml"), convert.Options{IncludeShapes: true})
	require.NoError(t, err)

	require.Len(t, result.Feed.Shapes, 1)
	shape := result.Feed.Shapes[0]
	assert.Equal(t, "JP1", shape.ID)
	require.Len(t, shape.Points, 3)
	assert.Equal(t, uint32(1), shape.Points[0].Sequence)
	assert.Equal(t, shape.ID, result.Feed.Trips[0].ShapeID)
	assert.Equal(t, 1, result.Stats.ShapesGenerated)
}

func TestConvertDeterminism(t *testing.T) {
	first, err := convert.Convert(parseDoc(t, minimalTXC, "minimal.xml"), convert.Options{IncludeShapes: true})
	require.NoError(t, err)
	second, err := convert.Convert(parseDoc(t, minimalTXC, "minimal.xml"), convert.Options{IncludeShapes: true})
	require.NoError(t, err)

	a, err := transit.WriteZipBytes(first.Feed)
	require.NoError(t, err)
	b, err := transit.WriteZipBytes(second.Feed)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestConvertBatchOfOneEqualsConvert(t *testing.T) {
	single, err := convert.Convert(parseDoc(t, minimalTXC, "minimal.xml"), convert.Options{})
	require.NoError(t, err)

	batch, err := convert.ConvertBatch(context.Background(),
		[]*txc.Document{parseDoc(t, minimalTXC, "minimal.xml")}, convert.Options{})
	require.NoError(t, err)

	a, err := transit.WriteZipBytes(single.Feed)
	require.NoError(t, err)
	b, err := transit.WriteZipBytes(batch.Feed)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestConvertBatchMerges(t *testing.T) {
	second := strings.Replace(minimalTXC, "VJ1", "VJ9", 1)

	result, err := convert.ConvertBatch(context.Background(), []*txc.Document{
		parseDoc(t, minimalTXC, "one.xml"),
		parseDoc(t, second, "two.xml"),
	}, convert.Options{})
	require.NoError(t, err)

	feed := result.Feed

	// Shared identities collapse; trips stay distinct, prefixed by
	// a per-document discriminator.
	assert.Len(t, feed.Agencies, 1)
	assert.Len(t, feed.Routes, 1)
	assert.Len(t, feed.Stops, 2)
	require.Len(t, feed.Trips, 2)
	assert.NotEqual(t, feed.Trips[0].ID, feed.Trips[1].ID)
	assert.True(t, strings.HasSuffix(feed.Trips[0].ID, ":VJ1"))
	assert.True(t, strings.HasSuffix(feed.Trips[1].ID, ":VJ9"))

	// Identical operating profiles share one minted service.
	require.Len(t, feed.Calendars, 1)
	assert.Equal(t, feed.Trips[0].ServiceID, feed.Trips[1].ServiceID)

	assert.Len(t, feed.StopTimes, 4)
	require.NoError(t, feed.Validate())
}

func TestConvertBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := convert.ConvertBatch(ctx, []*txc.Document{parseDoc(t, minimalTXC, "one.xml")}, convert.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, transit.ErrCancelled)
}

func TestConvertBankHolidayNonOperation(t *testing.T) {
	content := strings.Replace(minimalTXC,
		"</RegularDayType>",
		"</RegularDayType><BankHolidayOperation><DaysOfNonOperation><AllBankHolidays/></DaysOfNonOperation></BankHolidayOperation>",
		1)

	result, err := convert.Convert(parseDoc(t, content, "bh.xml"), convert.Options{})
	require.NoError(t, err)

	// Every English 2025 bank holiday lands on a weekday, so each
	// becomes a removal exception.
	assert.Len(t, result.Feed.CalendarDates, 8)
	for _, cd := range result.Feed.CalendarDates {
		assert.Equal(t, model.ExceptionRemoved, cd.ExceptionType)
	}
	assert.Equal(t, 8, result.Stats.CalendarExceptions)
}

func TestConvertJourneyProfileOverride(t *testing.T) {
	content := strings.Replace(minimalTXC,
		"</VehicleJourneys>",
		`<VehicleJourney>
      <VehicleJourneyCode>VJ2</VehicleJourneyCode>
      <OperatingProfile><RegularDayType><DaysOfWeek><Saturday/></DaysOfWeek></RegularDayType></OperatingProfile>
      <ServiceRef>SVC1</ServiceRef>
      <LineRef>L1</LineRef>
      <JourneyPatternRef>JP1</JourneyPatternRef>
      <DepartureTime>10:00:00</DepartureTime>
    </VehicleJourney></VehicleJourneys>`,
		1)

	result, err := convert.Convert(parseDoc(t, content, "override.xml"), convert.Options{})
	require.NoError(t, err)

	feed := result.Feed
	require.Len(t, feed.Trips, 2)
	require.Len(t, feed.Calendars, 2)
	assert.NotEqual(t, feed.Trips[0].ServiceID, feed.Trips[1].ServiceID)

	// The override journey runs Saturdays only.
	var saturday model.Calendar
	for _, c := range feed.Calendars {
		if c.ServiceID == feed.Trips[1].ServiceID {
			saturday = c
		}
	}
	assert.Equal(t, int8(1<<time.Saturday), saturday.Weekday)
}

func TestConvertMissingRunTime(t *testing.T) {
	content := strings.Replace(minimalTXC, "<RunTime>PT5M</RunTime>", "", 1)

	result, err := convert.Convert(parseDoc(t, content, "norun.xml"), convert.Options{})
	require.NoError(t, err)

	// A missing run time warns and yields a zero-second link.
	require.Len(t, result.Feed.StopTimes, 2)
	assert.Equal(t, result.Feed.StopTimes[0].Departure, result.Feed.StopTimes[1].Arrival)

	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w.Message, "missing run time") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestConvertCalendarOverride(t *testing.T) {
	result, err := convert.Convert(parseDoc(t, minimalTXC, "minimal.xml"), convert.Options{
		CalendarStart: model.MustParseDate("2025-06-01"),
		CalendarEnd:   model.MustParseDate("2025-06-30"),
	})
	require.NoError(t, err)

	require.Len(t, result.Feed.Calendars, 1)
	assert.Equal(t, "20250601", result.Feed.Calendars[0].StartDate)
	assert.Equal(t, "20250630", result.Feed.Calendars[0].EndDate)
}

func TestConvertUnknownPatternSkipsJourney(t *testing.T) {
	content := strings.Replace(minimalTXC, "<JourneyPatternRef>JP1</JourneyPatternRef>",
		"<JourneyPatternRef>JP404</JourneyPatternRef>", 1)

	result, err := convert.Convert(parseDoc(t, content, "badref.xml"), convert.Options{})
	require.NoError(t, err)

	assert.Empty(t, result.Feed.Trips)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0].Message, "unknown pattern")
}

func TestConvertedFeedQueries(t *testing.T) {
	result, err := convert.Convert(parseDoc(t, minimalTXC, "minimal.xml"), convert.Options{})
	require.NoError(t, err)

	// Friday 2025-07-04 falls inside the Monday-to-Friday window.
	out, err := transit.WriteZipBytes(result.Feed)
	require.NoError(t, err)
	reloaded, err := transit.LoadFromZipBytes(context.Background(), out, transit.LoadOptions{})
	require.NoError(t, err)
	require.NoError(t, reloaded.Validate())

	trips := filter.New(reloaded).TripsOnDate(model.MustParseDate("2025-07-04"))
	require.Len(t, trips, 1)
	assert.Equal(t, "VJ1", trips[0].ID)
}
