package txc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalDoc = `<?xml version="1.0" encoding="UTF-8"?>
<TransXChange xmlns="http://www.transxchange.org.uk/" SchemaVersion="2.4">
  <StopPoints>
    <AnnotatedStopPointRef>
      <StopPointRef>490000001A</StopPointRef>
      <CommonName>High Street</CommonName>
      <Location><Latitude>51.5</Latitude><Longitude>-0.1</Longitude></Location>
    </AnnotatedStopPointRef>
    <AnnotatedStopPointRef>
      <StopPointRef>490000002B</StopPointRef>
      <CommonName>Station Road</CommonName>
    </AnnotatedStopPointRef>
  </StopPoints>
  <RouteSections>
    <RouteSection id="RS1">
      <RouteLink id="RL1">
        <From><StopPointRef>490000001A</StopPointRef></From>
        <To><StopPointRef>490000002B</StopPointRef></To>
        <Track><Mapping>
          <Location><Latitude>51.5</Latitude><Longitude>-0.1</Longitude></Location>
          <Location><Latitude>51.6</Latitude><Longitude>-0.2</Longitude></Location>
        </Mapping></Track>
      </RouteLink>
    </RouteSection>
  </RouteSections>
  <Routes>
    <Route id="R1">
      <Description>High Street to Station Road</Description>
      <RouteSectionRef>RS1</RouteSectionRef>
    </Route>
  </Routes>
  <JourneyPatternSections>
    <JourneyPatternSection id="JPS1">
      <JourneyPatternTimingLink id="JPTL1">
        <From SequenceNumber="1">
          <StopPointRef>490000001A</StopPointRef>
        </From>
        <To SequenceNumber="2">
          <StopPointRef>490000002B</StopPointRef>
          <WaitTime>PT1M</WaitTime>
        </To>
        <RouteLinkRef>RL1</RouteLinkRef>
        <RunTime>PT5M</RunTime>
      </JourneyPatternTimingLink>
    </JourneyPatternSection>
  </JourneyPatternSections>
  <Operators>
    <Operator id="O1">
      <NationalOperatorCode>NOC1</NationalOperatorCode>
      <OperatorCode>OP1</OperatorCode>
      <OperatorShortName>Acme Buses</OperatorShortName>
      <TradingName>Acme</TradingName>
    </Operator>
  </Operators>
  <Services>
    <Service>
      <ServiceCode>SVC1</ServiceCode>
      <Lines><Line id="L1"><LineName>1</LineName></Line></Lines>
      <OperatingPeriod>
        <StartDate>2025-01-01</StartDate>
        <EndDate>2025-12-31</EndDate>
      </OperatingPeriod>
      <OperatingProfile>
        <RegularDayType>
          <DaysOfWeek><MondayToFriday/></DaysOfWeek>
        </RegularDayType>
        <BankHolidayOperation>
          <DaysOfNonOperation><AllBankHolidays/></DaysOfNonOperation>
        </BankHolidayOperation>
      </OperatingProfile>
      <RegisteredOperatorRef>O1</RegisteredOperatorRef>
      <Mode>bus</Mode>
      <Description>Town service</Description>
      <StandardService>
        <Origin>High Street</Origin>
        <Destination>Station Road</Destination>
        <JourneyPattern id="JP1">
          <DestinationDisplay>Station Road</DestinationDisplay>
          <RouteRef>R1</RouteRef>
          <JourneyPatternSectionRefs>JPS1</JourneyPatternSectionRefs>
        </JourneyPattern>
      </StandardService>
    </Service>
  </Services>
  <VehicleJourneys>
    <VehicleJourney>
      <OperatorRef>O1</OperatorRef>
      <VehicleJourneyCode>VJ1</VehicleJourneyCode>
      <ServiceRef>SVC1</ServiceRef>
      <LineRef>L1</LineRef>
      <JourneyPatternRef>JP1</JourneyPatternRef>
      <DepartureTime>09:00:00</DepartureTime>
    </VehicleJourney>
  </VehicleJourneys>
</TransXChange>`

func TestParseMinimalDocument(t *testing.T) {
	doc := ParseBytes([]byte(minimalDoc))

	assert.Empty(t, doc.Diagnostics)
	assert.Equal(t, "2.4", doc.SchemaVersion)
	assert.False(t, doc.Empty())

	require.Len(t, doc.Operators, 1)
	assert.Equal(t, "OP1", doc.Operators[0].Code)
	assert.Equal(t, "Acme", doc.Operators[0].TradingName)

	require.Len(t, doc.StopPoints, 2)
	assert.Equal(t, "490000001A", doc.StopPoints[0].Ref)
	assert.Equal(t, "High Street", doc.StopPoints[0].CommonName)
	require.True(t, doc.StopPoints[0].Location.IsSet())
	assert.Equal(t, 51.5, doc.StopPoints[0].Location.Latitude)
	assert.False(t, doc.StopPoints[1].Location.IsSet())

	require.Len(t, doc.RouteSections, 1)
	require.Len(t, doc.RouteSections[0].Links, 1)
	link := doc.RouteSections[0].Links[0]
	assert.Equal(t, "490000001A", link.From)
	assert.Len(t, link.Track, 2)

	require.Len(t, doc.Routes, 1)
	assert.Equal(t, []string{"RS1"}, doc.Routes[0].SectionRefs)

	require.Len(t, doc.JourneyPatternSections, 1)
	tl := doc.JourneyPatternSections[0].TimingLinks[0]
	assert.Equal(t, "PT5M", tl.RunTime)
	assert.Equal(t, "PT1M", tl.To.WaitTime)
	assert.Equal(t, 1, tl.From.SequenceNumber)

	require.Len(t, doc.Services, 1)
	svc := doc.Services[0]
	assert.Equal(t, "SVC1", svc.Code)
	require.Len(t, svc.Lines, 1)
	assert.Equal(t, "1", svc.Lines[0].Name)
	assert.Equal(t, "2025-01-01", svc.OperatingPeriod.StartDate)
	require.Len(t, svc.StandardService.JourneyPatterns, 1)
	assert.Equal(t, []string{"JPS1"}, svc.StandardService.JourneyPatterns[0].SectionRefs)

	require.NotNil(t, svc.OperatingProfile)
	assert.Equal(t, []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
	}, svc.OperatingProfile.RegularDays.Days)
	require.NotNil(t, svc.OperatingProfile.BankHolidays)
	assert.Equal(t, HolidayNames{"AllBankHolidays"}, svc.OperatingProfile.BankHolidays.NonOperation)

	require.Len(t, doc.VehicleJourneys, 1)
	vj := doc.VehicleJourneys[0]
	assert.Equal(t, "VJ1", vj.EffectiveCode())
	assert.Equal(t, "JP1", vj.JourneyPatternRef)
	assert.Equal(t, "09:00:00", vj.DepartureTime)
}

func TestParsePrefixedNamespace(t *testing.T) {
	doc := ParseBytes([]byte(`<?xml version="1.0"?>
<txc:TransXChange xmlns:txc="http://www.transxchange.org.uk/" SchemaVersion="2.5">
  <txc:Operators>
    <txc:Operator id="O1"><txc:OperatorCode>OP1</txc:OperatorCode></txc:Operator>
  </txc:Operators>
</txc:TransXChange>`))

	assert.Equal(t, "2.5", doc.SchemaVersion)
	require.Len(t, doc.Operators, 1)
	assert.Equal(t, "OP1", doc.Operators[0].Code)
}

func TestParseInvalidXMLSoftFails(t *testing.T) {
	doc := ParseBytes([]byte("<TransXChange SchemaVersion=\"2.4\"><Operators><Operator"))

	// No panic, no error: an empty-ish document with diagnostics.
	assert.True(t, doc.Empty())
	assert.NotEmpty(t, doc.Diagnostics)
}

func TestParseGarbageSoftFails(t *testing.T) {
	// Tagless input yields an empty document rather than an error.
	doc := ParseBytes([]byte("this is not xml at all"))
	assert.True(t, doc.Empty())
}

func TestUnknownElementsSkipped(t *testing.T) {
	doc := ParseBytes([]byte(`<?xml version="1.0"?>
<TransXChange SchemaVersion="2.5">
  <SomethingNew><Deeply><Nested/></Deeply></SomethingNew>
  <Operators><Operator id="O1"><OperatorCode>OP1</OperatorCode></Operator></Operators>
</TransXChange>`))

	assert.Empty(t, doc.Diagnostics)
	require.Len(t, doc.Operators, 1)
}

func TestTicketMachineCodeFallback(t *testing.T) {
	doc := ParseBytes([]byte(`<?xml version="1.0"?>
<TransXChange SchemaVersion="2.5">
  <VehicleJourneys>
    <VehicleJourney>
      <Operational><TicketMachine><JourneyCode>TM42</JourneyCode></TicketMachine></Operational>
      <ServiceRef>SVC1</ServiceRef>
      <DepartureTime>10:00:00</DepartureTime>
    </VehicleJourney>
  </VehicleJourneys>
</TransXChange>`))

	require.Len(t, doc.VehicleJourneys, 1)
	assert.Equal(t, "TM42", doc.VehicleJourneys[0].EffectiveCode())
}

func TestFullStopPointForm(t *testing.T) {
	doc := ParseBytes([]byte(`<?xml version="1.0"?>
<TransXChange SchemaVersion="2.4">
  <StopPoints>
    <StopPoint>
      <AtcoCode>490000003C</AtcoCode>
      <Descriptor><CommonName>Market Square</CommonName></Descriptor>
      <Place><Location><Translation>
        <Latitude>53.4</Latitude><Longitude>-2.2</Longitude>
      </Translation></Location></Place>
    </StopPoint>
  </StopPoints>
</TransXChange>`))

	require.Len(t, doc.StopPoints, 1)
	sp := doc.StopPoints[0]
	assert.Equal(t, "490000003C", sp.Ref)
	assert.Equal(t, "Market Square", sp.CommonName)
	require.True(t, sp.Location.IsSet())
	assert.Equal(t, 53.4, sp.Location.Latitude)
}

func TestSpecialDaysAndPeriodic(t *testing.T) {
	doc := ParseBytes([]byte(`<?xml version="1.0"?>
<TransXChange SchemaVersion="2.5">
  <Services><Service>
    <ServiceCode>SVC1</ServiceCode>
    <OperatingProfile>
      <RegularDayType><DaysOfWeek><Saturday/></DaysOfWeek></RegularDayType>
      <PeriodicDayType><WeekOfMonth><WhichWeek>first</WhichWeek></WeekOfMonth></PeriodicDayType>
      <SpecialDaysOperation>
        <DaysOfNonOperation>
          <DateRange><StartDate>2025-08-01</StartDate><EndDate>2025-08-03</EndDate></DateRange>
        </DaysOfNonOperation>
      </SpecialDaysOperation>
    </OperatingProfile>
  </Service></Services>
</TransXChange>`))

	require.Len(t, doc.Services, 1)
	p := doc.Services[0].OperatingProfile
	require.NotNil(t, p)
	assert.Equal(t, []time.Weekday{time.Saturday}, p.RegularDays.Days)
	require.NotNil(t, p.PeriodicDays)
	assert.Equal(t, []string{"first"}, p.PeriodicDays.Weeks)
	require.NotNil(t, p.SpecialDays)
	require.Len(t, p.SpecialDays.NonOperation, 1)
	assert.Equal(t, "2025-08-01", p.SpecialDays.NonOperation[0].StartDate)
}
