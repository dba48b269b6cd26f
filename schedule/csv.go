package schedule

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"github.com/transitgrid/transit/model"
)

// canonicalOrder fixes synonym resolution priority. row_type sits
// ahead of vehicle_type so a bare "type" column means the activity,
// not the vehicle.
var canonicalOrder = []string{
	"block", "run_number", "trip_id",
	"start_place", "end_place", "start_time", "end_time",
	"depot", "row_type", "vehicle_class", "vehicle_type",
	"start_lat", "start_lon", "end_lat", "end_lon",
	"route_shape_id", "duty_id", "shift_id",
}

var synonyms = map[string][]string{
	"block":          {"block_id", "vehicle_block"},
	"run_number":     {"run", "run_id", "driver_run"},
	"trip_id":        {"trip", "journey_id", "journey_ref"},
	"start_place":    {"origin", "from", "start_stop"},
	"end_place":      {"destination", "to", "end_stop"},
	"start_time":     {"depart", "departure"},
	"end_time":       {"arrive", "arrival"},
	"depot":          {"garage", "depot_code", "garage_code"},
	"row_type":       {"type", "activity_type"},
	"vehicle_class":  {"veh_class", "class"},
	"vehicle_type":   {"veh_type", "type"},
	"start_lat":      nil,
	"start_lon":      nil,
	"end_lat":        nil,
	"end_lon":        nil,
	"route_shape_id": nil,
	"duty_id":        nil,
	"shift_id":       nil,
}

// MappingOptions override the automatic header mapping.
type MappingOptions struct {
	// Overrides maps canonical column names to the header actually
	// used in the file. Overrides win over the synonym table.
	Overrides map[string]string
}

type rowCSV struct {
	RunNumber    string  `csv:"run_number"`
	Block        string  `csv:"block"`
	StartPlace   string  `csv:"start_place"`
	EndPlace     string  `csv:"end_place"`
	StartTime    string  `csv:"start_time"`
	EndTime      string  `csv:"end_time"`
	TripID       string  `csv:"trip_id"`
	Depot        string  `csv:"depot"`
	VehicleClass string  `csv:"vehicle_class"`
	VehicleType  string  `csv:"vehicle_type"`
	StartLat     float64 `csv:"start_lat"`
	StartLon     float64 `csv:"start_lon"`
	EndLat       float64 `csv:"end_lat"`
	EndLon       float64 `csv:"end_lon"`
	RouteShapeID string  `csv:"route_shape_id"`
	DutyID       string  `csv:"duty_id"`
	ShiftID      string  `csv:"shift_id"`
	RowType      string  `csv:"row_type"`
}

// mapHeader rewrites source column names to canonical ones.
func mapHeader(raw []string, opts MappingOptions) []string {
	bySource := map[string]string{}
	for canonical, src := range opts.Overrides {
		bySource[strings.ToLower(strings.TrimSpace(src))] = canonical
	}
	for _, canonical := range canonicalOrder {
		if _, overridden := opts.Overrides[canonical]; overridden {
			continue
		}
		if _, taken := bySource[canonical]; !taken {
			bySource[canonical] = canonical
		}
		for _, syn := range synonyms[canonical] {
			if _, taken := bySource[syn]; !taken {
				bySource[syn] = canonical
			}
		}
	}

	mapped := make([]string, len(raw))
	used := map[string]bool{}
	for i, h := range raw {
		norm := strings.ToLower(strings.TrimSpace(h))
		canonical, found := bySource[norm]
		if found && !used[canonical] {
			used[canonical] = true
			mapped[i] = canonical
			continue
		}
		// Unmapped columns keep a name no field claims.
		mapped[i] = "_" + norm
	}
	return mapped
}

// replayReader feeds pre-read records to csvutil.
type replayReader struct {
	rows [][]string
	i    int
}

func (r *replayReader) Read() ([]string, error) {
	if r.i >= len(r.rows) {
		return nil, io.EOF
	}
	rec := r.rows[r.i]
	r.i++
	return rec, nil
}

// parseRowTime accepts "HH:MM:SS" and "HH:MM", hours over 24 included.
func parseRowTime(s string) (model.Time, error) {
	if s != "" && strings.Count(s, ":") == 1 {
		s += ":00"
	}
	return model.ParseTime(s)
}

// ReadCSV parses a run-cut export. Headers are auto-mapped from the
// synonym table, case-insensitively; rows with the wrong field count
// or unparseable times or numbers are skipped with a warning. A row
// with an unknown row type is kept as revenue, also with a warning.
func ReadCSV(r io.Reader, opts MappingOptions) (*Schedule, error) {
	raw := csv.NewReader(bom.NewReader(r))
	raw.FieldsPerRecord = -1
	raw.LazyQuotes = true

	sched := &Schedule{}

	header, err := raw.Read()
	if err == io.EOF {
		return sched, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading schedule header")
	}

	records := [][]string{}
	line := 1
	for {
		rec, err := raw.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrapf(err, "reading schedule row %d", line)
		}
		if len(rec) != len(header) {
			sched.Warnings = append(sched.Warnings,
				fmt.Sprintf("row %d: expected %d fields, found %d", line, len(header), len(rec)))
			continue
		}
		records = append(records, rec)
	}

	dec, err := csvutil.NewDecoder(&replayReader{rows: records}, mapHeader(header, opts)...)
	if err != nil {
		if len(records) == 0 {
			return sched, nil
		}
		return nil, errors.Wrap(err, "building schedule decoder")
	}

	for i := 0; ; i++ {
		var rec rowCSV
		err := dec.Decode(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			sched.Warnings = append(sched.Warnings, fmt.Sprintf("row %d: %v", i+2, err))
			continue
		}

		start, err := parseRowTime(rec.StartTime)
		if err != nil {
			sched.Warnings = append(sched.Warnings, fmt.Sprintf("row %d: bad start_time '%s'", i+2, rec.StartTime))
			continue
		}
		end, err := parseRowTime(rec.EndTime)
		if err != nil {
			sched.Warnings = append(sched.Warnings, fmt.Sprintf("row %d: bad end_time '%s'", i+2, rec.EndTime))
			continue
		}

		rowType, err := ParseRowType(rec.RowType)
		if err != nil {
			sched.Warnings = append(sched.Warnings, fmt.Sprintf("row %d: %v, assuming revenue", i+2, err))
		}

		sched.Rows = append(sched.Rows, Row{
			RunNumber:    rec.RunNumber,
			Block:        rec.Block,
			StartPlace:   rec.StartPlace,
			EndPlace:     rec.EndPlace,
			StartTime:    start,
			EndTime:      end,
			TripID:       rec.TripID,
			Depot:        rec.Depot,
			VehicleClass: rec.VehicleClass,
			VehicleType:  rec.VehicleType,
			StartLat:     rec.StartLat,
			StartLon:     rec.StartLon,
			EndLat:       rec.EndLat,
			EndLon:       rec.EndLon,
			RouteShapeID: rec.RouteShapeID,
			DutyID:       rec.DutyID,
			ShiftID:      rec.ShiftID,
			Type:         rowType,
		})
	}

	return sched, nil
}

// UnknownPresetError reports an export preset name with no column set.
type UnknownPresetError struct {
	Name string
}

func (e *UnknownPresetError) Error() string {
	return fmt.Sprintf("unknown export preset '%s'", e.Name)
}

// presets are the named column sets offered at the export surface.
var presets = map[string][]string{
	"default": {
		"block", "run_number", "trip_id", "row_type",
		"start_place", "end_place", "start_time", "end_time",
		"depot", "vehicle_class", "vehicle_type", "duty_id", "shift_id",
	},
	"minimal": {
		"block", "trip_id", "start_time", "end_time",
	},
	"extended": {
		"block", "run_number", "trip_id", "row_type",
		"start_place", "end_place", "start_time", "end_time",
		"start_lat", "start_lon", "end_lat", "end_lon",
		"depot", "vehicle_class", "vehicle_type",
		"route_shape_id", "duty_id", "shift_id",
	},
	"optibus": {
		"run_number", "block", "trip_id", "start_place", "end_place",
		"start_time", "end_time", "depot", "vehicle_type", "duty_id",
	},
	"hastus": {
		"block", "run_number", "duty_id", "shift_id", "trip_id",
		"start_place", "end_place", "start_time", "end_time", "vehicle_class",
	},
	"gtfs_block": {
		"block", "trip_id", "route_shape_id", "start_time", "end_time",
	},
}

func formatFloat(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (r *Row) field(column string) string {
	switch column {
	case "block":
		return r.Block
	case "run_number":
		return r.RunNumber
	case "trip_id":
		return r.TripID
	case "row_type":
		return string(r.Type)
	case "start_place":
		return r.StartPlace
	case "end_place":
		return r.EndPlace
	case "start_time":
		return r.StartTime.String()
	case "end_time":
		return r.EndTime.String()
	case "depot":
		return r.Depot
	case "vehicle_class":
		return r.VehicleClass
	case "vehicle_type":
		return r.VehicleType
	case "start_lat":
		return formatFloat(r.StartLat)
	case "start_lon":
		return formatFloat(r.StartLon)
	case "end_lat":
		return formatFloat(r.EndLat)
	case "end_lon":
		return formatFloat(r.EndLon)
	case "route_shape_id":
		return r.RouteShapeID
	case "duty_id":
		return r.DutyID
	case "shift_id":
		return r.ShiftID
	}
	return ""
}

// WriteCSV serializes the schedule using a named column preset.
func WriteCSV(w io.Writer, s *Schedule, preset string) error {
	columns, found := presets[preset]
	if !found {
		return &UnknownPresetError{Name: preset}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}

	row := make([]string, len(columns))
	for i := range s.Rows {
		for j, col := range columns {
			row[j] = s.Rows[i].field(col)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "writing schedule csv")
}
