package parse

import (
	"io"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/transitgrid/transit/model"
)

type TripCSV struct {
	ID        string `csv:"trip_id"`
	RouteID   string `csv:"route_id"`
	ServiceID string `csv:"service_id"`
	Headsign  string `csv:"trip_headsign"`
	ShapeID   string `csv:"shape_id"`
	BlockID   string `csv:"block_id"`
}

var tripColumns = map[string]bool{
	"trip_id":       true,
	"route_id":      true,
	"service_id":    true,
	"trip_headsign": true,
	"shape_id":      true,
	"block_id":      true,
}

func Trips(file string, data io.Reader, opts Options) ([]model.Trip, *TableInfo, error) {
	tr := newTableReader(file, data, opts.RoundTrip)

	rows := []*TripCSV{}
	if err := gocsv.UnmarshalCSV(tr, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, tr.info(tripColumns), nil
		}
		return nil, nil, errors.Wrapf(err, "unmarshaling %s", file)
	}

	trips := make([]model.Trip, 0, len(rows))
	seen := map[string]bool{}
	for i, row := range rows {
		if row.ID == "" {
			if err := tr.reject(i, "trip_id", "empty trip_id", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if seen[row.ID] {
			if err := tr.reject(i, "trip_id", "repeated trip_id '"+row.ID+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if row.RouteID == "" {
			if err := tr.reject(i, "route_id", "empty route_id", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if row.ServiceID == "" {
			if err := tr.reject(i, "service_id", "empty service_id", opts); err != nil {
				return nil, nil, err
			}
			continue
		}

		seen[row.ID] = true
		trips = append(trips, model.Trip{
			ID:        row.ID,
			RouteID:   row.RouteID,
			ServiceID: row.ServiceID,
			Headsign:  row.Headsign,
			ShapeID:   row.ShapeID,
			BlockID:   row.BlockID,
			Extras:    tr.extras(i, tripColumns),
		})
	}

	return trips, tr.info(tripColumns), nil
}
