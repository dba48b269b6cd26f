package parse

import (
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/transitgrid/transit/model"
)

type RouteCSV struct {
	ID        string `csv:"route_id"`
	AgencyID  string `csv:"agency_id"`
	ShortName string `csv:"route_short_name"`
	LongName  string `csv:"route_long_name"`
	Desc      string `csv:"route_desc"`
	Type      string `csv:"route_type"`
}

var routeColumns = map[string]bool{
	"route_id":         true,
	"agency_id":        true,
	"route_short_name": true,
	"route_long_name":  true,
	"route_desc":       true,
	"route_type":       true,
}

func validRouteType(t int) bool {
	return (t >= 0 && t <= 7) || t == 11 || t == 12
}

func Routes(file string, data io.Reader, opts Options) ([]model.Route, *TableInfo, error) {
	tr := newTableReader(file, data, opts.RoundTrip)

	rows := []*RouteCSV{}
	if err := gocsv.UnmarshalCSV(tr, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, tr.info(routeColumns), nil
		}
		return nil, nil, errors.Wrapf(err, "unmarshaling %s", file)
	}

	routes := make([]model.Route, 0, len(rows))
	seen := map[string]bool{}
	for i, r := range rows {
		if r.ID == "" {
			if err := tr.reject(i, "route_id", "empty route_id", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if seen[r.ID] {
			if err := tr.reject(i, "route_id", "repeated route_id '"+r.ID+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if r.ShortName == "" && r.LongName == "" {
			if err := tr.reject(i, "route_short_name", "route needs a short or long name", opts); err != nil {
				return nil, nil, err
			}
			continue
		}

		rt, err := strconv.Atoi(r.Type)
		if err != nil {
			if err := tr.reject(i, "route_type", "malformed route_type '"+r.Type+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if !validRouteType(rt) {
			if err := tr.reject(i, "route_type", "unknown route_type '"+r.Type+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}

		seen[r.ID] = true
		routes = append(routes, model.Route{
			ID:        r.ID,
			AgencyID:  r.AgencyID,
			ShortName: r.ShortName,
			LongName:  r.LongName,
			Desc:      r.Desc,
			Type:      model.RouteType(rt),
			Extras:    tr.extras(i, routeColumns),
		})
	}

	return routes, tr.info(routeColumns), nil
}
