package parse

import (
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/transitgrid/transit/model"
)

type StopCSV struct {
	ID   string `csv:"stop_id"`
	Code string `csv:"stop_code"`
	Name string `csv:"stop_name"`
	Desc string `csv:"stop_desc"`
	Lat  string `csv:"stop_lat"`
	Lon  string `csv:"stop_lon"`
}

var stopColumns = map[string]bool{
	"stop_id":   true,
	"stop_code": true,
	"stop_name": true,
	"stop_desc": true,
	"stop_lat":  true,
	"stop_lon":  true,
}

func Stops(file string, data io.Reader, opts Options) ([]model.Stop, *TableInfo, error) {
	tr := newTableReader(file, data, opts.RoundTrip)

	rows := []*StopCSV{}
	if err := gocsv.UnmarshalCSV(tr, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, tr.info(stopColumns), nil
		}
		return nil, nil, errors.Wrapf(err, "unmarshaling %s", file)
	}

	stops := make([]model.Stop, 0, len(rows))
	seen := map[string]bool{}
	for i, st := range rows {
		if st.ID == "" {
			if err := tr.reject(i, "stop_id", "empty stop_id", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if seen[st.ID] {
			if err := tr.reject(i, "stop_id", "repeated stop_id '"+st.ID+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}

		lat, err := strconv.ParseFloat(st.Lat, 64)
		if err != nil {
			if err := tr.reject(i, "stop_lat", "malformed stop_lat '"+st.Lat+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		lon, err := strconv.ParseFloat(st.Lon, 64)
		if err != nil {
			if err := tr.reject(i, "stop_lon", "malformed stop_lon '"+st.Lon+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if lat < -90 || lat > 90 {
			if err := tr.reject(i, "stop_lat", "stop_lat out of range", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if lon < -180 || lon > 180 {
			if err := tr.reject(i, "stop_lon", "stop_lon out of range", opts); err != nil {
				return nil, nil, err
			}
			continue
		}

		seen[st.ID] = true
		stops = append(stops, model.Stop{
			ID:     st.ID,
			Code:   st.Code,
			Name:   st.Name,
			Desc:   st.Desc,
			Lat:    lat,
			Lon:    lon,
			Extras: tr.extras(i, stopColumns),
		})
	}

	return stops, tr.info(stopColumns), nil
}
