package parse

import (
	"io"
	"sort"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/transitgrid/transit/model"
)

type ShapePointCSV struct {
	ShapeID  string `csv:"shape_id"`
	Lat      string `csv:"shape_pt_lat"`
	Lon      string `csv:"shape_pt_lon"`
	Sequence string `csv:"shape_pt_sequence"`
}

var shapeColumns = map[string]bool{
	"shape_id":          true,
	"shape_pt_lat":      true,
	"shape_pt_lon":      true,
	"shape_pt_sequence": true,
}

// Shapes groups shapes.txt rows by shape_id, each shape's points sorted
// by sequence. Shape order follows first appearance in the file.
func Shapes(file string, data io.Reader, opts Options) ([]model.Shape, *TableInfo, error) {
	tr := newTableReader(file, data, opts.RoundTrip)

	rows := []*ShapePointCSV{}
	if err := gocsv.UnmarshalCSV(tr, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, tr.info(shapeColumns), nil
		}
		return nil, nil, errors.Wrapf(err, "unmarshaling %s", file)
	}

	order := []string{}
	points := map[string][]model.ShapePoint{}
	for i, p := range rows {
		if p.ShapeID == "" {
			if err := tr.reject(i, "shape_id", "empty shape_id", opts); err != nil {
				return nil, nil, err
			}
			continue
		}

		lat, err := strconv.ParseFloat(p.Lat, 64)
		if err != nil {
			if err := tr.reject(i, "shape_pt_lat", "malformed shape_pt_lat '"+p.Lat+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		lon, err := strconv.ParseFloat(p.Lon, 64)
		if err != nil {
			if err := tr.reject(i, "shape_pt_lon", "malformed shape_pt_lon '"+p.Lon+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		seq, err := strconv.ParseUint(p.Sequence, 10, 32)
		if err != nil {
			if err := tr.reject(i, "shape_pt_sequence", "malformed shape_pt_sequence '"+p.Sequence+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}

		if _, found := points[p.ShapeID]; !found {
			order = append(order, p.ShapeID)
		}
		points[p.ShapeID] = append(points[p.ShapeID], model.ShapePoint{
			Lat:      lat,
			Lon:      lon,
			Sequence: uint32(seq),
		})
	}

	shapes := make([]model.Shape, 0, len(order))
	for _, id := range order {
		pts := points[id]
		sort.SliceStable(pts, func(i, j int) bool {
			return pts[i].Sequence < pts[j].Sequence
		})
		shapes = append(shapes, model.Shape{ID: id, Points: pts})
	}

	return shapes, tr.info(shapeColumns), nil
}
