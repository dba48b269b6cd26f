package parse

import (
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/transitgrid/transit/model"
)

type StopTimeCSV struct {
	TripID       string `csv:"trip_id"`
	StopID       string `csv:"stop_id"`
	StopSequence string `csv:"stop_sequence"`
	Arrival      string `csv:"arrival_time"`
	Departure    string `csv:"departure_time"`
	Headsign     string `csv:"stop_headsign"`
}

var stopTimeColumns = map[string]bool{
	"trip_id":        true,
	"stop_id":        true,
	"stop_sequence":  true,
	"arrival_time":   true,
	"departure_time": true,
	"stop_headsign":  true,
}

func StopTimes(file string, data io.Reader, opts Options) ([]model.StopTime, *TableInfo, error) {
	tr := newTableReader(file, data, opts.RoundTrip)

	rows := []*StopTimeCSV{}
	if err := gocsv.UnmarshalCSV(tr, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, tr.info(stopTimeColumns), nil
		}
		return nil, nil, errors.Wrapf(err, "unmarshaling %s", file)
	}

	stopTimes := make([]model.StopTime, 0, len(rows))
	seenSeq := map[string]map[uint64]bool{}
	for i, st := range rows {
		if st.TripID == "" {
			if err := tr.reject(i, "trip_id", "empty trip_id", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if st.StopID == "" {
			if err := tr.reject(i, "stop_id", "empty stop_id", opts); err != nil {
				return nil, nil, err
			}
			continue
		}

		seq, err := strconv.ParseUint(st.StopSequence, 10, 32)
		if err != nil {
			if err := tr.reject(i, "stop_sequence", "malformed stop_sequence '"+st.StopSequence+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		if seenSeq[st.TripID][seq] {
			if err := tr.reject(i, "stop_sequence", "duplicate stop_sequence for trip '"+st.TripID+"'", opts); err != nil {
				return nil, nil, err
			}
			continue
		}

		arrival, err := model.ParseTime(st.Arrival)
		if err != nil {
			if err := tr.reject(i, "arrival_time", err.Error(), opts); err != nil {
				return nil, nil, err
			}
			continue
		}
		departure, err := model.ParseTime(st.Departure)
		if err != nil {
			if err := tr.reject(i, "departure_time", err.Error(), opts); err != nil {
				return nil, nil, err
			}
			continue
		}

		if seenSeq[st.TripID] == nil {
			seenSeq[st.TripID] = map[uint64]bool{}
		}
		seenSeq[st.TripID][seq] = true

		stopTimes = append(stopTimes, model.StopTime{
			TripID:       st.TripID,
			StopID:       st.StopID,
			StopSequence: uint32(seq),
			Arrival:      arrival,
			Departure:    departure,
			Headsign:     st.Headsign,
			Extras:       tr.extras(i, stopTimeColumns),
		})
	}

	return stopTimes, tr.info(stopTimeColumns), nil
}
