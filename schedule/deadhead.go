package schedule

import (
	"math"
	"sort"

	"github.com/jftuga/geodist"

	transit "github.com/transitgrid/transit"
	"github.com/transitgrid/transit/filter"
	"github.com/transitgrid/transit/model"
)

// distanceKM is the great-circle distance between two points.
func distanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	_, km := geodist.HaversineDistance(
		geodist.Coord{Lat: lat1, Lon: lon1},
		geodist.Coord{Lat: lat2, Lon: lon2},
	)
	return km
}

// travelSeconds estimates a straight-line move at the reference speed,
// rounded up to the whole minute.
func travelSeconds(km, speedKMH float64) int {
	minutes := int(math.Ceil(km / speedKMH * 60))
	if minutes < 1 {
		minutes = 1
	}
	return minutes * 60
}

// InferenceResult reports what InferDeadheads synthesized.
type InferenceResult struct {
	PullOuts     int
	PullIns      int
	Interlinings int

	// IncompleteBlocks lists blocks where a required movement could
	// not be synthesized: missing coordinates, or a gap too short
	// to cover the distance at the reference speed.
	IncompleteBlocks []string

	// Schedule is the input with the synthetic rows spliced in,
	// blocks in first-seen order, rows by start time.
	Schedule *Schedule
}

// InferDeadheads walks each block and inserts the non-revenue
// movements the run-cut left implicit: a pull-out from the depot ahead
// of the first revenue trip, a pull-in after the last, and interlining
// deadheads between revenue trips that end and start at different
// places. When a feed is supplied, its stop coordinates take precedence
// over the row-embedded ones.
func InferDeadheads(sched *Schedule, feed *transit.Feed, cfg Config) *InferenceResult {
	cfg = cfg.withDefaults()

	var flt *filter.Filter
	if feed != nil {
		flt = filter.New(feed)
	}

	result := &InferenceResult{Schedule: &Schedule{}}
	incomplete := map[string]bool{}

	markIncomplete := func(block string) {
		if !incomplete[block] {
			incomplete[block] = true
			result.IncompleteBlocks = append(result.IncompleteBlocks, block)
		}
	}

	blockOrder, byBlock := sched.blocks()
	for _, block := range blockOrder {
		idx := byBlock[block]
		rows := make([]Row, 0, len(idx)+2)
		for _, i := range idx {
			rows = append(rows, sched.Rows[i])
		}

		revenue := []int{}
		for i, r := range rows {
			if r.Type == Revenue {
				revenue = append(revenue, i)
			}
		}
		if len(revenue) == 0 {
			result.Schedule.Rows = append(result.Schedule.Rows, rows...)
			continue
		}

		inserted := []Row{}

		// Pull-out ahead of the first revenue trip.
		first := rows[revenue[0]]
		depot := first.Depot
		if depot == "" {
			depot = cfg.DefaultDepot
		}
		hasPullOut := revenue[0] > 0 && rows[0].Type == PullOut
		if depot != "" && first.StartPlace != depot && !hasPullOut {
			dLat, dLon, dOK := stopCoord(flt, depot, 0, 0)
			sLat, sLon, sOK := stopCoord(flt, first.StartPlace, first.StartLat, first.StartLon)
			if dOK && sOK {
				secs := travelSeconds(distanceKM(dLat, dLon, sLat, sLon), cfg.ReferenceSpeedKMH)
				inserted = append(inserted, Row{
					RunNumber:  first.RunNumber,
					Block:      block,
					StartPlace: depot,
					EndPlace:   first.StartPlace,
					StartTime:  first.StartTime - model.Time(secs),
					EndTime:    first.StartTime,
					Depot:      depot,
					StartLat:   dLat,
					StartLon:   dLon,
					EndLat:     sLat,
					EndLon:     sLon,
					DutyID:     first.DutyID,
					Type:       PullOut,
				})
				result.PullOuts++
			} else {
				markIncomplete(block)
			}
		}

		// Pull-in after the last revenue trip.
		last := rows[revenue[len(revenue)-1]]
		depot = last.Depot
		if depot == "" {
			depot = cfg.DefaultDepot
		}
		hasPullIn := revenue[len(revenue)-1] < len(rows)-1 && rows[len(rows)-1].Type == PullIn
		if depot != "" && last.EndPlace != depot && !hasPullIn {
			dLat, dLon, dOK := stopCoord(flt, depot, 0, 0)
			eLat, eLon, eOK := stopCoord(flt, last.EndPlace, last.EndLat, last.EndLon)
			if dOK && eOK {
				secs := travelSeconds(distanceKM(eLat, eLon, dLat, dLon), cfg.ReferenceSpeedKMH)
				inserted = append(inserted, Row{
					RunNumber:  last.RunNumber,
					Block:      block,
					StartPlace: last.EndPlace,
					EndPlace:   depot,
					StartTime:  last.EndTime,
					EndTime:    last.EndTime + model.Time(secs),
					Depot:      depot,
					StartLat:   eLat,
					StartLon:   eLon,
					EndLat:     dLat,
					EndLon:     dLon,
					DutyID:     last.DutyID,
					Type:       PullIn,
				})
				result.PullIns++
			} else {
				markIncomplete(block)
			}
		}

		// Interlining between displaced revenue trips.
		for k := 1; k < len(revenue); k++ {
			prev := rows[revenue[k-1]]
			next := rows[revenue[k]]
			if prev.EndPlace == next.StartPlace {
				continue
			}
			// A row already covering the move counts.
			covered := false
			for j := revenue[k-1] + 1; j < revenue[k]; j++ {
				if rows[j].Type == Deadhead || rows[j].Type == PullIn || rows[j].Type == PullOut {
					covered = true
					break
				}
			}
			if covered {
				continue
			}

			pLat, pLon, pOK := stopCoord(flt, prev.EndPlace, prev.EndLat, prev.EndLon)
			nLat, nLon, nOK := stopCoord(flt, next.StartPlace, next.StartLat, next.StartLon)
			if !pOK || !nOK {
				markIncomplete(block)
				continue
			}

			secs := travelSeconds(distanceKM(pLat, pLon, nLat, nLon), cfg.ReferenceSpeedKMH)
			gap := int(next.StartTime - prev.EndTime)
			if gap < secs+cfg.MinLayoverSeconds {
				markIncomplete(block)
				continue
			}

			inserted = append(inserted, Row{
				RunNumber:  prev.RunNumber,
				Block:      block,
				StartPlace: prev.EndPlace,
				EndPlace:   next.StartPlace,
				StartTime:  prev.EndTime,
				EndTime:    prev.EndTime + model.Time(secs),
				Depot:      prev.Depot,
				StartLat:   pLat,
				StartLon:   pLon,
				EndLat:     nLat,
				EndLon:     nLon,
				DutyID:     prev.DutyID,
				Type:       Deadhead,
			})
			result.Interlinings++
		}

		rows = append(rows, inserted...)
		sort.SliceStable(rows, func(a, b int) bool {
			return rows[a].StartTime < rows[b].StartTime
		})
		result.Schedule.Rows = append(result.Schedule.Rows, rows...)
	}

	return result
}
