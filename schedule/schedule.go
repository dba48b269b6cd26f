// Package schedule validates operational run-cuts against a GTFS
// reference and infers missing deadhead movements. A schedule is the
// row-oriented CSV a scheduling system exports: revenue trips and the
// non-revenue rows (pull-outs, breaks, reliefs) stitched around them,
// grouped into vehicle blocks and driver duties.
package schedule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/transitgrid/transit/model"
)

// RowType classifies one schedule row.
type RowType string

const (
	Revenue  RowType = "revenue"
	PullOut  RowType = "pull_out"
	PullIn   RowType = "pull_in"
	Deadhead RowType = "deadhead"
	Break    RowType = "break"
	Relief   RowType = "relief"
	Layover  RowType = "layover"
)

// ParseRowType normalizes the row-type spellings seen in exports.
func ParseRowType(s string) (RowType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "revenue", "service", "trip":
		return Revenue, nil
	case "pull_out", "pullout", "pull-out":
		return PullOut, nil
	case "pull_in", "pullin", "pull-in":
		return PullIn, nil
	case "deadhead", "dead_run", "deadrun":
		return Deadhead, nil
	case "break", "meal_break":
		return Break, nil
	case "relief":
		return Relief, nil
	case "layover":
		return Layover, nil
	}
	return Revenue, fmt.Errorf("unknown row type '%s'", s)
}

// Row is one element of a run-cut.
type Row struct {
	RunNumber    string
	Block        string
	StartPlace   string
	EndPlace     string
	StartTime    model.Time
	EndTime      model.Time
	TripID       string
	Depot        string
	VehicleClass string
	VehicleType  string
	StartLat     float64
	StartLon     float64
	EndLat       float64
	EndLon       float64
	RouteShapeID string
	DutyID       string
	ShiftID      string
	Type         RowType
}

// Schedule is an ordered sequence of rows. Row order is preserved from
// the source; block-wise operations sort by start time as needed.
type Schedule struct {
	Rows []Row

	// Warnings collected while reading the source CSV.
	Warnings []string
}

// blocks returns the block ids in first-seen order and, per block, the
// row indices sorted by start time (source order breaking ties).
func (s *Schedule) blocks() ([]string, map[string][]int) {
	order := []string{}
	byBlock := map[string][]int{}
	for i, r := range s.Rows {
		if _, found := byBlock[r.Block]; !found {
			order = append(order, r.Block)
		}
		byBlock[r.Block] = append(byBlock[r.Block], i)
	}
	for _, idx := range byBlock {
		idx := idx
		sort.SliceStable(idx, func(a, b int) bool {
			return s.Rows[idx[a]].StartTime < s.Rows[idx[b]].StartTime
		})
	}
	return order, byBlock
}

// duties returns duty ids in first-seen order and, per duty, the row
// indices sorted by start time. Rows without a duty are skipped.
func (s *Schedule) duties() ([]string, map[string][]int) {
	order := []string{}
	byDuty := map[string][]int{}
	for i, r := range s.Rows {
		if r.DutyID == "" {
			continue
		}
		if _, found := byDuty[r.DutyID]; !found {
			order = append(order, r.DutyID)
		}
		byDuty[r.DutyID] = append(byDuty[r.DutyID], i)
	}
	for _, idx := range byDuty {
		idx := idx
		sort.SliceStable(idx, func(a, b int) bool {
			return s.Rows[idx[a]].StartTime < s.Rows[idx[b]].StartTime
		})
	}
	return order, byDuty
}
