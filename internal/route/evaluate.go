package route

import (
	"fmt"
	"sort"

	"github.com/example/ride-pooling/internal/geo"
	"github.com/example/ride-pooling/internal/models"
)

// Evaluate computes distance, time, efficiency and per-passenger timing for
// a sequenced route. original is the pre-optimization input order and acts
// as the efficiency baseline. Fails with ErrIncompleteRoute when a
// passenger from original has no pickup or dropoff in sequenced.
func (p *Planner) Evaluate(sequenced, original []models.Waypoint) (models.Route, []models.PassengerSegment, error) {
	seq := withDwellDefaults(sequenced)

	totalDist := pathDistanceKm(seq)
	totalTime := p.travelSeconds(totalDist)
	for _, wp := range seq[:maxInt(len(seq)-1, 0)] {
		totalTime += wp.DwellSec
	}

	segments, err := p.passengerSegments(seq, original)
	if err != nil {
		return models.Route{}, nil, err
	}

	r := models.Route{
		Waypoints:       seq,
		TotalDistanceKm: totalDist,
		TotalTimeSec:    totalTime,
		EfficiencyScore: efficiencyScore(pathDistanceKm(original), totalDist),
	}
	return r, segments, nil
}

// efficiencyScore compares the baseline input-order distance against the
// sequenced distance. A zero-length baseline cannot be improved or
// worsened and scores 1.0.
func efficiencyScore(baselineKm, sequencedKm float64) float64 {
	if baselineKm == 0 {
		return 1.0
	}
	if sequencedKm == 0 {
		return 1.0
	}
	eff := baselineKm / sequencedKm
	if eff > 1 {
		eff = 1
	}
	return eff
}

func (p *Planner) passengerSegments(sequenced, original []models.Waypoint) ([]models.PassengerSegment, error) {
	etas := p.cumulativeETAs(sequenced)

	passengers := make(map[string]bool)
	for _, wp := range original {
		passengers[wp.PassengerID] = true
	}
	ids := make([]string, 0, len(passengers))
	for id := range passengers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	segments := make([]models.PassengerSegment, 0, len(ids))
	for _, id := range ids {
		pickupIdx, dropoffIdx := -1, -1
		for i, wp := range sequenced {
			if wp.PassengerID != id {
				continue
			}
			if wp.Kind == models.Pickup {
				pickupIdx = i
			} else {
				dropoffIdx = i
			}
		}
		if pickupIdx < 0 || dropoffIdx < 0 {
			return nil, fmt.Errorf("%w: passenger %q missing from sequenced route", ErrIncompleteRoute, id)
		}
		pickup := sequenced[pickupIdx]
		dropoff := sequenced[dropoffIdx]
		segments = append(segments, models.PassengerSegment{
			PassengerID:      id,
			PickupIndex:      pickupIdx,
			DropoffIndex:     dropoffIdx,
			DirectDistanceKm: geo.DistanceKm(pickup.Loc, dropoff.Loc),
			PickupETASec:     etas[pickupIdx],
			DropoffETASec:    etas[dropoffIdx],
			RideDurationSec:  etas[dropoffIdx] - etas[pickupIdx],
		})
	}
	return segments, nil
}

// cumulativeETAs replays the route from the start: reaching stop i costs
// the driving time of every prior leg plus the dwell spent at each prior
// stop.
func (p *Planner) cumulativeETAs(waypoints []models.Waypoint) []int {
	etas := make([]int, len(waypoints))
	acc := 0
	for i := 0; i < len(waypoints)-1; i++ {
		etas[i] = acc
		leg := geo.DistanceKm(waypoints[i].Loc, waypoints[i+1].Loc)
		acc += p.travelSeconds(leg) + waypoints[i].DwellSec
	}
	if len(waypoints) > 0 {
		etas[len(waypoints)-1] = acc
	}
	return etas
}

func (p *Planner) travelSeconds(distanceKm float64) int {
	return int(distanceKm / p.speed() * 3600)
}

func pathDistanceKm(waypoints []models.Waypoint) float64 {
	total := 0.0
	for i := 0; i+1 < len(waypoints); i++ {
		total += geo.DistanceKm(waypoints[i].Loc, waypoints[i+1].Loc)
	}
	return total
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
