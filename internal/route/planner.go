package route

import (
	"fmt"
	"log/slog"

	"github.com/example/ride-pooling/internal/geo"
	"github.com/example/ride-pooling/internal/models"
	"github.com/example/ride-pooling/internal/observability"
)

const (
	// DefaultAvgSpeedKmh approximates city driving for time estimates.
	DefaultAvgSpeedKmh = 30.0

	// DefaultMaxPassengers caps simultaneous riders in one vehicle.
	DefaultMaxPassengers = 4

	// Dwell defaults applied when a waypoint does not carry its own.
	defaultPickupDwellSec  = 120
	defaultDropoffDwellSec = 60
)

// Planner sequences shared-ride waypoints and evaluates the result. All
// methods work on local copies; a Planner is safe for concurrent use.
type Planner struct {
	AvgSpeedKmh   float64
	MaxPassengers int
	Logger        *slog.Logger
}

func (p *Planner) speed() float64 {
	if p.AvgSpeedKmh > 0 {
		return p.AvgSpeedKmh
	}
	return DefaultAvgSpeedKmh
}

func (p *Planner) clampPassengers(requested int) int {
	limit := p.MaxPassengers
	if limit < 1 {
		limit = DefaultMaxPassengers
	}
	if requested < 1 || requested > limit {
		return limit
	}
	return requested
}

// Optimize sequences the waypoints under the capacity constraint and
// evaluates the produced order against the input order. A non-positive
// maxPassengers falls back to the planner's configured cap, and a larger
// request is clamped to it, so callers can never raise vehicle capacity
// above what the planner was built with.
func (p *Planner) Optimize(waypoints []models.Waypoint, maxPassengers int) (models.Route, []models.PassengerSegment, error) {
	sequenced, err := p.Sequence(waypoints, p.clampPassengers(maxPassengers))
	if err != nil {
		return models.Route{}, nil, err
	}
	return p.Evaluate(sequenced, waypoints)
}

// Sequence orders pickups and dropoffs with a capacity-constrained
// nearest-neighbor walk: from the first pickup, repeatedly drive to the
// closest stop that is legal right now (dropoffs for riders aboard, plus
// pickups while seats remain). A greedy order, not a globally optimal one;
// inputs are small enough that the gap does not matter.
func (p *Planner) Sequence(waypoints []models.Waypoint, maxPassengers int) ([]models.Waypoint, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 waypoints, got %d", ErrInvalidInput, len(waypoints))
	}
	if maxPassengers < 1 {
		return nil, fmt.Errorf("%w: max passengers must be >= 1, got %d", ErrInvalidInput, maxPassengers)
	}

	wps := withDwellDefaults(waypoints)
	if err := validatePairs(wps); err != nil {
		return nil, err
	}
	if n := countPassengers(wps); n > maxPassengers {
		return nil, fmt.Errorf("%w: %d passengers, vehicle holds %d", ErrCapacityExceeded, n, maxPassengers)
	}

	remaining := make([]models.Waypoint, len(wps))
	copy(remaining, wps)
	out := make([]models.Waypoint, 0, len(wps))
	inVehicle := make(map[string]bool)

	// Seed with the first pickup in input order.
	for i, wp := range remaining {
		if wp.Kind == models.Pickup {
			out = append(out, wp)
			inVehicle[wp.PassengerID] = true
			remaining = append(remaining[:i], remaining[i+1:]...)
			break
		}
	}

	current := wps[0]
	if len(out) > 0 {
		current = out[0]
	}

	for len(remaining) > 0 {
		next := -1
		best := 0.0
		for i, cand := range remaining {
			switch cand.Kind {
			case models.Dropoff:
				if !inVehicle[cand.PassengerID] {
					continue
				}
			case models.Pickup:
				if len(inVehicle) >= maxPassengers {
					continue
				}
			}
			d := geo.DistanceKm(current.Loc, cand.Loc)
			if next == -1 || d < best {
				next = i
				best = d
			}
		}

		if next == -1 {
			// Pair validation makes this unreachable; if it ever fires the
			// greedy invariant is broken, so surface it loudly and fall
			// back to input order instead of corrupting the route.
			observability.SequencerFallbacks.Inc()
			if p.Logger != nil {
				p.Logger.Error("sequencer found no legal next stop, appending remaining in input order",
					"remaining", len(remaining), "in_vehicle", len(inVehicle))
			}
			out = append(out, remaining...)
			return out, nil
		}

		chosen := remaining[next]
		out = append(out, chosen)
		remaining = append(remaining[:next], remaining[next+1:]...)
		if chosen.Kind == models.Pickup {
			inVehicle[chosen.PassengerID] = true
		} else {
			delete(inVehicle, chosen.PassengerID)
		}
		current = chosen
	}
	return out, nil
}

func withDwellDefaults(waypoints []models.Waypoint) []models.Waypoint {
	out := make([]models.Waypoint, len(waypoints))
	copy(out, waypoints)
	for i := range out {
		if out[i].DwellSec > 0 {
			continue
		}
		if out[i].Kind == models.Pickup {
			out[i].DwellSec = defaultPickupDwellSec
		} else {
			out[i].DwellSec = defaultDropoffDwellSec
		}
	}
	return out
}

// validatePairs requires exactly one pickup and one dropoff per passenger.
// An unpaired stop is rejected here rather than silently dropped or left to
// the greedy loop's fallback.
func validatePairs(waypoints []models.Waypoint) error {
	type pair struct{ pickups, dropoffs int }
	pairs := make(map[string]*pair)
	for _, wp := range waypoints {
		if wp.PassengerID == "" {
			return fmt.Errorf("%w: waypoint %q has no passenger id", ErrInvalidInput, wp.ID)
		}
		switch wp.Kind {
		case models.Pickup, models.Dropoff:
		default:
			return fmt.Errorf("%w: waypoint %q has unknown kind %q", ErrInvalidInput, wp.ID, wp.Kind)
		}
		p := pairs[wp.PassengerID]
		if p == nil {
			p = &pair{}
			pairs[wp.PassengerID] = p
		}
		if wp.Kind == models.Pickup {
			p.pickups++
		} else {
			p.dropoffs++
		}
	}
	for id, p := range pairs {
		if p.pickups != 1 || p.dropoffs != 1 {
			return fmt.Errorf("%w: passenger %q has %d pickups and %d dropoffs", ErrInvalidInput, id, p.pickups, p.dropoffs)
		}
	}
	return nil
}

func countPassengers(waypoints []models.Waypoint) int {
	seen := make(map[string]bool)
	for _, wp := range waypoints {
		seen[wp.PassengerID] = true
	}
	return len(seen)
}
