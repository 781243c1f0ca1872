package route

import "errors"

var (
	// ErrInvalidInput covers malformed waypoint sets: fewer than two stops,
	// a non-positive passenger cap, or a pickup/dropoff without its pair.
	ErrInvalidInput = errors.New("invalid route input")

	// ErrCapacityExceeded means the input carries more distinct passengers
	// than the vehicle can ever hold at once.
	ErrCapacityExceeded = errors.New("route capacity exceeded")

	// ErrIncompleteRoute means a sequenced route lost a passenger's pickup
	// or dropoff. It signals a sequencer defect, not bad caller input.
	ErrIncompleteRoute = errors.New("incomplete route")
)
