package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is inside WGS84 range.
func (c Coord) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Preferences narrows which offers a rider will accept.
// Zero values mean "use the service default" for that field.
type Preferences struct {
	MaxDistanceKm    float64 `json:"max_distance_km"`
	MaxTimeDiffHours float64 `json:"max_time_difference_hours"`
	MaxPrice         float64 `json:"max_price"`
	SeatsNeeded      int     `json:"seats_needed"`
	VehicleMaxAge    int     `json:"vehicle_max_age_years"`
}

type MatchRequest struct {
	RiderID       string      `json:"rider_id"`
	Origin        Coord       `json:"origin"`
	Destination   Coord       `json:"destination"`
	DepartureTime time.Time   `json:"departure_time"`
	Prefs         Preferences `json:"preferences"`
}

type Vehicle struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	Color        string `json:"color"`
	LicensePlate string `json:"license_plate"`
}

// CandidateOffer is a driver-posted trip as supplied by the offer store or
// the geo index. Read-only to the matching core.
type CandidateOffer struct {
	ID             string    `json:"id"`
	DriverID       string    `json:"driver_id"`
	Origin         Coord     `json:"origin"`
	Destination    Coord     `json:"destination"`
	DepartureTime  time.Time `json:"departure_time"`
	AvailableSeats int       `json:"available_seats"`
	PricePerSeat   float64   `json:"price_per_seat"`
	DriverRating   float64   `json:"driver_rating"` // 1..5
	Vehicle        Vehicle   `json:"vehicle"`
}

type CompatibilityResult struct {
	OfferID          string    `json:"offer_id"`
	DriverID         string    `json:"driver_id"`
	Score            float64   `json:"compatibility_score"`
	OriginDistanceKm float64   `json:"distance_from_origin_km"`
	DestDistanceKm   float64   `json:"distance_to_destination_km"`
	TimeDeviationHrs float64   `json:"time_deviation_hours"`
	PricePerSeat     float64   `json:"price_per_seat"`
	AvailableSeats   int       `json:"available_seats"`
	DriverRating     float64   `json:"driver_rating"`
	Vehicle          Vehicle   `json:"vehicle"`
	EstimatedPickup  time.Time `json:"estimated_pickup_time"`
	EstimatedArrival time.Time `json:"estimated_arrival_time"`
	RouteEfficiency  float64   `json:"route_efficiency"`
}

type WaypointKind string

const (
	Pickup  WaypointKind = "pickup"
	Dropoff WaypointKind = "dropoff"
)

// Waypoint is a single stop in a shared route. DwellSec is the stationary
// time at the stop (boarding/alighting); zero means the planner default.
type Waypoint struct {
	ID          string       `json:"id"`
	Kind        WaypointKind `json:"type"`
	Loc         Coord        `json:"location"`
	PassengerID string       `json:"passenger_id"`
	DwellSec    int          `json:"dwell_seconds"`
	Priority    int          `json:"priority"`
}

type Route struct {
	Waypoints       []Waypoint `json:"waypoints"`
	TotalDistanceKm float64    `json:"total_distance_km"`
	TotalTimeSec    int        `json:"total_time_seconds"`
	EfficiencyScore float64    `json:"efficiency_score"`
}

// PassengerSegment describes one passenger's slice of a shared route.
// ETAs are seconds from route start.
type PassengerSegment struct {
	PassengerID      string  `json:"passenger_id"`
	PickupIndex      int     `json:"pickup_order"`
	DropoffIndex     int     `json:"dropoff_order"`
	DirectDistanceKm float64 `json:"direct_distance_km"`
	PickupETASec     int     `json:"pickup_eta_seconds"`
	DropoffETASec    int     `json:"dropoff_eta_seconds"`
	RideDurationSec  int     `json:"ride_duration_seconds"`
}

// MatchNotice is pushed to a driver when their offer ranks for a request.
type MatchNotice struct {
	RequestID string  `json:"request_id"`
	RiderID   string  `json:"rider_id"`
	OfferID   string  `json:"offer_id"`
	DriverID  string  `json:"driver_id"`
	Score     float64 `json:"compatibility_score"`
	Seats     int     `json:"seats"`
}

type Booking struct {
	ID              string    `json:"id"`
	RiderID         string    `json:"rider_id"`
	OfferID         string    `json:"offer_id"`
	DriverID        string    `json:"driver_id"`
	Seats           int       `json:"seats"`
	FareAmount      float64   `json:"fare_amount"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	Status          string    `json:"status"` // pending, held, confirmed, canceled
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
