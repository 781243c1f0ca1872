package match

import (
	"fmt"
	"time"

	"github.com/example/ride-pooling/internal/geo"
	"github.com/example/ride-pooling/internal/models"
)

const (
	// ScoreThreshold is the minimum compatibility a candidate must reach;
	// anything at or below it is rejected outright.
	ScoreThreshold = 0.3

	// pickupSpeedKmh converts pickup/arrival distances into time estimates.
	pickupSpeedKmh = 40.0

	defaultMaxDistanceKm    = 10.0
	defaultMaxTimeDiffHours = 2.0
	defaultSeatsNeeded      = 1

	// vehicleAgePenalty is applied when the vehicle is older than the
	// rider's preference allows.
	vehicleAgePenalty = 0.7
)

// FactorWeights is the scorer's weight table. Weights must be non-negative
// and sum to a positive total; they are renormalized to sum to 1.0 at
// construction, so setting a factor to 0 disables it and redistributes its
// share proportionally across the remaining factors.
type FactorWeights struct {
	Distance        float64
	Time            float64
	Price           float64
	DriverRating    float64
	Vehicle         float64
	RouteEfficiency float64
	Availability    float64
}

func DefaultWeights() FactorWeights {
	return FactorWeights{
		Distance:        0.25,
		Time:            0.20,
		Price:           0.15,
		DriverRating:    0.15,
		Vehicle:         0.10,
		RouteEfficiency: 0.10,
		Availability:    0.05,
	}
}

func (w FactorWeights) total() float64 {
	return w.Distance + w.Time + w.Price + w.DriverRating + w.Vehicle + w.RouteEfficiency + w.Availability
}

func (w FactorWeights) validate() error {
	for _, v := range []float64{w.Distance, w.Time, w.Price, w.DriverRating, w.Vehicle, w.RouteEfficiency, w.Availability} {
		if v < 0 {
			return fmt.Errorf("factor weights must be non-negative, got %v", w)
		}
	}
	if w.total() <= 0 {
		return fmt.Errorf("factor weights must have a positive sum")
	}
	return nil
}

func (w FactorWeights) normalized() FactorWeights {
	t := w.total()
	return FactorWeights{
		Distance:        w.Distance / t,
		Time:            w.Time / t,
		Price:           w.Price / t,
		DriverRating:    w.DriverRating / t,
		Vehicle:         w.Vehicle / t,
		RouteEfficiency: w.RouteEfficiency / t,
		Availability:    w.Availability / t,
	}
}

// Scorer computes compatibility between a rider request and one candidate
// offer. It is pure apart from Now, which feeds vehicle-age scoring.
type Scorer struct {
	weights FactorWeights
	Now     func() time.Time
}

func NewScorer(w FactorWeights) (*Scorer, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w.normalized(), Now: time.Now}, nil
}

// Score returns nil when the offer is malformed or its compatibility with
// the request does not clear ScoreThreshold. A nil result means "no match
// for this candidate", never a defaulted score.
func (s *Scorer) Score(req models.MatchRequest, offer models.CandidateOffer) *models.CompatibilityResult {
	if !req.Origin.Valid() || !req.Destination.Valid() {
		return nil
	}
	if !offer.Origin.Valid() || !offer.Destination.Valid() {
		return nil
	}
	if offer.AvailableSeats <= 0 {
		return nil
	}

	maxDistance := req.Prefs.MaxDistanceKm
	if maxDistance <= 0 {
		maxDistance = defaultMaxDistanceKm
	}
	maxTimeDiff := req.Prefs.MaxTimeDiffHours
	if maxTimeDiff <= 0 {
		maxTimeDiff = defaultMaxTimeDiffHours
	}
	seatsNeeded := req.Prefs.SeatsNeeded
	if seatsNeeded <= 0 {
		seatsNeeded = defaultSeatsNeeded
	}
	maxPrice := req.Prefs.MaxPrice
	if maxPrice <= 0 {
		maxPrice = offer.PricePerSeat * 1.5
	}

	originDist := geo.DistanceKm(req.Origin, offer.Origin)
	destDist := geo.DistanceKm(req.Destination, offer.Destination)
	distanceScore := clamp01(1 - (originDist+destDist)/(2*maxDistance))

	timeDiff := req.DepartureTime.Sub(offer.DepartureTime).Hours()
	if timeDiff < 0 {
		timeDiff = -timeDiff
	}
	timeScore := clamp01(1 - timeDiff/maxTimeDiff)

	// maxPrice stays 0 only when the offer itself is free and the rider set
	// no ceiling; a free seat cannot be over budget, so it takes the full
	// sub-score.
	priceScore := 1.0
	if maxPrice > 0 {
		over := offer.PricePerSeat - maxPrice
		if over < 0 {
			over = 0
		}
		priceScore = clamp01(1 - over/maxPrice)
	}

	rating := offer.DriverRating
	if rating < 1 {
		rating = 1
	} else if rating > 5 {
		rating = 5
	}
	ratingScore := (rating - 1) / 4

	vehicleScore := s.vehicleScore(req.Prefs, offer.Vehicle)
	efficiency := routeEfficiency(req.Origin, req.Destination, offer.Origin, offer.Destination)
	availabilityScore := float64(offer.AvailableSeats) / float64(seatsNeeded)
	if availabilityScore > 1 {
		availabilityScore = 1
	}

	score := distanceScore*s.weights.Distance +
		timeScore*s.weights.Time +
		priceScore*s.weights.Price +
		ratingScore*s.weights.DriverRating +
		vehicleScore*s.weights.Vehicle +
		efficiency*s.weights.RouteEfficiency +
		availabilityScore*s.weights.Availability

	if score <= ScoreThreshold {
		return nil
	}

	pickup, arrival := estimateTimes(offer.DepartureTime, originDist, destDist)

	return &models.CompatibilityResult{
		OfferID:          offer.ID,
		DriverID:         offer.DriverID,
		Score:            score,
		OriginDistanceKm: originDist,
		DestDistanceKm:   destDist,
		TimeDeviationHrs: timeDiff,
		PricePerSeat:     offer.PricePerSeat,
		AvailableSeats:   offer.AvailableSeats,
		DriverRating:     offer.DriverRating,
		Vehicle:          offer.Vehicle,
		EstimatedPickup:  pickup,
		EstimatedArrival: arrival,
		RouteEfficiency:  efficiency,
	}
}

func (s *Scorer) vehicleScore(prefs models.Preferences, v models.Vehicle) float64 {
	score := 1.0
	if prefs.VehicleMaxAge > 0 && v.Year > 0 {
		age := s.Now().Year() - v.Year
		if age > prefs.VehicleMaxAge {
			score *= vehicleAgePenalty
		}
	}
	return score
}

// routeEfficiency compares the passenger's direct distance against the
// detour through the offer's own route. Coincident points make the detour
// zero; that degenerate case scores 0 rather than dividing by it.
func routeEfficiency(pOrigin, pDest, oOrigin, oDest models.Coord) float64 {
	direct := geo.DistanceKm(pOrigin, pDest)
	viaOffer := geo.DistanceKm(pOrigin, oOrigin) + geo.DistanceKm(oOrigin, oDest) + geo.DistanceKm(oDest, pDest)
	if viaOffer == 0 {
		return 0
	}
	eff := direct / viaOffer
	if eff > 1 {
		eff = 1
	}
	return eff
}

func estimateTimes(departure time.Time, originDistKm, destDistKm float64) (pickup, arrival time.Time) {
	pickup = departure.Add(hoursToDuration(originDistKm / pickupSpeedKmh))
	arrival = pickup.Add(hoursToDuration(destDistKm / pickupSpeedKmh))
	return pickup, arrival
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
