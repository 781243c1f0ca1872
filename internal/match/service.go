package match

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/ride-pooling/internal/eta"
	"github.com/example/ride-pooling/internal/models"
	"github.com/example/ride-pooling/internal/observability"
)

// Dispatcher pushes a match notice to the offering driver, best-effort.
type Dispatcher interface {
	Notify(requestID string, n models.MatchNotice) error
}

// ResultCache stores ranked results keyed by the full request, so two
// requests differing in any field never share an entry.
type ResultCache interface {
	Get(ctx context.Context, req models.MatchRequest) ([]models.CompatibilityResult, bool)
	Set(ctx context.Context, req models.MatchRequest, results []models.CompatibilityResult)
}

// Service runs the score -> rank pipeline over caller-supplied candidates.
// Dispatch, Cache, ETAClient and ETACache are all optional.
type Service struct {
	Scorer   *Scorer
	Dispatch Dispatcher
	Cache    ResultCache
	Limit    int

	ETAClient eta.Client
	ETACache  *eta.Cache

	Logger *slog.Logger
}

// FindMatches scores every candidate against the request and returns the
// ranked survivors. Candidates that fail to score are skipped, never
// defaulted; no qualifying candidate yields an empty slice, not an error.
func (s *Service) FindMatches(ctx context.Context, requestID string, req models.MatchRequest, candidates []models.CandidateOffer) []models.CompatibilityResult {
	start := time.Now()
	defer func() {
		observability.MatchLatency.Observe(time.Since(start).Seconds())
	}()

	if s.Cache != nil {
		if cached, ok := s.Cache.Get(ctx, req); ok {
			observability.MatchCacheHits.Inc()
			return cached
		}
		observability.MatchCacheMisses.Inc()
	}

	scored := make([]*models.CompatibilityResult, 0, len(candidates))
	byOffer := make(map[string]models.CandidateOffer, len(candidates))
	for _, offer := range candidates {
		observability.CandidatesScored.Inc()
		r := s.Scorer.Score(req, offer)
		if r == nil {
			observability.CandidatesRejected.Inc()
			continue
		}
		byOffer[offer.ID] = offer
		scored = append(scored, r)
	}

	ranked := Rank(scored, s.Limit)
	s.refinePickupETAs(req, ranked, byOffer)

	if s.Cache != nil {
		s.Cache.Set(ctx, req, ranked)
	}

	if len(ranked) > 0 {
		observability.MatchesTotal.Inc()
		if s.Dispatch != nil {
			best := ranked[0]
			notice := models.MatchNotice{
				RequestID: requestID,
				RiderID:   req.RiderID,
				OfferID:   best.OfferID,
				DriverID:  best.DriverID,
				Score:     best.Score,
				Seats:     req.Prefs.SeatsNeeded,
			}
			if err := s.Dispatch.Notify(requestID, notice); err != nil && s.Logger != nil {
				s.Logger.Warn("match notice dispatch failed", "request_id", requestID, "driver_id", best.DriverID, "error", err)
			}
		}
	}
	return ranked
}

// refinePickupETAs replaces the fixed-speed pickup estimate with a routing
// engine estimate when one is configured. Scores are already final by this
// point; routing data adjusts presentation only.
func (s *Service) refinePickupETAs(req models.MatchRequest, ranked []models.CompatibilityResult, byOffer map[string]models.CandidateOffer) {
	if s.ETAClient == nil {
		return
	}
	for i := range ranked {
		offer, ok := byOffer[ranked[i].OfferID]
		if !ok {
			continue
		}
		var sec float64
		if s.ETACache != nil {
			if v, ok := s.ETACache.Get(offer.Origin, req.Origin); ok {
				sec = v
			}
		}
		if sec == 0 {
			v, err := s.ETAClient.EstimateSeconds(offer.Origin, req.Origin)
			if err != nil {
				continue
			}
			sec = v
			if s.ETACache != nil {
				s.ETACache.Set(offer.Origin, req.Origin, sec)
			}
		}
		pickup := offer.DepartureTime.Add(time.Duration(sec) * time.Second)
		ride := ranked[i].EstimatedArrival.Sub(ranked[i].EstimatedPickup)
		ranked[i].EstimatedPickup = pickup
		ranked[i].EstimatedArrival = pickup.Add(ride)
	}
}
