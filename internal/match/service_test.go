package match

import (
	"context"
	"testing"

	"github.com/example/ride-pooling/internal/models"
)

type recordingDispatch struct {
	notices []models.MatchNotice
	err     error
}

func (d *recordingDispatch) Notify(requestID string, n models.MatchNotice) error {
	d.notices = append(d.notices, n)
	return d.err
}

type fakeCache struct {
	stored map[string][]models.CompatibilityResult
	hits   int
}

func (c *fakeCache) Get(ctx context.Context, req models.MatchRequest) ([]models.CompatibilityResult, bool) {
	v, ok := c.stored[req.RiderID]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *fakeCache) Set(ctx context.Context, req models.MatchRequest, results []models.CompatibilityResult) {
	if c.stored == nil {
		c.stored = make(map[string][]models.CompatibilityResult)
	}
	c.stored[req.RiderID] = results
}

func newTestService(t *testing.T) (*Service, *recordingDispatch) {
	t.Helper()
	d := &recordingDispatch{}
	return &Service{Scorer: mustScorer(t, DefaultWeights()), Dispatch: d, Limit: 5}, d
}

func TestFindMatchesRanksAndFilters(t *testing.T) {
	s, _ := newTestService(t)
	req := baseRequest()

	good := baseOffer()
	better := baseOffer()
	better.ID = "o2"
	good.ID = "o1"
	good.DriverRating = 3

	bad := baseOffer()
	bad.ID = "o3"
	bad.Origin.Lat = 95 // malformed, must be skipped

	out := s.FindMatches(context.Background(), "req1", req, []models.CandidateOffer{good, bad, better})
	if len(out) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(out))
	}
	if out[0].OfferID != "o2" {
		t.Fatalf("expected the higher-rated offer first, got %s", out[0].OfferID)
	}
	for _, r := range out {
		if r.Score <= ScoreThreshold {
			t.Fatalf("result below threshold leaked through: %f", r.Score)
		}
	}
}

func TestFindMatchesEmptyCandidates(t *testing.T) {
	s, d := newTestService(t)
	out := s.FindMatches(context.Background(), "req1", baseRequest(), nil)
	if len(out) != 0 {
		t.Fatalf("expected no matches, got %d", len(out))
	}
	if len(d.notices) != 0 {
		t.Fatalf("no dispatch expected for empty result")
	}
}

func TestFindMatchesDispatchesBest(t *testing.T) {
	s, d := newTestService(t)
	req := baseRequest()
	out := s.FindMatches(context.Background(), "req1", req, []models.CandidateOffer{baseOffer()})
	if len(out) != 1 {
		t.Fatalf("expected 1 match, got %d", len(out))
	}
	if len(d.notices) != 1 {
		t.Fatalf("expected 1 dispatched notice, got %d", len(d.notices))
	}
	n := d.notices[0]
	if n.RequestID != "req1" || n.OfferID != "o1" || n.DriverID != "d1" {
		t.Fatalf("wrong notice: %+v", n)
	}
}

func TestFindMatchesUsesCache(t *testing.T) {
	s, d := newTestService(t)
	c := &fakeCache{}
	s.Cache = c
	req := baseRequest()

	first := s.FindMatches(context.Background(), "req1", req, []models.CandidateOffer{baseOffer()})
	if len(first) != 1 {
		t.Fatalf("expected 1 match, got %d", len(first))
	}
	second := s.FindMatches(context.Background(), "req2", req, nil)
	if c.hits != 1 {
		t.Fatalf("expected a cache hit on the second call")
	}
	if len(second) != 1 || second[0].OfferID != first[0].OfferID {
		t.Fatalf("cached result differs: %+v vs %+v", second, first)
	}
	// cached path must not re-dispatch
	if len(d.notices) != 1 {
		t.Fatalf("expected exactly 1 notice, got %d", len(d.notices))
	}
}
