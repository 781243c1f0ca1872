package geo

import (
	"math"
	"testing"

	"github.com/example/ride-pooling/internal/models"
)

func TestDistanceKmZero(t *testing.T) {
	d := DistanceKm(models.Coord{}, models.Coord{})
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceKmKnownPair(t *testing.T) {
	// Paris -> London is roughly 344 km great-circle.
	paris := models.Coord{Lat: 48.8566, Lon: 2.3522}
	london := models.Coord{Lat: 51.5074, Lon: -0.1278}
	d := DistanceKm(paris, london)
	if math.Abs(d-344) > 5 {
		t.Fatalf("expected ~344 km, got %f", d)
	}
	if rev := DistanceKm(london, paris); math.Abs(rev-d) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", d, rev)
	}
}

func TestIndexNearbyOrdersByOriginDistance(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(models.CandidateOffer{ID: "far", Origin: models.Coord{Lat: 1, Lon: 1}, AvailableSeats: 2})
	idx.Upsert(models.CandidateOffer{ID: "near", Origin: models.Coord{Lat: 0.01, Lon: 0.01}, AvailableSeats: 2})
	idx.Upsert(models.CandidateOffer{ID: "full", Origin: models.Coord{Lat: 0, Lon: 0}, AvailableSeats: 0})

	got := idx.Nearby(0, 0, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 offers (zero-seat excluded), got %d", len(got))
	}
	if got[0].ID != "near" || got[1].ID != "far" {
		t.Fatalf("wrong order: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestIndexNearbyRespectsLimit(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(models.CandidateOffer{ID: "a", Origin: models.Coord{Lat: 0.1}, AvailableSeats: 1})
	idx.Upsert(models.CandidateOffer{ID: "b", Origin: models.Coord{Lat: 0.2}, AvailableSeats: 1})
	if got := idx.Nearby(0, 0, 1); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected just a, got %v", got)
	}
}
