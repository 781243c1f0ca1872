package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/example/ride-pooling/internal/models"
)

func req() models.MatchRequest {
	return models.MatchRequest{
		RiderID:       "r1",
		Origin:        models.Coord{Lat: 40.7128, Lon: -74.0060},
		Destination:   models.Coord{Lat: 40.7580, Lon: -73.9855},
		DepartureTime: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		Prefs:         models.Preferences{MaxDistanceKm: 10, SeatsNeeded: 1},
	}
}

func TestKeyDeterministic(t *testing.T) {
	a, b := Key(req()), Key(req())
	if a != b {
		t.Fatalf("same request produced different keys: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "ride_matches:") {
		t.Fatalf("unexpected key prefix: %s", a)
	}
}

func TestKeyVariesWithEveryInput(t *testing.T) {
	base := Key(req())

	r := req()
	r.Origin.Lat += 0.001
	if Key(r) == base {
		t.Fatal("origin change must change the key")
	}

	r = req()
	r.DepartureTime = r.DepartureTime.Add(time.Minute)
	if Key(r) == base {
		t.Fatal("departure change must change the key")
	}

	r = req()
	r.Prefs.SeatsNeeded = 2
	if Key(r) == base {
		t.Fatal("preference change must change the key")
	}
}

func TestKeyIgnoresRiderIdentity(t *testing.T) {
	// two riders asking for the same trip share the cache entry
	a := req()
	b := req()
	b.RiderID = "someone-else"
	if Key(a) != Key(b) {
		t.Fatal("rider id must not affect the key")
	}
}
