package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-pooling/internal/models"
)

// MatchCache stores ranked match results in redis. The key digests every
// request field, so any change to coordinates, time or preferences lands
// on a fresh entry instead of serving stale results.
type MatchCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewMatchCache(addr, password string, ttl time.Duration) *MatchCache {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &MatchCache{client: c, ttl: ttl}
}

func (m *MatchCache) Get(ctx context.Context, req models.MatchRequest) ([]models.CompatibilityResult, bool) {
	raw, err := m.client.Get(ctx, Key(req)).Bytes()
	if err != nil {
		return nil, false
	}
	var results []models.CompatibilityResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false
	}
	return results, true
}

func (m *MatchCache) Set(ctx context.Context, req models.MatchRequest, results []models.CompatibilityResult) {
	raw, err := json.Marshal(results)
	if err != nil {
		return
	}
	_ = m.client.Set(ctx, Key(req), raw, m.ttl).Err()
}

// Key derives the cache key from the full request.
func Key(req models.MatchRequest) string {
	payload := fmt.Sprintf("%.6f,%.6f|%.6f,%.6f|%s|%.2f|%.2f|%.2f|%d|%d",
		req.Origin.Lat, req.Origin.Lon,
		req.Destination.Lat, req.Destination.Lon,
		req.DepartureTime.UTC().Format(time.RFC3339),
		req.Prefs.MaxDistanceKm, req.Prefs.MaxTimeDiffHours, req.Prefs.MaxPrice,
		req.Prefs.SeatsNeeded, req.Prefs.VehicleMaxAge)
	sum := md5.Sum([]byte(payload))
	return "ride_matches:" + hex.EncodeToString(sum[:])
}
