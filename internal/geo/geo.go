package geo

import (
	"math"
	"sync"

	"github.com/example/ride-pooling/internal/models"
)

// OfferIndex is the minimal interface the matcher and handlers need to
// find candidate offers near a pickup point.
type OfferIndex interface {
	Nearby(lat, lon float64, limit int) []models.CandidateOffer
	Upsert(o models.CandidateOffer)
}

type Index struct {
	mu     sync.RWMutex
	offers map[string]models.CandidateOffer
}

func NewIndex() *Index {
	return &Index{offers: make(map[string]models.CandidateOffer)}
}

func (g *Index) Upsert(o models.CandidateOffer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.offers[o.ID] = o
}

// naive scan; in prod use geo-hash or H3
func (g *Index) Nearby(lat, lon float64, limit int) []models.CandidateOffer {
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		o    models.CandidateOffer
		dist float64
	}
	arr := make([]pair, 0, len(g.offers))
	for _, o := range g.offers {
		if o.AvailableSeats <= 0 {
			continue
		}
		dist := DistanceKm(models.Coord{Lat: lat, Lon: lon}, o.Origin)
		arr = append(arr, pair{o, dist})
	}
	// partial selection sort for top-N
	n := limit
	if n > len(arr) {
		n = len(arr)
	}
	for i := 0; i < n; i++ {
		minIdx := i
		for j := i + 1; j < len(arr); j++ {
			if arr[j].dist < arr[minIdx].dist {
				minIdx = j
			}
		}
		arr[i], arr[minIdx] = arr[minIdx], arr[i]
	}
	out := make([]models.CandidateOffer, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, arr[i].o)
	}
	return out
}

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle (haversine) distance between two points
// in kilometers. Pure; always finite and non-negative for finite inputs.
func DistanceKm(a, b models.Coord) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}
