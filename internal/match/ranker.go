package match

import (
	"sort"

	"github.com/example/ride-pooling/internal/models"
)

// DefaultLimit caps how many ranked results a match response carries.
const DefaultLimit = 20

// Rank drops nil results, sorts by score descending and truncates to limit
// (DefaultLimit when limit <= 0). Ties break on lower origin distance, then
// offer id, so equal inputs always rank identically.
func Rank(results []*models.CompatibilityResult, limit int) []models.CompatibilityResult {
	if limit <= 0 {
		limit = DefaultLimit
	}
	kept := make([]models.CompatibilityResult, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		kept = append(kept, *r)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.OriginDistanceKm != b.OriginDistanceKm {
			return a.OriginDistanceKm < b.OriginDistanceKm
		}
		return a.OfferID < b.OfferID
	})
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
