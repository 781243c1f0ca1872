package geo

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-pooling/internal/models"
)

// RedisGeo implements OfferIndex using Redis GEO commands. Offer origins
// live in a geo set keyed by offer id; the rest of the offer is kept in a
// per-offer metadata hash so Nearby can rebuild full candidates.
type RedisGeo struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

func NewRedisGeo(addr, password, key string) *RedisGeo {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisGeo{client: c, key: key, ctx: context.Background()}
}

func (r *RedisGeo) Upsert(o models.CandidateOffer) {
	_, _ = r.client.GeoAdd(r.ctx, r.key, &redis.GeoLocation{Longitude: o.Origin.Lon, Latitude: o.Origin.Lat, Name: o.ID}).Result()
	_ = r.client.HSet(r.ctx, MetaKey(o.ID), OfferMeta(o)).Err()
}

func (r *RedisGeo) Nearby(lat, lon float64, limit int) []models.CandidateOffer {
	res, err := r.client.GeoRadius(r.ctx, r.key, lon, lat, &redis.GeoRadiusQuery{Radius: 25, Unit: "km", WithCoord: true, WithDist: true, Count: limit, Sort: "ASC"}).Result()
	if err != nil {
		return nil
	}
	out := make([]models.CandidateOffer, 0, len(res))
	for _, g := range res {
		o := models.CandidateOffer{ID: g.Name}
		o.Origin.Lat = g.Latitude
		o.Origin.Lon = g.Longitude
		if m, err := r.client.HGetAll(r.ctx, MetaKey(g.Name)).Result(); err == nil {
			fillFromMeta(&o, m)
		}
		if o.AvailableSeats <= 0 {
			continue
		}
		out = append(out, o)
	}
	return out
}

func OfferMeta(o models.CandidateOffer) map[string]interface{} {
	return map[string]interface{}{
		"driver_id":     o.DriverID,
		"dest_lat":      strconv.FormatFloat(o.Destination.Lat, 'f', 6, 64),
		"dest_lon":      strconv.FormatFloat(o.Destination.Lon, 'f', 6, 64),
		"departure":     o.DepartureTime.Format(time.RFC3339),
		"seats":         strconv.Itoa(o.AvailableSeats),
		"price":         strconv.FormatFloat(o.PricePerSeat, 'f', 2, 64),
		"rating":        strconv.FormatFloat(o.DriverRating, 'f', 2, 64),
		"vehicle_make":  o.Vehicle.Make,
		"vehicle_model": o.Vehicle.Model,
		"vehicle_year":  strconv.Itoa(o.Vehicle.Year),
		"updated":       time.Now().Format(time.RFC3339),
	}
}

func fillFromMeta(o *models.CandidateOffer, m map[string]string) {
	o.DriverID = m["driver_id"]
	if f, err := strconv.ParseFloat(m["dest_lat"], 64); err == nil {
		o.Destination.Lat = f
	}
	if f, err := strconv.ParseFloat(m["dest_lon"], 64); err == nil {
		o.Destination.Lon = f
	}
	if ts, err := time.Parse(time.RFC3339, m["departure"]); err == nil {
		o.DepartureTime = ts
	}
	if n, err := strconv.Atoi(m["seats"]); err == nil {
		o.AvailableSeats = n
	}
	if f, err := strconv.ParseFloat(m["price"], 64); err == nil {
		o.PricePerSeat = f
	}
	if f, err := strconv.ParseFloat(m["rating"], 64); err == nil {
		o.DriverRating = f
	}
	o.Vehicle.Make = m["vehicle_make"]
	o.Vehicle.Model = m["vehicle_model"]
	if n, err := strconv.Atoi(m["vehicle_year"]); err == nil {
		o.Vehicle.Year = n
	}
}

// MetaKey is the redis hash key holding an offer's non-geo fields.
func MetaKey(id string) string { return "offer:meta:" + id }
