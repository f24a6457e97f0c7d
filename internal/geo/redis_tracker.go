package geo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/trip-dispatch/internal/models"
)

// RedisTracker implements the same presence surface as Tracker on top of
// Redis: a GEO set for radius queries plus a hash of per-driver records.
type RedisTracker struct {
	client  *redis.Client
	geoKey  string
	metaKey string
}

func NewRedisTracker(addr, password, geoKey string) *RedisTracker {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisTracker{client: c, geoKey: geoKey, metaKey: geoKey + ":meta"}
}

func (r *RedisTracker) Upsert(d models.Driver) {
	ctx := context.Background()
	_, _ = r.client.GeoAdd(ctx, r.geoKey, &redis.GeoLocation{Longitude: d.Loc.Lon, Latitude: d.Loc.Lat, Name: d.ID}).Result()
	if b, err := json.Marshal(d); err == nil {
		_ = r.client.HSet(ctx, r.metaKey, d.ID, string(b)).Err()
	}
}

func (r *RedisTracker) SetOnline(id string, online bool, now time.Time) {
	ctx := context.Background()
	d := models.Driver{ID: id, Online: online, Updated: now}
	if raw, err := r.client.HGet(ctx, r.metaKey, id).Result(); err == nil {
		_ = json.Unmarshal([]byte(raw), &d)
		d.Online = online
		d.Updated = now
	}
	if b, err := json.Marshal(d); err == nil {
		_ = r.client.HSet(ctx, r.metaKey, id, string(b)).Err()
	}
}

func (r *RedisTracker) Snapshot(ctx context.Context, maxAge time.Duration, now time.Time) ([]models.Driver, error) {
	all, err := r.client.HGetAll(ctx, r.metaKey).Result()
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-maxAge)
	out := make([]models.Driver, 0, len(all))
	for _, raw := range all {
		var d models.Driver
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			continue
		}
		if d.Updated.Before(cutoff) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *RedisTracker) Nearby(ctx context.Context, origin models.Coord, radiusM float64, limit int) ([]models.Driver, error) {
	res, err := r.client.GeoSearchLocation(ctx, r.geoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  origin.Lon,
			Latitude:   origin.Lat,
			Radius:     radiusM,
			RadiusUnit: "m",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Driver, 0, len(res))
	for _, g := range res {
		d := models.Driver{ID: g.Name, Loc: models.Coord{Lat: g.Latitude, Lon: g.Longitude}}
		if raw, err := r.client.HGet(ctx, r.metaKey, g.Name).Result(); err == nil {
			_ = json.Unmarshal([]byte(raw), &d)
		}
		if !d.Online {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
