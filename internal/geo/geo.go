package geo

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/example/trip-dispatch/internal/models"
)

// Tracker keeps the last known location and availability per driver.
type Tracker struct {
	mu      sync.RWMutex
	drivers map[string]models.Driver
}

func NewTracker() *Tracker {
	return &Tracker{drivers: make(map[string]models.Driver)}
}

// Upsert records a location report. Out-of-order reports are dropped so the
// newest observation always wins.
func (t *Tracker) Upsert(d models.Driver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.drivers[d.ID]; ok && existing.Updated.After(d.Updated) {
		return
	}
	t.drivers[d.ID] = d
}

func (t *Tracker) SetOnline(id string, online bool, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.drivers[id]
	if !ok {
		d = models.Driver{ID: id}
	}
	d.Online = online
	d.Updated = now
	t.drivers[id] = d
}

// Snapshot returns every driver whose last report is no older than maxAge.
// Availability and radius filtering are the caller's concern.
func (t *Tracker) Snapshot(ctx context.Context, maxAge time.Duration, now time.Time) ([]models.Driver, error) {
	cutoff := now.Add(-maxAge)
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.Driver, 0, len(t.drivers))
	for _, d := range t.drivers {
		if d.Updated.Before(cutoff) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Nearby lists online drivers within radiusM of the origin, closest first.
func (t *Tracker) Nearby(ctx context.Context, origin models.Coord, radiusM float64, limit int) ([]models.Driver, error) {
	t.mu.RLock()
	type pair struct {
		d    models.Driver
		dist float64
	}
	arr := make([]pair, 0, len(t.drivers))
	for _, d := range t.drivers {
		if !d.Online {
			continue
		}
		dist := Haversine(origin.Lat, origin.Lon, d.Loc.Lat, d.Loc.Lon)
		if dist > radiusM {
			continue
		}
		arr = append(arr, pair{d, dist})
	}
	t.mu.RUnlock()

	sort.Slice(arr, func(i, j int) bool { return arr[i].dist < arr[j].dist })
	if limit > 0 && len(arr) > limit {
		arr = arr[:limit]
	}
	out := make([]models.Driver, 0, len(arr))
	for _, p := range arr {
		out = append(out, p.d)
	}
	return out, nil
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
