package geo

import (
	"context"
	"testing"
	"time"

	"github.com/example/trip-dispatch/internal/models"
)

func TestHaversineZero(t *testing.T) {
	if d := Haversine(0, 0, 0, 0); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineStockholm(t *testing.T) {
	// (59.33,18.06) -> (59.34,18.09) is roughly 2km
	d := Haversine(59.33, 18.06, 59.34, 18.09)
	if d < 1500 || d > 2500 {
		t.Fatalf("expected ~2km, got %f", d)
	}
}

func TestTrackerSnapshotFiltersStale(t *testing.T) {
	now := time.Now()
	tr := NewTracker()
	tr.Upsert(models.Driver{ID: "fresh", Online: true, Updated: now.Add(-10 * time.Second)})
	tr.Upsert(models.Driver{ID: "stale", Online: true, Updated: now.Add(-2 * time.Minute)})

	out, err := tr.Snapshot(context.Background(), 45*time.Second, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != "fresh" {
		t.Fatalf("expected only fresh driver, got %+v", out)
	}
}

func TestTrackerNewestWins(t *testing.T) {
	now := time.Now()
	tr := NewTracker()
	tr.Upsert(models.Driver{ID: "d1", Loc: models.Coord{Lat: 2}, Updated: now})
	// out-of-order report must not clobber the newer one
	tr.Upsert(models.Driver{ID: "d1", Loc: models.Coord{Lat: 1}, Updated: now.Add(-time.Minute)})

	out, _ := tr.Snapshot(context.Background(), time.Hour, now)
	if len(out) != 1 || out[0].Loc.Lat != 2 {
		t.Fatalf("expected newest location kept, got %+v", out)
	}
}

func TestTrackerNearbyOrdersAndFilters(t *testing.T) {
	now := time.Now()
	tr := NewTracker()
	tr.Upsert(models.Driver{ID: "near", Loc: models.Coord{Lat: 59.331, Lon: 18.061}, Online: true, Updated: now})
	tr.Upsert(models.Driver{ID: "far", Loc: models.Coord{Lat: 59.35, Lon: 18.10}, Online: true, Updated: now})
	tr.Upsert(models.Driver{ID: "offline", Loc: models.Coord{Lat: 59.33, Lon: 18.06}, Online: false, Updated: now})

	out, _ := tr.Nearby(context.Background(), models.Coord{Lat: 59.33, Lon: 18.06}, 10000, 10)
	if len(out) != 2 {
		t.Fatalf("expected 2 online drivers, got %d", len(out))
	}
	if out[0].ID != "near" {
		t.Fatalf("expected nearest first, got %s", out[0].ID)
	}

	out, _ = tr.Nearby(context.Background(), models.Coord{Lat: 59.33, Lon: 18.06}, 500, 10)
	if len(out) != 1 || out[0].ID != "near" {
		t.Fatalf("expected radius filter to keep only near, got %+v", out)
	}
}
