package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/trip-dispatch/internal/models"
)

type fakeUpdater struct {
	geoFails  int
	hsetFails int

	geoCalls  int
	hsetCalls int
	geoKey    string
	hashKey   string
	field     string
	value     string
}

func (f *fakeUpdater) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	f.geoCalls++
	f.geoKey = key
	if f.geoCalls <= f.geoFails {
		return errors.New("geo add failed")
	}
	return nil
}

func (f *fakeUpdater) HSet(ctx context.Context, key, field, value string) error {
	f.hsetCalls++
	f.hashKey = key
	f.field = field
	f.value = value
	if f.hsetCalls <= f.hsetFails {
		return errors.New("hset failed")
	}
	return nil
}

func testDriver() *models.Driver {
	return &models.Driver{
		ID:      "d1",
		Loc:     models.Coord{Lat: 59.33, Lon: 18.06},
		Online:  true,
		Updated: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestUpdateRedisFirstTry(t *testing.T) {
	f := &fakeUpdater{}
	d := testDriver()

	if err := updateRedisWithRetry(context.Background(), f, d, "drivers_geo", 3, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if f.geoCalls != 1 || f.hsetCalls != 1 {
		t.Fatalf("expected one call each, got geo=%d hset=%d", f.geoCalls, f.hsetCalls)
	}
	if f.geoKey != "drivers_geo" || f.hashKey != "drivers_geo:meta" || f.field != "d1" {
		t.Fatalf("keys wrong: geo=%q hash=%q field=%q", f.geoKey, f.hashKey, f.field)
	}

	var got models.Driver
	if err := json.Unmarshal([]byte(f.value), &got); err != nil {
		t.Fatalf("meta value is not driver JSON: %v", err)
	}
	if got.ID != d.ID || got.Loc != d.Loc || !got.Updated.Equal(d.Updated) {
		t.Fatalf("meta mismatch: %+v", got)
	}
}

func TestUpdateRedisRetriesGeoAdd(t *testing.T) {
	f := &fakeUpdater{geoFails: 2}
	if err := updateRedisWithRetry(context.Background(), f, testDriver(), "drivers_geo", 3, time.Millisecond); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if f.geoCalls != 3 {
		t.Fatalf("expected 3 geo attempts, got %d", f.geoCalls)
	}
}

func TestUpdateRedisGivesUp(t *testing.T) {
	f := &fakeUpdater{geoFails: 10}
	if err := updateRedisWithRetry(context.Background(), f, testDriver(), "drivers_geo", 3, time.Millisecond); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if f.geoCalls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", f.geoCalls)
	}
}

func TestUpdateRedisRetriesHSet(t *testing.T) {
	f := &fakeUpdater{hsetFails: 1}
	if err := updateRedisWithRetry(context.Background(), f, testDriver(), "drivers_geo", 3, time.Millisecond); err != nil {
		t.Fatalf("expected success after hset retry, got %v", err)
	}
	if f.hsetCalls != 2 {
		t.Fatalf("expected 2 hset attempts, got %d", f.hsetCalls)
	}
}
