package quote

import (
	"math"
	"testing"
	"time"

	"github.com/example/trip-dispatch/internal/models"
	"github.com/example/trip-dispatch/internal/trip"
)

var (
	pickup  = models.Coord{Lat: 59.33, Lon: 18.06}
	dropoff = models.Coord{Lat: 59.34, Lon: 18.09}
)

func TestEstimate(t *testing.T) {
	now := time.Now()
	e := Engine{Pricing: DefaultPricing()}

	q, err := e.Estimate(pickup, dropoff, trip.ModeCar, now)
	if err != nil {
		t.Fatal(err)
	}
	if q.DistanceMeters < 1500 || q.DistanceMeters > 2500 {
		t.Fatalf("unexpected distance %d", q.DistanceMeters)
	}

	p := e.Pricing
	wantDur := int(math.Ceil(float64(q.DistanceMeters)/p.SpeedMps)) + int(p.PickupOverhead.Seconds())
	if q.DurationSeconds != wantDur {
		t.Fatalf("duration: got %d want %d", q.DurationSeconds, wantDur)
	}

	wantAmount := int64(math.Round(p.BaseFee +
		p.PerKm*float64(q.DistanceMeters)/1000.0 +
		p.PerMinute*float64(q.DurationSeconds)/60.0))
	if q.Price.Amount != wantAmount {
		t.Fatalf("amount: got %d want %d", q.Price.Amount, wantAmount)
	}
	if q.Price.Currency != "SEK" {
		t.Fatalf("currency: got %s", q.Price.Currency)
	}
	if !q.ExpiresAt.Equal(now.Add(p.TTL)) {
		t.Fatalf("expiry: got %v want %v", q.ExpiresAt, now.Add(p.TTL))
	}
}

func TestEstimateDeterministic(t *testing.T) {
	now := time.Now()
	e := Engine{Pricing: DefaultPricing()}
	a, err := e.Estimate(pickup, dropoff, trip.ModeCar, now)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Estimate(pickup, dropoff, trip.ModeCar, now)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("same inputs must price identically: %+v vs %+v", a, b)
	}
}

func TestEstimateZeroLengthLeg(t *testing.T) {
	now := time.Now()
	e := Engine{Pricing: DefaultPricing()}
	q, err := e.Estimate(pickup, pickup, trip.ModeCar, now)
	if err != nil {
		t.Fatal(err)
	}
	if q.DistanceMeters != 1 {
		t.Fatalf("zero-length legs clamp to 1m, got %d", q.DistanceMeters)
	}
	if q.Price.Amount < int64(e.Pricing.BaseFee) {
		t.Fatalf("price below base fee: %d", q.Price.Amount)
	}
}
