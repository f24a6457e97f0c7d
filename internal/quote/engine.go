package quote

import (
	"math"
	"time"

	"github.com/example/trip-dispatch/internal/geo"
	"github.com/example/trip-dispatch/internal/models"
	"github.com/example/trip-dispatch/internal/trip"
)

// Pricing holds the tariff used by the estimator. All amounts are whole
// currency units except the per-unit rates.
type Pricing struct {
	Currency        string
	BaseFee         float64
	PerKm           float64
	PerMinute       float64
	SpeedMps        float64       // assumed average travel speed
	PickupOverhead  time.Duration // flat dispatch overhead added to duration
	TTL             time.Duration
}

func DefaultPricing() Pricing {
	return Pricing{
		Currency:       "SEK",
		BaseFee:        45,
		PerKm:          14,
		PerMinute:      3.5,
		SpeedMps:       35_000.0 / 3600.0, // ~35 km/h
		PickupOverhead: 3 * time.Minute,
		TTL:            5 * time.Minute,
	}
}

// Engine computes quotes. It is a pure function of its inputs plus the
// tariff; no I/O, no clock reads.
type Engine struct {
	Pricing Pricing
}

// Estimate prices a pickup->dropoff pair at the given instant. The mode is
// validated but does not affect the tariff yet.
func (e Engine) Estimate(pickup, dropoff models.Coord, mode trip.Mode, now time.Time) (trip.Quote, error) {
	p := e.Pricing
	if p.SpeedMps <= 0 {
		p = DefaultPricing()
	}

	distanceM := int(math.Round(geo.Haversine(pickup.Lat, pickup.Lon, dropoff.Lat, dropoff.Lon)))
	if distanceM <= 0 {
		distanceM = 1 // zero-length legs still price at the base fee
	}

	durationS := int(math.Ceil(float64(distanceM)/p.SpeedMps)) + int(p.PickupOverhead.Seconds())

	km := float64(distanceM) / 1000.0
	minutes := float64(durationS) / 60.0
	amount := p.BaseFee + p.PerKm*km + p.PerMinute*minutes
	// round to whole currency units, ties away from zero
	price, err := trip.NewMoney(int64(math.Round(amount)), p.Currency)
	if err != nil {
		return trip.Quote{}, err
	}

	return trip.NewQuote(distanceM, durationS, price, now.Add(p.TTL), 0, now)
}
