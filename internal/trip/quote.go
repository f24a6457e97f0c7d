package trip

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Money is a whole-unit amount in a 3-letter ISO currency.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func NewMoney(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, errors.New("amount cannot be negative")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return Money{}, errors.New("currency must be a 3-letter ISO code")
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// Quote is an immutable priced estimate for a pickup/dropoff pair. A trip
// holds at most one, replaced wholesale on re-quote.
type Quote struct {
	DistanceMeters  int       `json:"distance_meters"`
	DurationSeconds int       `json:"duration_seconds"`
	Price           Money     `json:"price"`
	ExpiresAt       time.Time `json:"expires_at"`
	Surge           float64   `json:"surge,omitempty"` // 0 means no surge
}

// NewQuote validates and builds a fresh quote. The expiry must be strictly
// in the future relative to now.
func NewQuote(distanceMeters, durationSeconds int, price Money, expiresAt time.Time, surge float64, now time.Time) (Quote, error) {
	q, err := RestoreQuote(distanceMeters, durationSeconds, price, expiresAt, surge)
	if err != nil {
		return Quote{}, err
	}
	if !expiresAt.After(now) {
		return Quote{}, errors.New("quote must expire in the future")
	}
	return q, nil
}

// RestoreQuote rebuilds a previously issued quote, re-applying every field
// invariant but not the future-expiry check: a restored quote may already be
// lapsed, and freshness is the caller's decision.
func RestoreQuote(distanceMeters, durationSeconds int, price Money, expiresAt time.Time, surge float64) (Quote, error) {
	if distanceMeters <= 0 {
		return Quote{}, fmt.Errorf("quote distance must be positive, got %d", distanceMeters)
	}
	if durationSeconds <= 0 {
		return Quote{}, fmt.Errorf("quote duration must be positive, got %d", durationSeconds)
	}
	if surge < 0 {
		return Quote{}, fmt.Errorf("surge multiplier must be positive, got %f", surge)
	}
	if _, err := NewMoney(price.Amount, price.Currency); err != nil {
		return Quote{}, err
	}
	if expiresAt.IsZero() {
		return Quote{}, errors.New("quote expiry is required")
	}
	return Quote{
		DistanceMeters:  distanceMeters,
		DurationSeconds: durationSeconds,
		Price:           price,
		ExpiresAt:       expiresAt,
		Surge:           surge,
	}, nil
}

func (q Quote) Expired(now time.Time) bool { return !now.Before(q.ExpiresAt) }
