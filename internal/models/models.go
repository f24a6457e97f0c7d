package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Driver is the presence record used for dispatch candidate selection:
// last reported location plus availability.
type Driver struct {
	ID      string    `json:"id"`
	Loc     Coord     `json:"loc"`
	Online  bool      `json:"online"`
	Updated time.Time `json:"updated"`
}

type OfferStatus string

const (
	OfferPending  OfferStatus = "PENDING"
	OfferAccepted OfferStatus = "ACCEPTED"
	OfferExpired  OfferStatus = "EXPIRED"
)

// Offer is a time-boxed invitation for one driver to take one trip.
// TripVersion snapshots the trip version the offer was issued against;
// a trip that has since moved on makes the offer stale.
type Offer struct {
	ID          string      `json:"offer_id"`
	TripID      string      `json:"trip_id"`
	DriverID    string      `json:"driver_id"`
	TripVersion int         `json:"trip_version"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Status      OfferStatus `json:"status"`
}

func (o Offer) Expired(now time.Time) bool { return !o.ExpiresAt.After(now) }
