package trip

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/trip-dispatch/internal/models"
)

// Stable domain error conditions. Callers branch with errors.Is; the text
// doubles as the wire-visible error code.
var (
	ErrTripFinal         = errors.New("trip_final")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrQuoteExpired      = errors.New("quote_expired")
	ErrMissingQuote      = errors.New("missing_quote")
)

// Trip is the ride aggregate. Transitions are pure: each operation takes the
// current value and returns the next one, leaving the receiver untouched, so
// the store layer alone decides whether a result is persisted. Version is
// bumped by the store on every accepted write, never here.
type Trip struct {
	ID        string       `json:"trip_id"`
	RiderID   string       `json:"rider_id"`
	Mode      Mode         `json:"mode"`
	Status    Status       `json:"status"`
	Pickup    models.Coord `json:"pickup"`
	Dropoff   models.Coord `json:"dropoff"`
	Quote     *Quote       `json:"quote,omitempty"`
	DriverID  string       `json:"driver_id,omitempty"`
	VehicleID string       `json:"vehicle_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Version   int          `json:"version"`
}

// NewDraft creates a trip in Draft for the given rider.
func NewDraft(id, riderID string, pickup, dropoff models.Coord, mode Mode, now time.Time) (Trip, error) {
	if strings.TrimSpace(id) == "" {
		return Trip{}, errors.New("trip id is required")
	}
	if strings.TrimSpace(riderID) == "" {
		return Trip{}, errors.New("rider id is required")
	}
	if !mode.Valid() {
		return Trip{}, fmt.Errorf("invalid transport mode %d", mode)
	}
	if pickup.Lat < -90 || pickup.Lat > 90 || dropoff.Lat < -90 || dropoff.Lat > 90 ||
		pickup.Lon < -180 || pickup.Lon > 180 || dropoff.Lon < -180 || dropoff.Lon > 180 {
		return Trip{}, errors.New("coordinates out of range")
	}
	return Trip{
		ID:        id,
		RiderID:   riderID,
		Mode:      mode,
		Status:    StatusDraft,
		Pickup:    pickup,
		Dropoff:   dropoff,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ApplyQuote attaches (or replaces) the quote. Draft/Quoted -> Quoted.
func (t Trip) ApplyQuote(q Quote, now time.Time) (Trip, error) {
	if err := t.ensureNotFinal(); err != nil {
		return t, err
	}
	if t.Status != StatusDraft && t.Status != StatusQuoted {
		return t, fmt.Errorf("%w: cannot apply quote when %s", ErrInvalidTransition, t.Status)
	}
	t.Quote = &q
	t.Status = StatusQuoted
	t.UpdatedAt = now
	return t, nil
}

// Request moves Quoted -> Requested. A lapsed quote instead moves the trip
// to Expired; the returned state must still be persisted so the expiry is
// observable, alongside the quote_expired error.
func (t Trip) Request(now time.Time) (Trip, error) {
	if err := t.ensureNotFinal(); err != nil {
		return t, err
	}
	if t.Status != StatusQuoted {
		return t, fmt.Errorf("%w: trip must be Quoted before Requested, is %s", ErrInvalidTransition, t.Status)
	}
	if t.Quote == nil {
		return t, ErrMissingQuote
	}
	if t.Quote.Expired(now) {
		t.Status = StatusExpired
		t.UpdatedAt = now
		return t, ErrQuoteExpired
	}
	t.Status = StatusRequested
	t.UpdatedAt = now
	return t, nil
}

// Accept moves Requested -> Accepted and binds driver and vehicle. Both are
// set exactly once here and never change afterward.
func (t Trip) Accept(driverID, vehicleID string, now time.Time) (Trip, error) {
	if err := t.ensureNotFinal(); err != nil {
		return t, err
	}
	if t.Status != StatusRequested {
		return t, fmt.Errorf("%w: trip must be Requested before Accepted, is %s", ErrInvalidTransition, t.Status)
	}
	if strings.TrimSpace(driverID) == "" {
		return t, errors.New("driver id is required")
	}
	if strings.TrimSpace(vehicleID) == "" {
		return t, errors.New("vehicle id is required")
	}
	t.DriverID = driverID
	t.VehicleID = strings.TrimSpace(vehicleID)
	t.Status = StatusAccepted
	t.UpdatedAt = now
	return t, nil
}

// MarkArriving moves Accepted -> Arriving.
func (t Trip) MarkArriving(now time.Time) (Trip, error) {
	if err := t.ensureNotFinal(); err != nil {
		return t, err
	}
	if t.Status != StatusAccepted {
		return t, fmt.Errorf("%w: trip must be Accepted before Arriving, is %s", ErrInvalidTransition, t.Status)
	}
	t.Status = StatusArriving
	t.UpdatedAt = now
	return t, nil
}

// Start moves Accepted/Arriving -> InProgress.
func (t Trip) Start(now time.Time) (Trip, error) {
	if err := t.ensureNotFinal(); err != nil {
		return t, err
	}
	if t.Status != StatusAccepted && t.Status != StatusArriving {
		return t, fmt.Errorf("%w: trip must be Accepted or Arriving before InProgress, is %s", ErrInvalidTransition, t.Status)
	}
	t.Status = StatusInProgress
	t.UpdatedAt = now
	return t, nil
}

// Complete moves InProgress -> Completed.
func (t Trip) Complete(now time.Time) (Trip, error) {
	if err := t.ensureNotFinal(); err != nil {
		return t, err
	}
	if t.Status != StatusInProgress {
		return t, fmt.Errorf("%w: trip must be InProgress before Completed, is %s", ErrInvalidTransition, t.Status)
	}
	t.Status = StatusCompleted
	t.UpdatedAt = now
	return t, nil
}

// CancelByRider cancels any pre-InProgress trip on behalf of the rider.
func (t Trip) CancelByRider(now time.Time) (Trip, error) {
	return t.cancel(StatusCanceledByRider, now)
}

// CancelByDriver cancels any pre-InProgress trip on behalf of the driver.
func (t Trip) CancelByDriver(now time.Time) (Trip, error) {
	return t.cancel(StatusCanceledByDriver, now)
}

func (t Trip) cancel(to Status, now time.Time) (Trip, error) {
	if err := t.ensureNotFinal(); err != nil {
		return t, err
	}
	if t.Status == StatusInProgress {
		return t, fmt.Errorf("%w: cannot cancel after trip has started", ErrInvalidTransition)
	}
	t.Status = to
	t.UpdatedAt = now
	return t, nil
}

func (t Trip) ensureNotFinal() error {
	if t.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTripFinal, t.Status)
	}
	return nil
}
