package trips

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/trip-dispatch/internal/models"
	"github.com/example/trip-dispatch/internal/observability"
	"github.com/example/trip-dispatch/internal/quote"
	"github.com/example/trip-dispatch/internal/storage"
	"github.com/example/trip-dispatch/internal/trip"
)

// ErrDriverBusy means the driver already holds a different active trip.
var ErrDriverBusy = errors.New("driver_busy")

// Dispatcher triggers an offer wave for a requested trip.
type Dispatcher interface {
	Dispatch(ctx context.Context, tripID string, tripVersion int) error
}

// EventPublisher receives lifecycle events, best-effort.
type EventPublisher interface {
	PublishTripEvent(ctx context.Context, ev models.TripEvent) error
}

// Service is the orchestration layer: one method per lifecycle transition,
// each following the same shape — load, idempotency short-circuit, pure
// transition, versioned write, stable error out.
type Service struct {
	Trips       storage.TripStore
	Offers      storage.OfferStore
	Assignments *storage.AssignmentTracker
	Dispatcher  Dispatcher
	Quotes      quote.Engine
	Tokens      *quote.TokenCodec
	Events      EventPublisher // optional
	Log         *slog.Logger
	Now         func() time.Time // defaults to time.Now
	NewID       func() string    // defaults to random hex
}

// Quote prices a pickup/dropoff pair and wraps the result in a signed token.
func (s *Service) Quote(ctx context.Context, pickup, dropoff models.Coord, mode trip.Mode) (trip.Quote, string, error) {
	if !mode.Valid() {
		return trip.Quote{}, "", fmt.Errorf("invalid transport mode %d", mode)
	}
	q, err := s.Quotes.Estimate(pickup, dropoff, mode, s.now())
	if err != nil {
		return trip.Quote{}, "", err
	}
	token, err := s.Tokens.Encode(q)
	if err != nil {
		return trip.Quote{}, "", err
	}
	return q, token, nil
}

// Create builds a Draft trip, attaches the quote carried by the token and
// persists it as Quoted. Requesting is a separate step.
func (s *Service) Create(ctx context.Context, riderID string, pickup, dropoff models.Coord, mode trip.Mode, token string) (trip.Trip, error) {
	now := s.now()
	q, err := s.Tokens.Decode(token)
	if err != nil {
		return trip.Trip{}, err
	}
	if q.Expired(now) {
		return trip.Trip{}, trip.ErrQuoteExpired
	}

	t, err := trip.NewDraft(s.newID(), riderID, pickup, dropoff, mode, now)
	if err != nil {
		return trip.Trip{}, err
	}
	t, err = t.ApplyQuote(q, now)
	if err != nil {
		return trip.Trip{}, err
	}
	if err := s.Trips.Add(ctx, t); err != nil {
		return trip.Trip{}, err
	}
	s.Log.Info("trip created", "trip_id", t.ID, "rider_id", riderID, "mode", t.Mode.String())
	return t, nil
}

// Request re-validates the quote token and moves the trip to Requested,
// then fires the first dispatch wave. A lapsed quote persists the Expired
// state and surfaces quote_expired.
func (s *Service) Request(ctx context.Context, tripID, token string) (trip.Trip, error) {
	now := s.now()
	q, err := s.Tokens.Decode(token)
	if err != nil {
		return trip.Trip{}, err
	}

	t, err := s.Trips.Get(ctx, tripID)
	if err != nil {
		return trip.Trip{}, err
	}
	if t.Status == trip.StatusRequested {
		return t, nil // idempotent re-request
	}
	expectedVersion := t.Version

	t, err = t.ApplyQuote(q, now)
	if err != nil {
		return t, err
	}
	next, err := t.Request(now)
	if errors.Is(err, trip.ErrQuoteExpired) {
		// persist the Expired transition so it is observable
		if uerr := s.Trips.Update(ctx, next, expectedVersion); uerr != nil {
			return next, uerr
		}
		next.Version = expectedVersion + 1
		return next, err
	}
	if err != nil {
		return t, err
	}

	if err := s.Trips.Update(ctx, next, expectedVersion); err != nil {
		return next, err
	}
	next.Version = expectedVersion + 1

	observability.TripsRequested.Inc()
	s.publish(ctx, "trip_requested", next)

	// dispatch after save, against the post-save version
	if err := s.Dispatcher.Dispatch(ctx, next.ID, next.Version); err != nil {
		s.Log.Error("initial dispatch wave failed", "trip_id", next.ID, "error", err)
	}
	return next, nil
}

// AcceptOffer is the single-winner acceptance protocol: assignment claim,
// atomic offer accept, versioned trip update — with claim rollback when a
// later step fails and recognition of an accept we already won.
func (s *Service) AcceptOffer(ctx context.Context, driverID, offerID, vehicleID string) (bool, trip.Trip, error) {
	now := s.now()
	observability.AcceptAttempts.Inc()

	offer, err := s.Offers.Get(ctx, offerID)
	if err != nil {
		return false, trip.Trip{}, err
	}
	if offer.DriverID != driverID {
		return false, trip.Trip{}, nil
	}

	t, err := s.Trips.Get(ctx, offer.TripID)
	if err != nil {
		return false, trip.Trip{}, err
	}
	if t.DriverID == driverID && !t.Status.Terminal() && t.Status >= trip.StatusAccepted {
		return true, t, nil // we already won this trip
	}

	res := s.Assignments.TryAssign(driverID, offer.TripID)
	if res == storage.AlreadyOtherTrip {
		return false, trip.Trip{}, ErrDriverBusy
	}
	claimed := res == storage.Assigned
	rollback := func() {
		if claimed {
			s.Assignments.Release(driverID, offer.TripID)
		}
	}

	ok, err := s.Offers.TryAccept(ctx, offerID, driverID, now)
	if err != nil || !ok {
		rollback()
		return false, t, err
	}

	next, err := t.Accept(driverID, vehicleID, now)
	if err != nil {
		rollback()
		return false, t, err
	}
	if err := s.Trips.Update(ctx, next, offer.TripVersion); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			// lost the race on the final write; check whether the winner was us
			if cur, gerr := s.Trips.Get(ctx, offer.TripID); gerr == nil {
				if cur.DriverID == driverID && cur.Status == trip.StatusAccepted {
					return true, cur, nil
				}
				rollback()
				return false, cur, nil
			}
		}
		rollback()
		return false, next, err
	}
	next.Version = offer.TripVersion + 1

	observability.AcceptWins.Inc()
	s.publish(ctx, "trip_accepted", next)
	s.Log.Info("offer accepted", "trip_id", next.ID, "driver_id", driverID, "offer_id", offerID)
	return true, next, nil
}

// Arrive marks the driver as arriving at the pickup point.
func (s *Service) Arrive(ctx context.Context, tripID string) (trip.Trip, error) {
	return s.transition(ctx, tripID, "trip_arriving",
		func(t trip.Trip) bool { return t.Status == trip.StatusArriving },
		func(t trip.Trip, now time.Time) (trip.Trip, error) { return t.MarkArriving(now) })
}

// Start moves the trip in progress.
func (s *Service) Start(ctx context.Context, tripID string) (trip.Trip, error) {
	return s.transition(ctx, tripID, "trip_started",
		func(t trip.Trip) bool { return t.Status == trip.StatusInProgress },
		func(t trip.Trip, now time.Time) (trip.Trip, error) { return t.Start(now) })
}

// Complete finishes the trip and releases the driver assignment.
func (s *Service) Complete(ctx context.Context, tripID string) (trip.Trip, error) {
	t, err := s.transition(ctx, tripID, "trip_completed",
		func(t trip.Trip) bool { return t.Status == trip.StatusCompleted },
		func(t trip.Trip, now time.Time) (trip.Trip, error) { return t.Complete(now) })
	if err != nil {
		return t, err
	}
	if t.DriverID != "" {
		s.Assignments.Release(t.DriverID, t.ID)
	}
	observability.TripsCompleted.Inc()
	return t, nil
}

// CancelByRider cancels a pre-InProgress trip for the rider.
func (s *Service) CancelByRider(ctx context.Context, tripID string) (trip.Trip, error) {
	return s.cancelWith(ctx, tripID, "trip_canceled_by_rider", trip.StatusCanceledByRider, trip.Trip.CancelByRider)
}

// CancelByDriver cancels a pre-InProgress trip for the driver.
func (s *Service) CancelByDriver(ctx context.Context, tripID string) (trip.Trip, error) {
	return s.cancelWith(ctx, tripID, "trip_canceled_by_driver", trip.StatusCanceledByDriver, trip.Trip.CancelByDriver)
}

func (s *Service) cancelWith(ctx context.Context, tripID, event string, to trip.Status, op func(trip.Trip, time.Time) (trip.Trip, error)) (trip.Trip, error) {
	t, err := s.transition(ctx, tripID, event,
		func(t trip.Trip) bool { return t.Status == to },
		op)
	if err != nil {
		return t, err
	}
	if t.DriverID != "" {
		s.Assignments.Release(t.DriverID, t.ID)
	}
	return t, nil
}

// OffersFor returns the driver's live offer inbox.
func (s *Service) OffersFor(ctx context.Context, driverID string) ([]models.Offer, error) {
	return s.Offers.PendingForDriver(ctx, driverID, s.now())
}

// transition is the shared load / short-circuit / apply / versioned-write
// shape. satisfied trips return as-is without a version bump.
func (s *Service) transition(ctx context.Context, tripID, event string,
	satisfied func(trip.Trip) bool,
	op func(trip.Trip, time.Time) (trip.Trip, error)) (trip.Trip, error) {

	t, err := s.Trips.Get(ctx, tripID)
	if err != nil {
		return trip.Trip{}, err
	}
	if satisfied(t) {
		return t, nil
	}
	expectedVersion := t.Version

	next, err := op(t, s.now())
	if err != nil {
		return t, err
	}
	if err := s.Trips.Update(ctx, next, expectedVersion); err != nil {
		return next, err
	}
	next.Version = expectedVersion + 1
	s.publish(ctx, event, next)
	return next, nil
}

func (s *Service) publish(ctx context.Context, typ string, t trip.Trip) {
	if s.Events == nil {
		return
	}
	ev := models.TripEvent{
		Type:     typ,
		TripID:   t.ID,
		RiderID:  t.RiderID,
		DriverID: t.DriverID,
		Status:   t.Status.String(),
		At:       s.now(),
	}
	if err := s.Events.PublishTripEvent(ctx, ev); err != nil {
		s.Log.Debug("trip event publish failed", "type", typ, "trip_id", t.ID, "error", err)
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
