package matcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/trip-dispatch/internal/geo"
	"github.com/example/trip-dispatch/internal/models"
	"github.com/example/trip-dispatch/internal/observability"
	"github.com/example/trip-dispatch/internal/storage"
	"github.com/example/trip-dispatch/internal/trip"
)

type TripSource interface {
	Get(ctx context.Context, id string) (trip.Trip, error)
}

type OfferSink interface {
	AddMany(ctx context.Context, offers []models.Offer) error
	ListForTrip(ctx context.Context, tripID string, tripVersion int) ([]models.Offer, error)
}

// DriverSource feeds candidate selection with recent driver presence.
type DriverSource interface {
	Snapshot(ctx context.Context, maxAge time.Duration, now time.Time) ([]models.Driver, error)
}

// Notifier pushes a fresh offer to the driver, best-effort.
type Notifier interface {
	Offer(driverID string, o models.Offer) error
}

// Options is the dispatch tuning surface.
type Options struct {
	MaxOffersPerTrip int
	SearchRadiusM    float64
	LocationMaxAge   time.Duration
	OfferTTL         time.Duration
	Wave1Count       int
	WaveNCount       int
	WaveDelay        time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxOffersPerTrip: 5,
		SearchRadiusM:    6000,
		LocationMaxAge:   45 * time.Second,
		OfferTTL:         20 * time.Second,
		Wave1Count:       2,
		WaveNCount:       2,
		WaveDelay:        3 * time.Second,
	}
}

// Engine issues waves of offers for requested trips. Dispatch is idempotent
// per (trip id, trip version): already-offered drivers are never offered
// again and the per-trip cap is never exceeded, so retried and scheduled
// invocations are safe.
type Engine struct {
	Trips   TripSource
	Offers  OfferSink
	Drivers DriverSource
	Queue   *WaveQueue
	Notify  Notifier // optional
	Opts    Options
	Log     *slog.Logger
	Now     func() time.Time // defaults to time.Now
}

// Dispatch runs one wave for the trip at the given version snapshot.
func (e *Engine) Dispatch(ctx context.Context, tripID string, tripVersion int) error {
	now := e.now()

	t, err := e.Trips.Get(ctx, tripID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("dispatch read trip: %w", err)
	}
	// someone else progressed or canceled the trip; nothing to do
	if t.Status != trip.StatusRequested {
		return nil
	}

	existing, err := e.Offers.ListForTrip(ctx, tripID, tripVersion)
	if err != nil {
		return fmt.Errorf("dispatch list offers: %w", err)
	}
	if len(existing) >= e.Opts.MaxOffersPerTrip {
		return nil
	}

	waveSize := e.Opts.Wave1Count
	if len(existing) > 0 {
		waveSize = e.Opts.WaveNCount
	}
	if remaining := e.Opts.MaxOffersPerTrip - len(existing); waveSize > remaining {
		waveSize = remaining
	}

	offered := make(map[string]bool, len(existing))
	for _, o := range existing {
		offered[o.DriverID] = true
	}

	drivers, err := e.Drivers.Snapshot(ctx, e.Opts.LocationMaxAge, now)
	if err != nil {
		return fmt.Errorf("dispatch driver snapshot: %w", err)
	}

	type candidate struct {
		d    models.Driver
		dist float64
	}
	cands := make([]candidate, 0, len(drivers))
	for _, d := range drivers {
		if !d.Online || offered[d.ID] {
			continue
		}
		dist := geo.Haversine(t.Pickup.Lat, t.Pickup.Lon, d.Loc.Lat, d.Loc.Lon)
		if dist > e.Opts.SearchRadiusM {
			continue
		}
		cands = append(cands, candidate{d, dist})
	}
	if len(cands) == 0 {
		e.Log.Debug("dispatch wave found no candidates", "trip_id", tripID, "trip_version", tripVersion)
		return nil
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if len(cands) > waveSize {
		cands = cands[:waveSize]
	}

	offers := make([]models.Offer, 0, len(cands))
	for _, c := range cands {
		offers = append(offers, models.Offer{
			ID:          OfferID(tripID, tripVersion, c.d.ID),
			TripID:      tripID,
			DriverID:    c.d.ID,
			TripVersion: tripVersion,
			CreatedAt:   now,
			ExpiresAt:   now.Add(e.Opts.OfferTTL),
			Status:      models.OfferPending,
		})
	}
	if err := e.Offers.AddMany(ctx, offers); err != nil {
		return fmt.Errorf("dispatch persist offers: %w", err)
	}

	observability.WavesDispatched.Inc()
	observability.OffersCreated.Add(float64(len(offers)))
	e.Log.Info("dispatch wave issued",
		"trip_id", tripID, "trip_version", tripVersion,
		"offers", len(offers), "already_offered", len(existing))

	if e.Notify != nil {
		for _, o := range offers {
			if err := e.Notify.Offer(o.DriverID, o); err != nil {
				e.Log.Debug("offer push skipped", "driver_id", o.DriverID, "error", err)
			}
		}
	}

	if e.Queue != nil && len(existing)+len(offers) < e.Opts.MaxOffersPerTrip {
		e.Queue.Schedule(tripID, tripVersion, now.Add(e.Opts.WaveDelay))
	}
	return nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// OfferID derives a stable offer id from the (trip, version, driver)
// triple, so re-dispatching the same wave produces the same ids and the
// append-only offer store dedupes them.
func OfferID(tripID string, tripVersion int, driverID string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("offer:%s:%d:%s", tripID, tripVersion, driverID)))
	return hex.EncodeToString(sum[:16])
}
