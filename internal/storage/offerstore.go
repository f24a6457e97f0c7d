package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/example/trip-dispatch/internal/models"
)

// ErrOfferNotFound means the referenced offer does not exist.
var ErrOfferNotFound = errors.New("offer_not_found")

// OfferStore is append-only: offers are never deleted, only
// status-transitioned, so retried dispatch calls and audits see the full
// history.
type OfferStore interface {
	// AddMany inserts a batch; an id that already exists is a no-op, which
	// makes re-dispatch with deterministic ids idempotent.
	AddMany(ctx context.Context, offers []models.Offer) error
	Get(ctx context.Context, offerID string) (models.Offer, error)
	// PendingForDriver lists the driver's live offers oldest first,
	// lazily expiring any stale ones it walks over.
	PendingForDriver(ctx context.Context, driverID string, now time.Time) ([]models.Offer, error)
	// ListForTrip returns every offer issued for the (trip, version) pair.
	ListForTrip(ctx context.Context, tripID string, tripVersion int) ([]models.Offer, error)
	// TryAccept flips the offer to Accepted iff it belongs to the driver,
	// is still Pending and unexpired, and no sibling offer for the trip
	// has been accepted. Attempts for the same trip are strictly ordered.
	TryAccept(ctx context.Context, offerID, driverID string, now time.Time) (bool, error)
	// ExpireSweep flips every lapsed Pending offer to Expired.
	ExpireSweep(ctx context.Context, now time.Time) (int, error)
}

// MemoryOfferStore keeps offers in a mutex-guarded map. Accept attempts are
// serialized per trip id so concurrent accepts for different trips never
// contend, while attempts for the same trip see each other's outcome.
type MemoryOfferStore struct {
	mu     sync.RWMutex
	offers map[string]models.Offer
	byTrip map[string][]string // tripID -> offer ids, insertion order

	lockMu    sync.Mutex
	tripLocks map[string]*sync.Mutex
}

func NewMemoryOfferStore() *MemoryOfferStore {
	return &MemoryOfferStore{
		offers:    make(map[string]models.Offer),
		byTrip:    make(map[string][]string),
		tripLocks: make(map[string]*sync.Mutex),
	}
}

func (m *MemoryOfferStore) AddMany(ctx context.Context, offers []models.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range offers {
		if _, exists := m.offers[o.ID]; exists {
			continue
		}
		m.offers[o.ID] = o
		m.byTrip[o.TripID] = append(m.byTrip[o.TripID], o.ID)
	}
	return nil
}

func (m *MemoryOfferStore) Get(ctx context.Context, offerID string) (models.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.offers[offerID]
	if !ok {
		return models.Offer{}, ErrOfferNotFound
	}
	return o, nil
}

func (m *MemoryOfferStore) PendingForDriver(ctx context.Context, driverID string, now time.Time) ([]models.Offer, error) {
	m.mu.Lock()
	out := make([]models.Offer, 0)
	for id, o := range m.offers {
		if o.DriverID != driverID || o.Status != models.OfferPending {
			continue
		}
		if o.Expired(now) {
			o.Status = models.OfferExpired
			m.offers[id] = o
			continue
		}
		out = append(out, o)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryOfferStore) ListForTrip(ctx context.Context, tripID string, tripVersion int) ([]models.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Offer, 0)
	for _, id := range m.byTrip[tripID] {
		o := m.offers[id]
		if o.TripVersion == tripVersion {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MemoryOfferStore) TryAccept(ctx context.Context, offerID, driverID string, now time.Time) (bool, error) {
	m.mu.RLock()
	o, ok := m.offers[offerID]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}

	gate := m.tripLock(o.TripID)
	gate.Lock()
	defer gate.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// re-read under the trip gate
	o, ok = m.offers[offerID]
	if !ok {
		return false, nil
	}
	if o.DriverID != driverID || o.Status != models.OfferPending || o.Expired(now) {
		return false, nil
	}
	for _, sibID := range m.byTrip[o.TripID] {
		if m.offers[sibID].Status == models.OfferAccepted {
			return false, nil
		}
	}

	o.Status = models.OfferAccepted
	m.offers[offerID] = o
	// siblings can never win now
	for _, sibID := range m.byTrip[o.TripID] {
		if sibID == offerID {
			continue
		}
		if sib := m.offers[sibID]; sib.Status == models.OfferPending {
			sib.Status = models.OfferExpired
			m.offers[sibID] = sib
		}
	}
	return true, nil
}

func (m *MemoryOfferStore) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, o := range m.offers {
		if o.Status == models.OfferPending && o.Expired(now) {
			o.Status = models.OfferExpired
			m.offers[id] = o
			n++
		}
	}
	return n, nil
}

func (m *MemoryOfferStore) tripLock(tripID string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.tripLocks[tripID]
	if !ok {
		l = &sync.Mutex{}
		m.tripLocks[tripID] = l
	}
	return l
}
