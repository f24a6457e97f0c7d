package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/example/trip-dispatch/internal/trip"
)

var (
	// ErrNotFound means the referenced trip does not exist.
	ErrNotFound = errors.New("trip_not_found")
	// ErrVersionConflict means the write was based on a stale read; the
	// caller should reload and retry or surface the conflict.
	ErrVersionConflict = errors.New("concurrency_conflict")
)

// TripStore persists trip aggregates with optimistic versioning. Version
// increases by exactly one per accepted write and never changes on a
// rejected one.
type TripStore interface {
	Add(ctx context.Context, t trip.Trip) error
	Get(ctx context.Context, id string) (trip.Trip, error)
	// Update persists t only if the stored version still equals
	// expectedVersion, bumping the version by one. ErrVersionConflict
	// otherwise.
	Update(ctx context.Context, t trip.Trip, expectedVersion int) error
}

// MemoryTripStore is the in-memory reference implementation: a private
// mutex-guarded map of value copies, CAS via the version counter.
type MemoryTripStore struct {
	mu    sync.RWMutex
	trips map[string]trip.Trip
}

func NewMemoryTripStore() *MemoryTripStore {
	return &MemoryTripStore{trips: make(map[string]trip.Trip)}
}

func (m *MemoryTripStore) Add(ctx context.Context, t trip.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.trips[t.ID]; exists {
		return fmt.Errorf("trip already exists: %s", t.ID)
	}
	m.trips[t.ID] = t
	return nil
}

func (m *MemoryTripStore) Get(ctx context.Context, id string) (trip.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	if !ok {
		return trip.Trip{}, ErrNotFound
	}
	return t, nil
}

func (m *MemoryTripStore) Update(ctx context.Context, t trip.Trip, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.trips[t.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Version != expectedVersion {
		return ErrVersionConflict
	}
	t.Version = expectedVersion + 1
	m.trips[t.ID] = t
	return nil
}

// ListByRider returns the rider's trips, newest first. Read-model
// convenience for the query endpoints; not part of the TripStore contract.
func (m *MemoryTripStore) ListByRider(ctx context.Context, riderID string) ([]trip.Trip, error) {
	return m.list(func(t trip.Trip) bool { return t.RiderID == riderID })
}

// ListByDriver returns the driver's trips, newest first.
func (m *MemoryTripStore) ListByDriver(ctx context.Context, driverID string) ([]trip.Trip, error) {
	return m.list(func(t trip.Trip) bool { return t.DriverID == driverID })
}

func (m *MemoryTripStore) list(keep func(trip.Trip) bool) ([]trip.Trip, error) {
	m.mu.RLock()
	out := make([]trip.Trip, 0)
	for _, t := range m.trips {
		if keep(t) {
			out = append(out, t)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
