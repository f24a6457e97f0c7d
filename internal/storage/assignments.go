package storage

import "sync"

// AssignResult is the outcome of a driver assignment claim.
type AssignResult int

const (
	Assigned AssignResult = iota
	AlreadySameTrip
	AlreadyOtherTrip
)

// AssignmentTracker enforces at-most-one-active-trip-per-driver. The claim
// happens at offer acceptance; matching-time availability filtering is only
// an optimization, this is the correctness boundary.
type AssignmentTracker struct {
	mu     sync.Mutex
	active map[string]string // driverID -> tripID
}

func NewAssignmentTracker() *AssignmentTracker {
	return &AssignmentTracker{active: make(map[string]string)}
}

// TryAssign atomically claims the driver for the trip, failing closed if the
// driver already holds a different trip.
func (a *AssignmentTracker) TryAssign(driverID, tripID string) AssignResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.active[driverID]; ok {
		if existing == tripID {
			return AlreadySameTrip
		}
		return AlreadyOtherTrip
	}
	a.active[driverID] = tripID
	return Assigned
}

// Release removes the mapping only if it still points at tripID, so a stale
// release can never drop a newer assignment.
func (a *AssignmentTracker) Release(driverID, tripID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.active[driverID]; ok && existing == tripID {
		delete(a.active, driverID)
	}
}

// AssignedTrip returns the trip the driver is committed to, if any.
func (a *AssignmentTracker) AssignedTrip(driverID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	tripID, ok := a.active[driverID]
	return tripID, ok
}
