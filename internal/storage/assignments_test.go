package storage

import "testing"

func TestAssignmentTracker(t *testing.T) {
	a := NewAssignmentTracker()

	if res := a.TryAssign("d1", "t1"); res != Assigned {
		t.Fatalf("first claim: got %d", res)
	}
	if res := a.TryAssign("d1", "t1"); res != AlreadySameTrip {
		t.Fatalf("repeat claim: got %d", res)
	}
	if res := a.TryAssign("d1", "t2"); res != AlreadyOtherTrip {
		t.Fatalf("conflicting claim: got %d", res)
	}

	if tripID, ok := a.AssignedTrip("d1"); !ok || tripID != "t1" {
		t.Fatalf("assigned trip: got %q %v", tripID, ok)
	}
	if _, ok := a.AssignedTrip("d2"); ok {
		t.Fatal("unassigned driver reported busy")
	}
}

func TestAssignmentReleaseIsGuarded(t *testing.T) {
	a := NewAssignmentTracker()
	a.TryAssign("d1", "t1")

	// a stale release for another trip must not drop the claim
	a.Release("d1", "t-stale")
	if _, ok := a.AssignedTrip("d1"); !ok {
		t.Fatal("stale release dropped the assignment")
	}

	a.Release("d1", "t1")
	if _, ok := a.AssignedTrip("d1"); ok {
		t.Fatal("release did not clear the assignment")
	}
	if res := a.TryAssign("d1", "t2"); res != Assigned {
		t.Fatalf("driver should be free after release: got %d", res)
	}
}
