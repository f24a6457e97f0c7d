package matcher

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/trip-dispatch/internal/models"
	"github.com/example/trip-dispatch/internal/trip"
)

func TestWaveQueueTakeDue(t *testing.T) {
	now := time.Now()
	q := NewWaveQueue()

	q.Schedule("t1", 2, now.Add(time.Second))
	if _, ok := q.TakeDue(now); ok {
		t.Fatal("job taken before due")
	}
	job, ok := q.TakeDue(now.Add(2 * time.Second))
	if !ok || job.TripID != "t1" || job.TripVersion != 2 {
		t.Fatalf("expected due job, got %+v %v", job, ok)
	}
	if q.Len() != 0 {
		t.Fatal("taken job left in queue")
	}
}

func TestWaveQueueRescheduleMovesDueTime(t *testing.T) {
	now := time.Now()
	q := NewWaveQueue()

	q.Schedule("t1", 2, now)
	q.Schedule("t1", 2, now.Add(time.Minute))
	if q.Len() != 1 {
		t.Fatalf("same pair should hold one job, got %d", q.Len())
	}
	if _, ok := q.TakeDue(now); ok {
		t.Fatal("reschedule should have pushed the due time out")
	}
}

func TestSchedulerRunsDueJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	now := time.Now()

	tr := requestedTrip(t, "t1", now)
	trips := &fakeTripSource{trips: map[string]trip.Trip{"t1": tr}}
	drivers := &fakeDriverSource{drivers: []models.Driver{driverAt("d1", 59.331, 18.061, now)}}
	e, offers, queue := newTestEngine(trips, drivers, now)

	s := &Scheduler{
		Queue:  queue,
		Engine: e,
		Poll:   time.Millisecond,
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	go s.Run(ctx)

	queue.Schedule("t1", tr.Version, now)

	deadline := time.After(2 * time.Second)
	for {
		out, _ := offers.ListForTrip(ctx, "t1", tr.Version)
		if len(out) > 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("scheduler never ran the due job")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
