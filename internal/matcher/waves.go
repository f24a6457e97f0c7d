package matcher

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one scheduled follow-up wave.
type Job struct {
	TripID      string
	TripVersion int
	Due         time.Time
}

type waveKey struct {
	tripID  string
	version int
}

// WaveQueue holds at most one pending follow-up wave per (trip, version).
// Rescheduling the same pair just moves its due time.
type WaveQueue struct {
	mu   sync.Mutex
	jobs map[waveKey]Job
}

func NewWaveQueue() *WaveQueue {
	return &WaveQueue{jobs: make(map[waveKey]Job)}
}

func (q *WaveQueue) Schedule(tripID string, tripVersion int, due time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[waveKey{tripID, tripVersion}] = Job{TripID: tripID, TripVersion: tripVersion, Due: due}
}

// TakeDue removes and returns one job whose due time has passed.
func (q *WaveQueue) TakeDue(now time.Time) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for k, j := range q.jobs {
		if !j.Due.After(now) {
			delete(q.jobs, k)
			return j, true
		}
	}
	return Job{}, false
}

func (q *WaveQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Scheduler drains due wave jobs and re-invokes the engine. A failed wave is
// logged and left to the engine's own rescheduling; the loop itself never
// stops before ctx is canceled.
type Scheduler struct {
	Queue  *WaveQueue
	Engine *Engine
	Poll   time.Duration
	Log    *slog.Logger
	Now    func() time.Time
}

func (s *Scheduler) Run(ctx context.Context) {
	poll := s.Poll
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	s.Log.Info("wave scheduler started", "poll", poll)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Log.Info("wave scheduler stopped")
			return
		case <-ticker.C:
			s.drain(ctx)
		}
	}
}

func (s *Scheduler) drain(ctx context.Context) {
	for {
		job, ok := s.Queue.TakeDue(s.now())
		if !ok {
			return
		}
		if err := s.Engine.Dispatch(ctx, job.TripID, job.TripVersion); err != nil {
			s.Log.Error("wave dispatch failed", "trip_id", job.TripID, "trip_version", job.TripVersion, "error", err)
		}
	}
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
