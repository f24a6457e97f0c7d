package matcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/trip-dispatch/internal/observability"
)

// OfferExpirer is the slice of the offer store the sweeper needs.
type OfferExpirer interface {
	ExpireSweep(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically flips lapsed pending offers to expired. A failed
// sweep is logged and retried on the next tick.
type Sweeper struct {
	Offers   OfferExpirer
	Interval time.Duration
	Log      *slog.Logger
	Now      func() time.Time
}

func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	s.Log.Info("offer expiry sweeper started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Log.Info("offer expiry sweeper stopped")
			return
		case <-ticker.C:
			now := time.Now()
			if s.Now != nil {
				now = s.Now()
			}
			n, err := s.Offers.ExpireSweep(ctx, now)
			if err != nil {
				s.Log.Error("offer expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				observability.OffersExpired.Add(float64(n))
				s.Log.Debug("offers expired", "count", n)
			}
		}
	}
}
