package matcher

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

type countingExpirer struct {
	calls chan struct{}
}

func (c *countingExpirer) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	select {
	case c.calls <- struct{}{}:
	default:
	}
	return 0, nil
}

func TestSweeperRunsAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exp := &countingExpirer{calls: make(chan struct{}, 1)}
	s := &Sweeper{
		Offers:   exp,
		Interval: time.Millisecond,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-exp.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never swept")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}
