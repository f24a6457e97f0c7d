package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/trip-dispatch/internal/models"
)

func pendingOffer(id, tripID, driverID string, now time.Time) models.Offer {
	return models.Offer{
		ID:          id,
		TripID:      tripID,
		DriverID:    driverID,
		TripVersion: 2,
		CreatedAt:   now,
		ExpiresAt:   now.Add(20 * time.Second),
		Status:      models.OfferPending,
	}
}

func TestOfferStoreAddManyIdempotent(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryOfferStore()

	o := pendingOffer("o1", "t1", "d1", now)
	if err := s.AddMany(ctx, []models.Offer{o}); err != nil {
		t.Fatal(err)
	}

	// accept, then re-add the same id; the accepted state must survive
	if ok, _ := s.TryAccept(ctx, "o1", "d1", now); !ok {
		t.Fatal("accept failed")
	}
	if err := s.AddMany(ctx, []models.Offer{o}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "o1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.OfferAccepted {
		t.Fatalf("re-add clobbered status: %s", got.Status)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("expected offer_not_found, got %v", err)
	}
}

func TestOfferStorePendingForDriver(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryOfferStore()

	fresh := pendingOffer("o-fresh", "t1", "d1", now)
	older := pendingOffer("o-older", "t2", "d1", now.Add(-5*time.Second))
	older.ExpiresAt = now.Add(10 * time.Second)
	lapsed := pendingOffer("o-lapsed", "t3", "d1", now.Add(-time.Minute))
	lapsed.ExpiresAt = now.Add(-40 * time.Second)
	other := pendingOffer("o-other", "t4", "d2", now)
	if err := s.AddMany(ctx, []models.Offer{fresh, older, lapsed, other}); err != nil {
		t.Fatal(err)
	}

	out, err := s.PendingForDriver(ctx, "d1", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].ID != "o-older" || out[1].ID != "o-fresh" {
		t.Fatalf("expected [o-older o-fresh], got %+v", out)
	}

	// the lapsed one was flipped while listing
	got, _ := s.Get(ctx, "o-lapsed")
	if got.Status != models.OfferExpired {
		t.Fatalf("lapsed offer not expired: %s", got.Status)
	}
}

func TestOfferStoreTryAcceptGuards(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryOfferStore()

	o := pendingOffer("o1", "t1", "d1", now)
	lapsed := pendingOffer("o2", "t9", "d2", now.Add(-time.Minute))
	lapsed.ExpiresAt = now.Add(-time.Second)
	if err := s.AddMany(ctx, []models.Offer{o, lapsed}); err != nil {
		t.Fatal(err)
	}

	if ok, _ := s.TryAccept(ctx, "o1", "other-driver", now); ok {
		t.Fatal("wrong driver must not accept")
	}
	if ok, _ := s.TryAccept(ctx, "o2", "d2", now); ok {
		t.Fatal("expired offer must not accept")
	}
	if ok, _ := s.TryAccept(ctx, "missing", "d1", now); ok {
		t.Fatal("missing offer must not accept")
	}
}

func TestOfferStoreSingleWinner(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryOfferStore()

	const n = 10
	offers := make([]models.Offer, 0, n)
	for i := 0; i < n; i++ {
		offers = append(offers, pendingOffer(
			fmt.Sprintf("o%d", i), "t1", fmt.Sprintf("d%d", i), now))
	}
	if err := s.AddMany(ctx, offers); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wins := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.TryAccept(ctx, fmt.Sprintf("o%d", i), fmt.Sprintf("d%d", i), now)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				wins <- fmt.Sprintf("o%d", i)
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %v", winners)
	}

	// every sibling is now expired
	all, _ := s.ListForTrip(ctx, "t1", 2)
	accepted := 0
	for _, o := range all {
		switch o.Status {
		case models.OfferAccepted:
			accepted++
		case models.OfferExpired:
		default:
			t.Fatalf("offer %s left in %s", o.ID, o.Status)
		}
	}
	if accepted != 1 {
		t.Fatalf("expected one accepted offer, got %d", accepted)
	}
}

func TestOfferStoreExpireSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryOfferStore()

	live := pendingOffer("o-live", "t1", "d1", now)
	dead1 := pendingOffer("o-dead1", "t2", "d2", now.Add(-time.Minute))
	dead1.ExpiresAt = now.Add(-time.Second)
	dead2 := pendingOffer("o-dead2", "t3", "d3", now.Add(-time.Minute))
	dead2.ExpiresAt = now.Add(-time.Second)
	if err := s.AddMany(ctx, []models.Offer{live, dead1, dead2}); err != nil {
		t.Fatal(err)
	}

	n, err := s.ExpireSweep(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 expired, got %d", n)
	}
	got, _ := s.Get(ctx, "o-live")
	if got.Status != models.OfferPending {
		t.Fatalf("live offer swept: %s", got.Status)
	}

	// second sweep finds nothing new
	if n, _ := s.ExpireSweep(ctx, now); n != 0 {
		t.Fatalf("repeat sweep expired %d", n)
	}
}

func TestOfferStoreListForTripFiltersVersion(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryOfferStore()

	v2 := pendingOffer("o1", "t1", "d1", now)
	v3 := pendingOffer("o2", "t1", "d2", now)
	v3.TripVersion = 3
	if err := s.AddMany(ctx, []models.Offer{v2, v3}); err != nil {
		t.Fatal(err)
	}

	out, _ := s.ListForTrip(ctx, "t1", 2)
	if len(out) != 1 || out[0].ID != "o1" {
		t.Fatalf("expected only v2 offers, got %+v", out)
	}
}
