package quote

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/trip-dispatch/internal/trip"
)

func testQuote(t *testing.T, expiresAt time.Time) trip.Quote {
	t.Helper()
	price, _ := trip.NewMoney(120, "SEK")
	q, err := trip.RestoreQuote(2500, 600, price, expiresAt, 0)
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func TestTokenRoundTrip(t *testing.T) {
	c := NewTokenCodec("test-secret")
	q := testQuote(t, time.Now().Add(5*time.Minute).UTC())

	token, err := c.Encode(q)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Decode(token)
	if err != nil {
		t.Fatal(err)
	}
	if got.DistanceMeters != q.DistanceMeters || got.DurationSeconds != q.DurationSeconds ||
		got.Price != q.Price || !got.ExpiresAt.Equal(q.ExpiresAt) || got.Surge != q.Surge {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, q)
	}
}

func TestTokenTamperedPayload(t *testing.T) {
	c := NewTokenCodec("test-secret")
	token, err := c.Encode(testQuote(t, time.Now().Add(5*time.Minute)))
	if err != nil {
		t.Fatal(err)
	}

	parts := strings.SplitN(token, ".", 2)
	payload, _ := base64.RawURLEncoding.DecodeString(parts[0])
	// bump the amount, keep the old signature
	tampered := strings.Replace(string(payload), `"amount":120`, `"amount":1`, 1)
	forged := base64.RawURLEncoding.EncodeToString([]byte(tampered)) + "." + parts[1]

	if _, err := c.Decode(forged); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid_quote_token, got %v", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenCodec("secret-a").Encode(testQuote(t, time.Now().Add(time.Minute)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokenCodec("secret-b").Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid_quote_token, got %v", err)
	}
}

func TestTokenMalformed(t *testing.T) {
	c := NewTokenCodec("test-secret")
	for _, tok := range []string{"", "no-dot", "!!!.???", "YQ.YQ"} {
		if _, err := c.Decode(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected invalid_quote_token, got %v", tok, err)
		}
	}
}

func TestExpiredTokenStillDecodes(t *testing.T) {
	c := NewTokenCodec("test-secret")
	now := time.Now()
	token, err := c.Encode(testQuote(t, now.Add(-time.Minute)))
	if err != nil {
		t.Fatal(err)
	}
	q, err := c.Decode(token)
	if err != nil {
		t.Fatalf("expired quotes must decode, got %v", err)
	}
	if !q.Expired(now) {
		t.Fatal("quote should report expired")
	}
}
