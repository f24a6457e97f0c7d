package quote

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/example/trip-dispatch/internal/trip"
)

// ErrInvalidToken covers malformed structure, bad encoding, signature
// mismatch, and payloads that fail quote reconstruction.
var ErrInvalidToken = errors.New("invalid_quote_token")

// TokenCodec turns quotes into stateless bearer tokens:
// base64url(JSON payload) + "." + base64url(HMAC-SHA256(payload, secret)).
// No server-side state; the token is the sole source of truth for the
// quote's content, bounded by its embedded expiry.
type TokenCodec struct {
	secret []byte
}

func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret)}
}

type tokenPayload struct {
	DistanceMeters  int       `json:"distance_meters"`
	DurationSeconds int       `json:"duration_seconds"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	ExpiresAt       time.Time `json:"expires_at"`
	Surge           float64   `json:"surge,omitempty"`
}

func (c *TokenCodec) Encode(q trip.Quote) (string, error) {
	payload := tokenPayload{
		DistanceMeters:  q.DistanceMeters,
		DurationSeconds: q.DurationSeconds,
		Amount:          q.Price.Amount,
		Currency:        q.Price.Currency,
		ExpiresAt:       q.ExpiresAt,
		Surge:           q.Surge,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sig := c.sign(b)
	enc := base64.RawURLEncoding
	return enc.EncodeToString(b) + "." + enc.EncodeToString(sig), nil
}

// Decode verifies the signature in constant time and reconstructs the quote
// through its validating constructor. An expired quote decodes fine; the
// caller owns the freshness check.
func (c *TokenCodec) Decode(token string) (trip.Quote, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return trip.Quote{}, ErrInvalidToken
	}
	enc := base64.RawURLEncoding
	payload, err := enc.DecodeString(parts[0])
	if err != nil {
		return trip.Quote{}, ErrInvalidToken
	}
	sig, err := enc.DecodeString(parts[1])
	if err != nil {
		return trip.Quote{}, ErrInvalidToken
	}
	if !hmac.Equal(sig, c.sign(payload)) {
		return trip.Quote{}, ErrInvalidToken
	}

	var p tokenPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return trip.Quote{}, ErrInvalidToken
	}
	q, err := trip.RestoreQuote(p.DistanceMeters, p.DurationSeconds,
		trip.Money{Amount: p.Amount, Currency: p.Currency}, p.ExpiresAt, p.Surge)
	if err != nil {
		return trip.Quote{}, ErrInvalidToken
	}
	return q, nil
}

func (c *TokenCodec) sign(data []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(data)
	return mac.Sum(nil)
}
