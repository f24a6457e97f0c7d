package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/lib/pq"

	"github.com/example/trip-dispatch/internal/trip"
)

// PostgresTripStore backs the TripStore contract with postgres. The version
// predicate in the UPDATE is the CAS: a stale write matches zero rows.
type PostgresTripStore struct {
	db *sql.DB
}

func NewPostgresTripStore(dsn string) (*PostgresTripStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresTripStore{db: db}, nil
}

func (p *PostgresTripStore) Add(ctx context.Context, t trip.Trip) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO trips(id, rider_id, status, version, doc, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7)`,
		t.ID, t.RiderID, int(t.Status), t.Version, doc, t.CreatedAt, t.UpdatedAt)
	return err
}

func (p *PostgresTripStore) Get(ctx context.Context, id string) (trip.Trip, error) {
	var doc []byte
	var version int
	err := p.db.QueryRowContext(ctx,
		`SELECT doc, version FROM trips WHERE id=$1`, id).Scan(&doc, &version)
	if err == sql.ErrNoRows {
		return trip.Trip{}, ErrNotFound
	}
	if err != nil {
		return trip.Trip{}, err
	}
	var t trip.Trip
	if err := json.Unmarshal(doc, &t); err != nil {
		return trip.Trip{}, err
	}
	t.Version = version
	return t, nil
}

func (p *PostgresTripStore) Update(ctx context.Context, t trip.Trip, expectedVersion int) error {
	t.Version = expectedVersion + 1
	doc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE trips SET status=$1, version=$2, doc=$3, updated_at=$4
		 WHERE id=$5 AND version=$6`,
		int(t.Status), t.Version, doc, t.UpdatedAt, t.ID, expectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// distinguish missing from stale
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM trips WHERE id=$1)`, t.ID).Scan(&exists); err == nil && !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}
