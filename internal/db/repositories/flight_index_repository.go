package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"rubicon/flightlog/internal/constants"
)

// FlightIdentity is the duplicate-suppression key of a stored record
type FlightIdentity struct {
	RecordNumber int64     `db:"record_number"`
	CrewID       string    `db:"crew_id"`
	OccurredOn   time.Time `db:"occurred_on"`
	OccurredAt   string    `db:"occurred_at"`
}

// FlightIndexRepo runs the read-heavy identity queries of the importer over sqlx
type FlightIndexRepo struct {
	db *sqlx.DB
}

func NewFlightIndexRepo(db *sqlx.DB) *FlightIndexRepo {
	return &FlightIndexRepo{db: db}
}

// Identities returns the identity of every stored record
func (r *FlightIndexRepo) Identities(ctx context.Context) ([]FlightIdentity, error) {
	var ids []FlightIdentity
	err := r.db.SelectContext(ctx, &ids, constants.SelectFlightIdentities)
	return ids, err
}

// NumberTaken reports whether crewID already has a record with number
func (r *FlightIndexRepo) NumberTaken(ctx context.Context, crewID string, number int64) (bool, error) {
	query := r.db.Rebind(constants.CountFlightNumber)
	var count int64
	if err := r.db.GetContext(ctx, &count, query, crewID, number); err != nil {
		return false, err
	}
	return count > 0, nil
}

// Ping checks the connection
func (r *FlightIndexRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
