package request

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("request: not found")
	// ErrDuplicateTrackingCode signals a generated tracking code collided;
	// callers regenerate and retry.
	ErrDuplicateTrackingCode = errors.New("request: duplicate tracking code")
)

type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, req Request) (Request, error)
	GetByID(ctx context.Context, id string) (Request, error)
	// GetByTracking resolves the unauthenticated lookup: the code and the
	// owning customer's email must both match.
	GetByTracking(ctx context.Context, trackingCode, email string) (Request, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Request, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status Status, cancelReason *string) (Request, error)
	// ExpireIfLapsed is the lazy sweep: a single conditional flip to expired,
	// reporting whether this call performed the write.
	ExpireIfLapsed(ctx context.Context, id string, now time.Time) (bool, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const requestColumns = `id, customer_id, tracking_code, vehicle_desc, service_desc, status::text,
	quotes_received, accepted_quote_id, expires_at, cancel_reason, created_at, updated_at`

func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, req Request) (Request, error) {
	const query = `
		INSERT INTO quote_requests (id, customer_id, tracking_code, vehicle_desc, service_desc, status, expires_at)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7)
		RETURNING ` + requestColumns

	row := tx.QueryRow(ctx, query,
		req.ID,
		req.CustomerID,
		req.TrackingCode,
		req.VehicleDesc,
		req.ServiceDesc,
		req.Status,
		req.ExpiresAt,
	)

	created, err := scanRequest(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "quote_requests_tracking_code_key" {
			return Request{}, ErrDuplicateTrackingCode
		}
		return Request{}, fmt.Errorf("request: create: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Request, error) {
	query := `SELECT ` + requestColumns + ` FROM quote_requests WHERE id = $1`

	req, err := scanRequest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("request: get by id: %w", err)
	}
	return req, nil
}

func (r *PGRepository) GetByTracking(ctx context.Context, trackingCode, email string) (Request, error) {
	const query = `
		SELECT r.id, r.customer_id, r.tracking_code, r.vehicle_desc, r.service_desc, r.status::text,
		       r.quotes_received, r.accepted_quote_id, r.expires_at, r.cancel_reason, r.created_at, r.updated_at
		FROM quote_requests r
		JOIN users u ON u.id = r.customer_id
		WHERE r.tracking_code = $1 AND lower(u.email) = lower($2)
	`

	req, err := scanRequest(r.pool.QueryRow(ctx, query, trackingCode, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Deliberately indistinguishable from a wrong email: the pair
			// must match exactly before anything is exposed.
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("request: get by tracking: %w", err)
	}
	return req, nil
}

func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Request, error) {
	query := `SELECT ` + requestColumns + ` FROM quote_requests WHERE id = $1 FOR UPDATE`

	req, err := scanRequest(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("request: get for update: %w", err)
	}
	return req, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status Status, cancelReason *string) (Request, error) {
	const query = `
		UPDATE quote_requests
		SET status = $2,
		    cancel_reason = $3,
		    updated_at = get_tx_timestamp()
		WHERE id = $1
		RETURNING ` + requestColumns

	req, err := scanRequest(tx.QueryRow(ctx, query, id, status, cancelReason))
	if err != nil {
		return Request{}, fmt.Errorf("request: update status: %w", err)
	}
	return req, nil
}

func (r *PGRepository) ExpireIfLapsed(ctx context.Context, id string, now time.Time) (bool, error) {
	const query = `
		UPDATE quote_requests
		SET status = 'expired',
		    updated_at = get_tx_timestamp()
		WHERE id = $1
		  AND status IN ('open','quoted')
		  AND expires_at < $2
	`

	tag, err := r.pool.Exec(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("request: expire if lapsed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	return req, row.Scan(
		&req.ID,
		&req.CustomerID,
		&req.TrackingCode,
		&req.VehicleDesc,
		&req.ServiceDesc,
		&req.Status,
		&req.QuotesReceived,
		&req.AcceptedQuoteID,
		&req.ExpiresAt,
		&req.CancelReason,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
}
