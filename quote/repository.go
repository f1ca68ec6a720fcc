package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the pool-scoped data access the service needs outside the
// acceptance transaction.
type Store interface {
	GetByID(ctx context.Context, id string) (Quote, error)
	// GetWithOwner returns the quote together with the parent request's
	// ownership and lifecycle fields, for authorization and derived state.
	GetWithOwner(ctx context.Context, id string) (Quote, RequestMeta, error)
	ListByRequest(ctx context.Context, requestID string) ([]Quote, error)
	// StampFirstView sets first_viewed_at/expires_at iff still unset. The
	// returned bool reports whether this call won the conditional write.
	StampFirstView(ctx context.Context, id string, viewedAt, expiresAt time.Time) (Quote, bool, error)
}

// RequestMeta carries the parent-request context a quote read needs: who owns
// it and whether it can still resolve quotes.
type RequestMeta struct {
	CustomerID string
	Status     string
	ExpiresAt  time.Time
}

// Active reports whether the parent request can still receive or resolve
// quotes.
func (m RequestMeta) Active() bool {
	return m.Status == "open" || m.Status == "quoted"
}

// Expired reports whether the parent request reads as expired at the given
// instant, including rows the sweep has not flipped yet.
func (m RequestMeta) Expired(now time.Time) bool {
	return m.Status == "expired" || (m.Active() && now.After(m.ExpiresAt))
}

type PGStore struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const quoteColumns = `id, quote_request_id, garage_id, amount, message, status::text, valid_until,
	first_viewed_at, expires_at, accepted_at, declined_at, decline_reason, created_at, updated_at`

func (s *PGStore) GetByID(ctx context.Context, id string) (Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE id = $1`

	q, err := scanQuote(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, fmt.Errorf("quote: get by id: %w", err)
	}
	return q, nil
}

func (s *PGStore) GetWithOwner(ctx context.Context, id string) (Quote, RequestMeta, error) {
	query := `
		SELECT ` + prefixed("q") + `, r.customer_id::text, r.status::text, r.expires_at
		FROM quotes q
		JOIN quote_requests r ON r.id = q.quote_request_id
		WHERE q.id = $1
	`

	var meta RequestMeta
	q, err := scanQuoteWith(s.pool.QueryRow(ctx, query, id), &meta.CustomerID, &meta.Status, &meta.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, RequestMeta{}, ErrNotFound
		}
		return Quote{}, RequestMeta{}, fmt.Errorf("quote: get with owner: %w", err)
	}
	return q, meta, nil
}

func (s *PGStore) ListByRequest(ctx context.Context, requestID string) ([]Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE quote_request_id = $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("quote: list by request: %w", err)
	}
	defer rows.Close()

	quotes := make([]Quote, 0, 8)
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("quote: scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quote: iterate quotes: %w", err)
	}
	return quotes, nil
}

// StampFirstView performs the set-if-null write that starts the view window.
// Two racing first views both reach this statement; only one matches the
// IS NULL guard and commits its timestamps.
func (s *PGStore) StampFirstView(ctx context.Context, id string, viewedAt, expiresAt time.Time) (Quote, bool, error) {
	query := `
		UPDATE quotes
		SET first_viewed_at = $2,
		    expires_at = $3,
		    updated_at = get_tx_timestamp()
		WHERE id = $1 AND first_viewed_at IS NULL
		RETURNING ` + quoteColumns

	q, err := scanQuote(s.pool.QueryRow(ctx, query, id, viewedAt, expiresAt))
	if err == nil {
		return q, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, false, fmt.Errorf("quote: stamp first view: %w", err)
	}

	// Guard didn't match: either the quote is gone or another view already
	// started the clock. Re-read to distinguish.
	q, err = s.GetByID(ctx, id)
	if err != nil {
		return Quote{}, false, err
	}
	return q, false, nil
}

func scanQuote(row pgx.Row) (Quote, error) {
	return scanQuoteWith(row)
}

func scanQuoteWith(row pgx.Row, extra ...any) (Quote, error) {
	var q Quote
	dest := []any{
		&q.ID,
		&q.RequestID,
		&q.GarageID,
		&q.Amount,
		&q.Message,
		&q.Status,
		&q.ValidUntil,
		&q.FirstViewedAt,
		&q.ExpiresAt,
		&q.AcceptedAt,
		&q.DeclinedAt,
		&q.DeclineReason,
		&q.CreatedAt,
		&q.UpdatedAt,
	}
	dest = append(dest, extra...)
	return q, row.Scan(dest...)
}

// prefixed qualifies the quote column list with a table alias for joins.
func prefixed(alias string) string {
	return alias + `.id, ` + alias + `.quote_request_id, ` + alias + `.garage_id, ` + alias + `.amount, ` +
		alias + `.message, ` + alias + `.status::text, ` + alias + `.valid_until, ` + alias + `.first_viewed_at, ` +
		alias + `.expires_at, ` + alias + `.accepted_at, ` + alias + `.declined_at, ` + alias + `.decline_reason, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}
