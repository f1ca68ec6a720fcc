package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// AcceptTxParams carries the acceptance inputs into the transaction boundary.
type AcceptTxParams struct {
	QuoteID   string
	ActorID   string
	ActorRole string
	Now       time.Time
}

// TxRepository holds the writes that only make sense inside the caller's
// transaction. Keeping them tx-scoped makes the atomicity contract visible in
// the signatures: nothing here persists unless the caller commits.
type TxRepository struct{}

func NewTxRepository() *TxRepository {
	return &TxRepository{}
}

// AcceptTx applies the accept-one/decline-rest transition. Lock order is the
// quote row first, then the parent request row; every acceptor converges on
// the request lock, so of two concurrent accepts on sibling quotes exactly one
// commits and the other re-reads status 'accepted' and fails here.
func (r *TxRepository) AcceptTx(ctx context.Context, tx pgx.Tx, params AcceptTxParams) (AcceptedSummary, error) {
	if params.QuoteID == "" {
		return AcceptedSummary{}, fmt.Errorf("quote: accept missing quote id")
	}
	if params.ActorID == "" {
		return AcceptedSummary{}, fmt.Errorf("quote: accept missing actor id")
	}

	var (
		requestID     string
		garageID      string
		amount        int64
		quoteStatus   string
		validUntil    time.Time
		firstViewedAt *time.Time
		viewExpiresAt *time.Time
	)
	const quoteSQL = `
SELECT quote_request_id::text, garage_id::text, amount, status::text, valid_until, first_viewed_at, expires_at
FROM quotes
WHERE id = $1
FOR UPDATE
`
	if err := tx.QueryRow(ctx, quoteSQL, params.QuoteID).Scan(&requestID, &garageID, &amount, &quoteStatus, &validUntil, &firstViewedAt, &viewExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AcceptedSummary{}, ErrNotFound
		}
		return AcceptedSummary{}, fmt.Errorf("quote: load quote for accept: %w", err)
	}

	const requestSQL = `
SELECT customer_id::text, status::text, expires_at
FROM quote_requests
WHERE id = $1
FOR UPDATE
`
	var (
		customerID    string
		requestStatus string
		requestCutoff time.Time
	)
	if err := tx.QueryRow(ctx, requestSQL, requestID).Scan(&customerID, &requestStatus, &requestCutoff); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Orphaned quote rows violate the schema's foreign key; loud wrap
			// so the caller can alert.
			return AcceptedSummary{}, fmt.Errorf("quote: request %s missing for quote %s: %w", requestID, params.QuoteID, ErrNotFound)
		}
		return AcceptedSummary{}, fmt.Errorf("quote: load request for accept: %w", err)
	}

	if params.ActorRole != RoleAdmin && customerID != params.ActorID {
		return AcceptedSummary{}, ErrForbidden
	}

	// Preconditions re-checked under the row locks, each a distinct failure.
	switch requestStatus {
	case "accepted":
		return AcceptedSummary{}, ErrAlreadyAccepted
	case "expired", "cancelled":
		return AcceptedSummary{}, ErrRequestInactive
	}
	if params.Now.After(requestCutoff) {
		// The sweep hasn't caught this row yet; settle it here so the caller
		// sees the same answer a post-sweep attempt would.
		if _, err := tx.Exec(ctx, `
UPDATE quote_requests
SET status = 'expired',
    updated_at = get_tx_timestamp()
WHERE id = $1 AND status IN ('open','quoted')
`, requestID); err != nil {
			return AcceptedSummary{}, fmt.Errorf("quote: lazy-expire request: %w", err)
		}
		return AcceptedSummary{}, ErrRequestInactive
	}
	if Status(quoteStatus) != StatusPending {
		return AcceptedSummary{}, &NotAcceptableError{Status: Status(quoteStatus)}
	}
	// The accept deadline is the stricter of the garage-set ceiling and, once
	// the quote has been viewed, its stamped 48-hour window.
	deadline := validUntil
	if firstViewedAt != nil && viewExpiresAt != nil && viewExpiresAt.Before(deadline) {
		deadline = *viewExpiresAt
	}
	if !params.Now.Before(deadline) {
		return AcceptedSummary{}, ErrQuoteExpired
	}

	var acceptedAt time.Time
	const acceptQuoteSQL = `
UPDATE quotes
SET status = 'accepted',
    accepted_at = $2,
    updated_at = get_tx_timestamp()
WHERE id = $1
RETURNING accepted_at
`
	if err := tx.QueryRow(ctx, acceptQuoteSQL, params.QuoteID, params.Now).Scan(&acceptedAt); err != nil {
		return AcceptedSummary{}, fmt.Errorf("quote: mark accepted: %w", err)
	}

	if _, err := tx.Exec(ctx, `
UPDATE quote_requests
SET status = 'accepted',
    accepted_quote_id = $2,
    updated_at = get_tx_timestamp()
WHERE id = $1
`, requestID, params.QuoteID); err != nil {
		return AcceptedSummary{}, fmt.Errorf("quote: mark request accepted: %w", err)
	}

	if _, err := tx.Exec(ctx, `
UPDATE quotes
SET status = 'declined',
    declined_at = $3,
    decline_reason = $4,
    updated_at = get_tx_timestamp()
WHERE quote_request_id = $1
  AND id <> $2
  AND status = 'pending'
`, requestID, params.QuoteID, params.Now, DeclineReasonAccepted); err != nil {
		return AcceptedSummary{}, fmt.Errorf("quote: decline siblings: %w", err)
	}

	var garageName string
	if err := tx.QueryRow(ctx, `SELECT name FROM garages WHERE id = $1`, garageID).Scan(&garageName); err != nil {
		return AcceptedSummary{}, fmt.Errorf("quote: load garage name: %w", err)
	}

	return AcceptedSummary{
		QuoteID:    params.QuoteID,
		RequestID:  requestID,
		GarageID:   garageID,
		GarageName: garageName,
		Amount:     amount,
		AcceptedAt: acceptedAt,
	}, nil
}

// isRetryableTxError reports serialization failures and deadlocks, the two
// shapes a lost acceptance race takes at the store level.
func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
