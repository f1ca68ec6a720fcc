package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// SubmitTxParams enumerates the fields required to attach a new quote to an
// open request inside the caller's transaction.
type SubmitTxParams struct {
	QuoteID    string
	RequestID  string
	GarageID   string
	Amount     int64
	Message    *string
	ValidUntil time.Time
	Now        time.Time
}

// SubmitTx inserts a pending quote and bumps the parent request's counters.
// The request row is locked first so the received count and the open->quoted
// flip stay consistent under concurrent submissions.
func (r *TxRepository) SubmitTx(ctx context.Context, tx pgx.Tx, params SubmitTxParams) (Quote, error) {
	if params.RequestID == "" {
		return Quote{}, fmt.Errorf("quote: submit missing request id")
	}
	if params.GarageID == "" {
		return Quote{}, fmt.Errorf("quote: submit missing garage id")
	}
	if params.Amount <= 0 {
		return Quote{}, fmt.Errorf("quote: submit invalid amount")
	}
	if !params.ValidUntil.After(params.Now) {
		return Quote{}, fmt.Errorf("quote: submit valid_until must be in the future")
	}

	const requestSQL = `
SELECT status::text, expires_at
FROM quote_requests
WHERE id = $1
FOR UPDATE
`
	var (
		requestStatus string
		requestCutoff time.Time
	)
	if err := tx.QueryRow(ctx, requestSQL, params.RequestID).Scan(&requestStatus, &requestCutoff); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, fmt.Errorf("quote: load request for submit: %w", err)
	}

	if requestStatus != "open" && requestStatus != "quoted" {
		return Quote{}, ErrRequestInactive
	}
	if params.Now.After(requestCutoff) {
		return Quote{}, ErrRequestInactive
	}

	const insertSQL = `
INSERT INTO quotes (id, quote_request_id, garage_id, amount, message, status, valid_until)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, 'pending', $6)
RETURNING ` + quoteColumns

	q, err := scanQuote(tx.QueryRow(ctx, insertSQL,
		params.QuoteID,
		params.RequestID,
		params.GarageID,
		params.Amount,
		params.Message,
		params.ValidUntil,
	))
	if err != nil {
		return Quote{}, fmt.Errorf("quote: insert quote: %w", err)
	}

	if _, err := tx.Exec(ctx, `
UPDATE quote_requests
SET quotes_received = quotes_received + 1,
    status = CASE WHEN status = 'open' THEN 'quoted'::quote_request_status ELSE status END,
    updated_at = get_tx_timestamp()
WHERE id = $1
`, params.RequestID); err != nil {
		return Quote{}, fmt.Errorf("quote: bump request counters: %w", err)
	}

	return q, nil
}
