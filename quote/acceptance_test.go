package quote

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

// TestAcceptTx_RejectsLapsedViewWindow drives the acceptance transaction with
// a quote that was viewed three days ago: the stamped 48-hour window has
// closed even though the garage-set valid_until is still a day out. The
// accept must fail with ErrQuoteExpired, matching what the read layer derives.
func TestAcceptTx_RejectsLapsedViewWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	viewedAt := start.Add(24 * time.Hour)
	windowEnd := viewedAt.Add(DefaultViewWindow)
	validUntil := start.Add(5 * 24 * time.Hour)
	now := start.Add(4 * 24 * time.Hour)

	tx := &scriptedTx{rows: []scriptedRow{
		{vals: []any{"r-1", "g-1", int64(5000), "pending", validUntil, &viewedAt, &windowEnd}},
		{vals: []any{"u-1", "quoted", start.Add(7 * 24 * time.Hour)}},
	}}

	_, err := NewTxRepository().AcceptTx(context.Background(), tx, AcceptTxParams{
		QuoteID:   "q-1",
		ActorID:   "u-1",
		ActorRole: RoleCustomer,
		Now:       now,
	})
	if !errors.Is(err, ErrQuoteExpired) {
		t.Fatalf("expected ErrQuoteExpired, got %v", err)
	}
	if len(tx.rows) != 0 {
		t.Fatalf("expected both locked reads to run, %d left", len(tx.rows))
	}
}

// TestAcceptTx_ViewedWithinWindowPassesDeadlineCheck pins the boundary: the
// same quote one hour before its stamped window closes gets past the expiry
// checks (and fails later only because the scripted tx has no more rows).
func TestAcceptTx_ViewedWithinWindowPassesDeadlineCheck(t *testing.T) {
	start := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	viewedAt := start.Add(24 * time.Hour)
	windowEnd := viewedAt.Add(DefaultViewWindow)
	validUntil := start.Add(5 * 24 * time.Hour)
	now := windowEnd.Add(-time.Hour)

	tx := &scriptedTx{rows: []scriptedRow{
		{vals: []any{"r-1", "g-1", int64(5000), "pending", validUntil, &viewedAt, &windowEnd}},
		{vals: []any{"u-1", "quoted", start.Add(7 * 24 * time.Hour)}},
	}}

	_, err := NewTxRepository().AcceptTx(context.Background(), tx, AcceptTxParams{
		QuoteID:   "q-1",
		ActorID:   "u-1",
		ActorRole: RoleCustomer,
		Now:       now,
	})
	if errors.Is(err, ErrQuoteExpired) {
		t.Fatalf("quote inside its window must not read as expired: %v", err)
	}
}

type scriptedRow struct {
	vals []any
	err  error
}

func (r scriptedRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scripted row has %d values, scan wants %d", len(r.vals), len(dest))
	}
	for i, d := range dest {
		switch out := d.(type) {
		case *string:
			*out = r.vals[i].(string)
		case *int64:
			*out = r.vals[i].(int64)
		case *time.Time:
			*out = r.vals[i].(time.Time)
		case **time.Time:
			*out = r.vals[i].(*time.Time)
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}

// scriptedTx serves queued rows to QueryRow and runs dry afterwards.
type scriptedTx struct {
	fakeTx
	rows []scriptedRow
}

func (t *scriptedTx) QueryRow(context.Context, string, ...any) pgx.Row {
	if len(t.rows) == 0 {
		return scriptedRow{err: pgx.ErrNoRows}
	}
	row := t.rows[0]
	t.rows = t.rows[1:]
	return row
}
