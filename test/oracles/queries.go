package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks run against the live schema while actors
// hammer it. Each query selects VIOLATING rows; an empty result means healthy.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_accepted_quote_per_request",
			SQL: `SELECT quote_request_id, COUNT(*) FROM quotes
                  WHERE status = 'accepted'
                  GROUP BY quote_request_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_accepted_backreference_consistent",
			SQL: `SELECT r.id FROM quote_requests r
                  WHERE (r.status = 'accepted') <> (r.accepted_quote_id IS NOT NULL)
                  UNION ALL
                  SELECT r.id FROM quote_requests r
                  JOIN quotes q ON q.id = r.accepted_quote_id
                  WHERE q.status <> 'accepted' OR q.quote_request_id <> r.id`,
		},
		{
			Name: "O3_no_pending_sibling_under_accepted_request",
			SQL: `SELECT q.id FROM quotes q
                  JOIN quote_requests r ON r.id = q.quote_request_id
                  WHERE r.status = 'accepted'
                    AND q.id <> r.accepted_quote_id
                    AND q.status NOT IN ('declined','expired','cancelled')`,
		},
		{
			Name: "O4_declined_siblings_carry_reason",
			SQL: `SELECT id FROM quotes
                  WHERE status = 'declined'
                    AND (declined_at IS NULL OR decline_reason IS NULL)`,
		},
		{
			Name: "O5_view_pair_stamped_together",
			SQL: `SELECT id FROM quotes
                  WHERE (first_viewed_at IS NULL) <> (expires_at IS NULL)`,
		},
		{
			Name: "O6_view_window_length",
			SQL: `SELECT id FROM quotes
                  WHERE first_viewed_at IS NOT NULL
                    AND expires_at <> first_viewed_at + interval '48 hours'`,
		},
		{
			Name: "O7_accepted_at_present_on_winners",
			SQL: `SELECT id FROM quotes
                  WHERE (status = 'accepted') <> (accepted_at IS NOT NULL)`,
		},
		{
			Name: "O8_quotes_received_matches_rows",
			SQL: `SELECT r.id FROM quote_requests r
                  WHERE r.quotes_received <> (SELECT COUNT(*) FROM quotes q WHERE q.quote_request_id = r.id)`,
		},
		{
			Name: "O9_no_quotes_on_unquoted_open_request",
			SQL: `SELECT r.id FROM quote_requests r
                  WHERE r.status = 'open'
                    AND EXISTS (SELECT 1 FROM quotes q WHERE q.quote_request_id = r.id)`,
		},
		{
			Name: "O10_accepted_request_not_lapsed_at_accept",
			SQL: `SELECT r.id FROM quote_requests r
                  JOIN quotes q ON q.id = r.accepted_quote_id
                  WHERE r.status = 'accepted' AND q.accepted_at > r.expires_at`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row
// text) or an empty name when every invariant holds.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
