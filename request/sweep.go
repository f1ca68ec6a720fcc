package request

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sweeper expires quote requests whose 7-day window lapsed without an
// acceptance. Safe to run concurrently with reads and acceptance: the flip is
// guarded on open/quoted, a transition acceptance re-checks under its own
// locks, and re-running over already-expired rows writes nothing.
type Sweeper struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewSweeper(pool *pgxpool.Pool) *Sweeper {
	return &Sweeper{pool: pool, now: time.Now}
}

func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Sweep transitions every lapsed open/quoted request to expired and returns
// the number of rows flipped. Individual quotes keep their stored statuses;
// the read layer derives their display state.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	const query = `
		UPDATE quote_requests
		SET status = 'expired',
		    updated_at = get_tx_timestamp()
		WHERE status IN ('open','quoted')
		  AND expires_at < $1
	`

	tag, err := s.pool.Exec(ctx, query, s.now())
	if err != nil {
		return 0, fmt.Errorf("request: sweep expired: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Run executes the sweep on the given interval until the context ends.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration, onSwept func(int64)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				return err
			}
			if n > 0 && onSwept != nil {
				onSwept(n)
			}
		}
	}
}
