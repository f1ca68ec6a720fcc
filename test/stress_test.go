package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"quoteflow/test/actors"
	"quoteflow/test/chaos"
	"quoteflow/test/infra"
	"quoteflow/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 90*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent actors")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func seedRNG(seed int64) { rand.Seed(seed) }

// TestQuoteLifecycleConcurrency races submitters, viewers, acceptors, the
// sweep, and a chaos connection killer against one quote request while SQL
// oracles assert the lifecycle invariants every couple of seconds.
func TestQuoteLifecycleConcurrency(t *testing.T) {
	flag.Parse()
	seed := *flSeed
	seedRNG(seed)

	var (
		pgC        *infra.PGContainer
		dsn        string
		err        error
		usedShared bool
	)
	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	switch {
	case *flDSN != "":
		dsn = *flDSN
		usedShared = true
		pgC = &infra.PGContainer{}
	case os.Getenv("STRESS_TEST_PG_DSN") != "":
		dsn = os.Getenv("STRESS_TEST_PG_DSN")
		usedShared = true
		pgC = &infra.PGContainer{}
	default:
		if dockerAvailable(ctx) {
			pgC, dsn, err = infra.StartPostgres16(ctx, "")
			if err != nil {
				t.Fatalf("start postgres: %v", err)
			}
		} else {
			dsn, err = infra.InitLocalDatabase(ctx)
			if err != nil {
				t.Fatalf("init local database: %v", err)
			}
			pgC = &infra.PGContainer{}
		}
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, usedShared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	seedData := mustSeed(t, ctx, pool)

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	// acceptors and viewers battling over the same request's quotes
	for i := 0; i < *flConcurrency; i++ {
		g.Go(func() error { return actors.Acceptor(ctx2, pool, seedData.requestID, seedData.customerID, stop) })
		g.Go(func() error { return actors.Viewer(ctx2, pool, seedData.requestID, seedData.customerID, stop) })
	}
	for _, garageID := range seedData.garageIDs {
		garageID := garageID
		g.Go(func() error { return actors.Submitter(ctx2, pool, seedData.requestID, garageID, stop) })
	}
	g.Go(func() error { return actors.Sweeper(ctx2, pool, stop) })
	g.Go(func() error { return actors.Reader(ctx2, pool, seedData.requestID, seedData.customerID, stop) })
	go chaos.TerminateRandomBackend(ctx2, pool, stop)

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				t.Fatalf("oracle error: %v", err)
			}
			if name != "" {
				failed = true
				dumpRecent(t, ctx2, pool)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v", err)
		}
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

type seedIDs struct {
	customerID string
	requestID  string
	garageIDs  []string
}

func mustSeed(t *testing.T, ctx context.Context, pool *pgxpool.Pool) seedIDs {
	t.Helper()
	var s seedIDs

	if err := pool.QueryRow(ctx, `
		INSERT INTO users (email, full_name, password_hash)
		VALUES ($1, 'Stress Customer', 'x') RETURNING id
	`, fmt.Sprintf("stress%d@example.com", rand.Int63())).Scan(&s.customerID); err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	for i := 0; i < 4; i++ {
		var garageID string
		if err := pool.QueryRow(ctx, `
			INSERT INTO garages (name, city) VALUES ($1, 'Springfield') RETURNING id
		`, fmt.Sprintf("Stress Garage %d-%d", i, rand.Int63())).Scan(&garageID); err != nil {
			t.Fatalf("seed garage: %v", err)
		}
		s.garageIDs = append(s.garageIDs, garageID)
	}

	if err := pool.QueryRow(ctx, `
		INSERT INTO quote_requests (customer_id, tracking_code, vehicle_desc, expires_at)
		VALUES ($1, $2, 'Stress Sedan', now() + interval '7 days') RETURNING id
	`, s.customerID, fmt.Sprintf("ST%06d", rand.Intn(1000000))).Scan(&s.requestID); err != nil {
		t.Fatalf("seed request: %v", err)
	}

	return s
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	type dump struct {
		name string
		sql  string
	}
	dumps := []dump{
		{"quote_requests", `SELECT id, status, quotes_received, accepted_quote_id, expires_at, updated_at FROM quote_requests ORDER BY updated_at DESC LIMIT 20`},
		{"quotes", `SELECT id, quote_request_id, status, first_viewed_at, expires_at, accepted_at, declined_at FROM quotes ORDER BY updated_at DESC LIMIT 50`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", string(cols[i].Name), vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
