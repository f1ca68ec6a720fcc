package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"quoteflow/quote"
	"quoteflow/request"
)

// Submitter keeps attaching fresh quotes to the request through the real
// service. Submissions against a settled request are expected to bounce.
func Submitter(ctx context.Context, pool *pgxpool.Pool, requestID, garageID string, stop <-chan struct{}) error {
	svc := quote.NewService(pool, quote.NewStore(pool), nil)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := svc.Submit(ctx, quote.SubmitParams{
			RequestID:  requestID,
			GarageID:   garageID,
			ActorRole:  quote.RoleGarage,
			Amount:     int64(5000 + rand.Intn(20000)),
			ValidUntil: time.Now().Add(6 * 24 * time.Hour),
		})
		if err != nil && !expectedSubmitError(err) {
			return fmt.Errorf("submitter: %w", err)
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Viewer records first views on random quotes of the request. Repeat and
// racing views must be absorbed idempotently.
func Viewer(ctx context.Context, pool *pgxpool.Pool, requestID, customerID string, stop <-chan struct{}) error {
	svc := quote.NewService(pool, quote.NewStore(pool), nil)
	store := quote.NewStore(pool)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		quotes, err := store.ListByRequest(ctx, requestID)
		if err != nil {
			return fmt.Errorf("viewer list: %w", err)
		}
		if len(quotes) > 0 {
			target := quotes[rand.Intn(len(quotes))]
			if _, err := svc.RecordFirstView(ctx, quote.RecordViewParams{
				QuoteID:   target.ID,
				ActorID:   customerID,
				ActorRole: quote.RoleCustomer,
			}); err != nil && !errors.Is(err, quote.ErrNotFound) {
				return fmt.Errorf("viewer: %w", err)
			}
		}
		time.Sleep(time.Duration(15+rand.Intn(30)) * time.Millisecond)
	}
}

// Acceptor races to accept a random pending quote, retrying once on conflict
// the way the API layer does. Exactly one acceptor ever succeeds per request.
func Acceptor(ctx context.Context, pool *pgxpool.Pool, requestID, customerID string, stop <-chan struct{}) error {
	svc := quote.NewService(pool, quote.NewStore(pool), nil)
	store := quote.NewStore(pool)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		quotes, err := store.ListByRequest(ctx, requestID)
		if err != nil {
			return fmt.Errorf("acceptor list: %w", err)
		}

		pending := quotes[:0:0]
		for _, q := range quotes {
			if q.Status == quote.StatusPending {
				pending = append(pending, q)
			}
		}
		if len(pending) > 0 {
			params := quote.AcceptParams{
				QuoteID:   pending[rand.Intn(len(pending))].ID,
				ActorID:   customerID,
				ActorRole: quote.RoleCustomer,
			}
			_, err := svc.Accept(ctx, params)
			if errors.Is(err, quote.ErrTransactionConflict) {
				_, err = svc.Accept(ctx, params)
			}
			if err != nil && !expectedAcceptError(err) {
				return fmt.Errorf("acceptor: %w", err)
			}
		}
		time.Sleep(time.Duration(25+rand.Intn(50)) * time.Millisecond)
	}
}

// Sweeper runs the request expiry sweep on a tight loop; re-running it over
// settled rows must stay a no-op.
func Sweeper(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	sweeper := request.NewSweeper(pool)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if _, err := sweeper.Sweep(ctx); err != nil {
			return fmt.Errorf("sweeper: %w", err)
		}
		time.Sleep(time.Duration(100+rand.Intn(100)) * time.Millisecond)
	}
}

// Reader assembles the projection over and over; derived state must never
// error regardless of what the writers are doing.
func Reader(ctx context.Context, pool *pgxpool.Pool, requestID, customerID string, stop <-chan struct{}) error {
	projection := request.NewProjection(request.NewRepository(pool), quote.NewStore(pool), quote.DefaultExpiryConfig())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if _, err := projection.GetByID(ctx, request.GetParams{
			RequestID: requestID,
			ActorID:   customerID,
			ActorRole: "customer",
		}); err != nil && !errors.Is(err, request.ErrNotFound) {
			return fmt.Errorf("reader: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

func expectedSubmitError(err error) bool {
	return errors.Is(err, quote.ErrRequestInactive) ||
		errors.Is(err, quote.ErrNotFound) ||
		isConnectionNoise(err)
}

func expectedAcceptError(err error) bool {
	return errors.Is(err, quote.ErrAlreadyAccepted) ||
		errors.Is(err, quote.ErrRequestInactive) ||
		errors.Is(err, quote.ErrQuoteNotAcceptable) ||
		errors.Is(err, quote.ErrQuoteExpired) ||
		errors.Is(err, quote.ErrTransactionConflict) ||
		errors.Is(err, quote.ErrNotFound) ||
		isConnectionNoise(err)
}

// isConnectionNoise absorbs failures injected by the chaos connection killer.
func isConnectionNoise(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{"terminating connection", "connection reset", "unexpected EOF", "conn closed", "broken pipe"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
