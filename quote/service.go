package quote

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Transactor defines the tx-scoped writes the service orchestrates.
type Transactor interface {
	AcceptTx(ctx context.Context, tx pgx.Tx, params AcceptTxParams) (AcceptedSummary, error)
	SubmitTx(ctx context.Context, tx pgx.Tx, params SubmitTxParams) (Quote, error)
}

const defaultAcceptTimeout = 5 * time.Second

type Service struct {
	pool          TxBeginner
	store         Store
	txRepo        Transactor
	cfg           ExpiryConfig
	now           func() time.Time
	idGen         func() string
	acceptTimeout time.Duration
}

func NewService(pool TxBeginner, store Store, txRepo Transactor) *Service {
	if txRepo == nil {
		txRepo = NewTxRepository()
	}
	return &Service{
		pool:          pool,
		store:         store,
		txRepo:        txRepo,
		cfg:           DefaultExpiryConfig(),
		now:           time.Now,
		idGen:         func() string { return uuid.NewString() },
		acceptTimeout: defaultAcceptTimeout,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

func (s *Service) WithExpiryConfig(cfg ExpiryConfig) *Service {
	s.cfg = cfg
	return s
}

func (s *Service) WithAcceptTimeout(d time.Duration) *Service {
	s.acceptTimeout = d
	return s
}

// ExpiryConfig exposes the configured windows so read layers derive state with
// the same numbers the write path uses.
func (s *Service) ExpiryConfig() ExpiryConfig {
	return s.cfg
}

type AcceptParams struct {
	QuoteID   string
	ActorID   string
	ActorRole string
}

// Accept runs the accept-one/decline-rest transition as one transaction. On
// any error the deferred rollback discards every write; partial state is never
// observable. Lost races surface as ErrTransactionConflict (retryable once by
// the caller) or ErrAlreadyAccepted (terminal).
func (s *Service) Accept(ctx context.Context, params AcceptParams) (AcceptedSummary, error) {
	if params.QuoteID == "" {
		return AcceptedSummary{}, fmt.Errorf("quote: accept missing quote id")
	}
	if params.ActorID == "" {
		return AcceptedSummary{}, fmt.Errorf("quote: accept missing actor id")
	}

	ctx, cancel := context.WithTimeout(ctx, s.acceptTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return AcceptedSummary{}, fmt.Errorf("quote: begin accept tx: %w", err)
	}
	defer tx.Rollback(ctx)

	summary, err := s.txRepo.AcceptTx(ctx, tx, AcceptTxParams{
		QuoteID:   params.QuoteID,
		ActorID:   params.ActorID,
		ActorRole: params.ActorRole,
		Now:       s.now(),
	})
	if err != nil {
		if isRetryableTxError(err) {
			return AcceptedSummary{}, ErrTransactionConflict
		}
		return AcceptedSummary{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		if isRetryableTxError(err) {
			return AcceptedSummary{}, ErrTransactionConflict
		}
		return AcceptedSummary{}, fmt.Errorf("quote: commit accept: %w", err)
	}

	return summary, nil
}

type RecordViewParams struct {
	QuoteID   string
	ActorID   string
	ActorRole string
}

// ViewResult pairs the quote with its parent-request context so callers can
// derive display state without a second read.
type ViewResult struct {
	Quote   Quote
	Request RequestMeta
}

// RecordFirstView starts the quote's view window exactly once. Repeat calls
// and racing calls return the quote with the originally stamped timestamps;
// the clock never restarts.
func (s *Service) RecordFirstView(ctx context.Context, params RecordViewParams) (ViewResult, error) {
	if params.QuoteID == "" {
		return ViewResult{}, fmt.Errorf("quote: view missing quote id")
	}

	q, meta, err := s.store.GetWithOwner(ctx, params.QuoteID)
	if err != nil {
		return ViewResult{}, err
	}
	if params.ActorRole != RoleAdmin && meta.CustomerID != params.ActorID {
		return ViewResult{}, ErrForbidden
	}
	if q.FirstViewedAt != nil {
		return ViewResult{Quote: q, Request: meta}, nil
	}

	now := s.now()
	stamped, _, err := s.store.StampFirstView(ctx, params.QuoteID, now, now.Add(s.cfg.ViewWindow))
	if err != nil {
		return ViewResult{}, err
	}
	return ViewResult{Quote: stamped, Request: meta}, nil
}

type SubmitParams struct {
	RequestID  string
	GarageID   string
	ActorRole  string
	Amount     int64
	Message    *string
	ValidUntil time.Time
}

// Submit attaches a garage's quote to an open request.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (Quote, error) {
	if params.ActorRole != RoleGarage && params.ActorRole != RoleAdmin {
		return Quote{}, ErrForbidden
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Quote{}, fmt.Errorf("quote: begin submit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	q, err := s.txRepo.SubmitTx(ctx, tx, SubmitTxParams{
		QuoteID:    s.idGen(),
		RequestID:  params.RequestID,
		GarageID:   params.GarageID,
		Amount:     params.Amount,
		Message:    params.Message,
		ValidUntil: params.ValidUntil,
		Now:        s.now(),
	})
	if err != nil {
		return Quote{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Quote{}, fmt.Errorf("quote: commit submit: %w", err)
	}

	return q, nil
}
