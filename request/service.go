package request

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrCancelForbidden    = errors.New("request: cancel forbidden")
	ErrCancelInvalidState = errors.New("request: cancel invalid state")
)

const trackingCodeAttempts = 5

type Service struct {
	pool    TxBeginner
	repo    Repository
	idGen   func() string
	codeGen func() (string, error)
	now     func() time.Time
	window  time.Duration
}

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

func NewService(pool TxBeginner, repo Repository) *Service {
	return &Service{
		pool:    pool,
		repo:    repo,
		idGen:   func() string { return uuid.NewString() },
		codeGen: NewTrackingCode,
		now:     time.Now,
		window:  RequestWindow,
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

func (s *Service) WithCodeGenerator(gen func() (string, error)) *Service {
	s.codeGen = gen
	return s
}

type CreateParams struct {
	CustomerID  string
	VehicleDesc string
	ServiceDesc string
}

// Create opens a new quote request with a fresh tracking code and the 7-day
// solicitation window. Tracking-code collisions are retried with a new code.
func (s *Service) Create(ctx context.Context, params CreateParams) (Request, error) {
	if params.CustomerID == "" {
		return Request{}, fmt.Errorf("request: missing customer id")
	}
	if strings.TrimSpace(params.VehicleDesc) == "" {
		return Request{}, fmt.Errorf("request: vehicle description required")
	}

	now := s.now()

	for attempt := 0; attempt < trackingCodeAttempts; attempt++ {
		code, err := s.codeGen()
		if err != nil {
			return Request{}, err
		}

		created, err := s.createOnce(ctx, Request{
			ID:           s.idGen(),
			CustomerID:   params.CustomerID,
			TrackingCode: code,
			VehicleDesc:  strings.TrimSpace(params.VehicleDesc),
			ServiceDesc:  strings.TrimSpace(params.ServiceDesc),
			Status:       StatusOpen,
			ExpiresAt:    now.Add(s.window),
		})
		if errors.Is(err, ErrDuplicateTrackingCode) {
			continue
		}
		if err != nil {
			return Request{}, err
		}
		return created, nil
	}

	return Request{}, fmt.Errorf("request: exhausted tracking code attempts: %w", ErrDuplicateTrackingCode)
}

func (s *Service) createOnce(ctx context.Context, req Request) (Request, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Request{}, fmt.Errorf("request: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := s.repo.Create(ctx, tx, req)
	if err != nil {
		return Request{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Request{}, fmt.Errorf("request: commit tx: %w", err)
	}
	return created, nil
}

type CancelParams struct {
	RequestID string
	ActorID   string
	ActorRole string
	Reason    *string
}

// Cancel moves an active request to cancelled. Owner or admin only; terminal
// and expired requests stay as they are.
func (s *Service) Cancel(ctx context.Context, params CancelParams) (Request, error) {
	if params.RequestID == "" {
		return Request{}, fmt.Errorf("request: cancel missing request id")
	}
	if params.ActorID == "" {
		return Request{}, fmt.Errorf("request: cancel missing actor id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Request{}, fmt.Errorf("request: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := s.repo.GetForUpdate(ctx, tx, params.RequestID)
	if err != nil {
		return Request{}, err
	}

	actorRole := strings.ToLower(params.ActorRole)
	if actorRole != "customer" && actorRole != "admin" {
		return Request{}, ErrCancelForbidden
	}
	if actorRole != "admin" && req.CustomerID != params.ActorID {
		return Request{}, ErrCancelForbidden
	}

	if !req.Status.Active() {
		return Request{}, ErrCancelInvalidState
	}

	var reason *string
	if params.Reason != nil {
		trimmed := strings.TrimSpace(*params.Reason)
		if trimmed != "" {
			reason = &trimmed
		}
	}

	updated, err := s.repo.UpdateStatus(ctx, tx, params.RequestID, StatusCancelled, reason)
	if err != nil {
		return Request{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Request{}, fmt.Errorf("request: cancel commit: %w", err)
	}

	return updated, nil
}
