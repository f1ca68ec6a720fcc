package request

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quoteflow/quote"
)

var ErrProjectionForbidden = errors.New("request: projection forbidden")

// QuoteLister is the slice of the quote store the projection needs.
type QuoteLister interface {
	ListByRequest(ctx context.Context, requestID string) ([]quote.Quote, error)
}

// QuoteView pairs a stored quote with its derived display state.
type QuoteView struct {
	Quote   quote.Quote
	Derived quote.Derived
	// Actionable reports whether accept is still worth offering: the request
	// is live, the quote is stored pending, and its clock hasn't run out.
	Actionable bool
}

// View is the customer- or garage-facing read model of a request and its
// quote set.
type View struct {
	Request Request
	Quotes  []QuoteView
}

// Projection assembles the request-with-quotes read model. Every read applies
// the lazy request sweep and passes each quote through the expiry calculator,
// so stale pending rows display as expired without requiring a sweep run.
type Projection struct {
	requests Repository
	quotes   QuoteLister
	cfg      quote.ExpiryConfig
	now      func() time.Time
}

func NewProjection(requests Repository, quotes QuoteLister, cfg quote.ExpiryConfig) *Projection {
	return &Projection{
		requests: requests,
		quotes:   quotes,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (p *Projection) WithClock(now func() time.Time) *Projection {
	p.now = now
	return p
}

type GetParams struct {
	RequestID string
	ActorID   string
	ActorRole string
}

// GetByID returns the projection for an authenticated owner or admin.
func (p *Projection) GetByID(ctx context.Context, params GetParams) (View, error) {
	req, err := p.requests.GetByID(ctx, params.RequestID)
	if err != nil {
		return View{}, err
	}

	if params.ActorRole != "admin" && req.CustomerID != params.ActorID {
		return View{}, ErrProjectionForbidden
	}

	return p.assemble(ctx, req)
}

// GetByTracking returns the projection for the unauthenticated
// (trackingCode, email) lookup. A mismatched pair reads as not found.
func (p *Projection) GetByTracking(ctx context.Context, trackingCode, email string) (View, error) {
	if trackingCode == "" || email == "" {
		return View{}, fmt.Errorf("request: tracking lookup requires code and email: %w", ErrNotFound)
	}

	req, err := p.requests.GetByTracking(ctx, trackingCode, email)
	if err != nil {
		return View{}, err
	}

	return p.assemble(ctx, req)
}

func (p *Projection) assemble(ctx context.Context, req Request) (View, error) {
	now := p.now()

	if req.Status.Active() && now.After(req.ExpiresAt) {
		swept, err := p.requests.ExpireIfLapsed(ctx, req.ID, now)
		if err != nil {
			return View{}, err
		}
		if swept {
			req.Status = StatusExpired
		} else {
			// Lost a race against the sweep or an acceptance; re-read for
			// the settled status.
			req, err = p.requests.GetByID(ctx, req.ID)
			if err != nil {
				return View{}, err
			}
		}
	}

	quotes, err := p.quotes.ListByRequest(ctx, req.ID)
	if err != nil {
		return View{}, err
	}

	requestExpired := req.Status == StatusExpired
	views := make([]QuoteView, 0, len(quotes))
	for _, q := range quotes {
		derived := quote.DeriveState(q, requestExpired, now, p.cfg)
		views = append(views, QuoteView{
			Quote:      q,
			Derived:    derived,
			Actionable: req.Status.Active() && q.Status == quote.StatusPending && !derived.IsExpired,
		})
	}

	return View{Request: req, Quotes: views}, nil
}
