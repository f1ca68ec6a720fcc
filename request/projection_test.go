package request

import (
	"context"
	"errors"
	"testing"
	"time"

	"quoteflow/quote"
)

type fakeQuoteLister struct {
	quotes []quote.Quote
	err    error
}

func (f *fakeQuoteLister) ListByRequest(ctx context.Context, requestID string) ([]quote.Quote, error) {
	return f.quotes, f.err
}

func pendingQuote(id string, validUntil time.Time) quote.Quote {
	return quote.Quote{ID: id, RequestID: "r-1", Status: quote.StatusPending, ValidUntil: validUntil}
}

func TestProjectionGetByID_OwnerSeesQuotes(t *testing.T) {
	repo := newFakeRepo()
	repo.byID["r-1"] = Request{ID: "r-1", CustomerID: "u-1", Status: StatusQuoted, ExpiresAt: testNow.Add(24 * time.Hour)}
	lister := &fakeQuoteLister{quotes: []quote.Quote{
		pendingQuote("q-1", testNow.Add(48*time.Hour)),
		pendingQuote("q-2", testNow.Add(48*time.Hour)),
	}}

	p := NewProjection(repo, lister, quote.DefaultExpiryConfig()).WithClock(func() time.Time { return testNow })

	view, err := p.GetByID(context.Background(), GetParams{RequestID: "r-1", ActorID: "u-1", ActorRole: "customer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(view.Quotes))
	}
	for _, qv := range view.Quotes {
		if !qv.Actionable {
			t.Fatalf("pending quote under live request must be actionable: %+v", qv)
		}
		if qv.Derived.DisplayStatus != quote.StatusPending {
			t.Fatalf("expected pending display, got %s", qv.Derived.DisplayStatus)
		}
	}
	if repo.expireCalled {
		t.Fatal("live request must not trigger the lazy sweep")
	}
}

func TestProjectionGetByID_StrangerForbidden(t *testing.T) {
	repo := newFakeRepo()
	repo.byID["r-1"] = Request{ID: "r-1", CustomerID: "u-1", Status: StatusOpen, ExpiresAt: testNow.Add(time.Hour)}

	p := NewProjection(repo, &fakeQuoteLister{}, quote.DefaultExpiryConfig())

	_, err := p.GetByID(context.Background(), GetParams{RequestID: "r-1", ActorID: "intruder", ActorRole: "customer"})
	if !errors.Is(err, ErrProjectionForbidden) {
		t.Fatalf("expected ErrProjectionForbidden, got %v", err)
	}
}

func TestProjectionGetByID_AdminAllowed(t *testing.T) {
	repo := newFakeRepo()
	repo.byID["r-1"] = Request{ID: "r-1", CustomerID: "u-1", Status: StatusOpen, ExpiresAt: testNow.Add(time.Hour)}

	p := NewProjection(repo, &fakeQuoteLister{}, quote.DefaultExpiryConfig()).WithClock(func() time.Time { return testNow })

	if _, err := p.GetByID(context.Background(), GetParams{RequestID: "r-1", ActorID: "admin-1", ActorRole: "admin"}); err != nil {
		t.Fatalf("admin read should succeed, got %v", err)
	}
}

func TestProjection_LazySweepOnLapsedRequest(t *testing.T) {
	repo := newFakeRepo()
	repo.byID["r-1"] = Request{ID: "r-1", CustomerID: "u-1", Status: StatusQuoted, ExpiresAt: testNow.Add(-time.Hour)}
	repo.expireResult = true
	lister := &fakeQuoteLister{quotes: []quote.Quote{pendingQuote("q-1", testNow.Add(48 * time.Hour))}}

	p := NewProjection(repo, lister, quote.DefaultExpiryConfig()).WithClock(func() time.Time { return testNow })

	view, err := p.GetByID(context.Background(), GetParams{RequestID: "r-1", ActorID: "u-1", ActorRole: "customer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.expireCalled {
		t.Fatal("expected the lazy sweep to fire")
	}
	if view.Request.Status != StatusExpired {
		t.Fatalf("expected expired request in view, got %s", view.Request.Status)
	}

	qv := view.Quotes[0]
	if !qv.Derived.IsExpired {
		t.Fatal("quote under expired request must derive expired")
	}
	if qv.Actionable {
		t.Fatal("quote under expired request must not be actionable")
	}
}

func TestProjection_LazySweepRaceRereads(t *testing.T) {
	// The conditional flip writes nothing when another path settled the row;
	// the projection must re-read and report the settled status.
	repo := newFakeRepo()
	repo.byID["r-1"] = Request{ID: "r-1", CustomerID: "u-1", Status: StatusQuoted, ExpiresAt: testNow.Add(-time.Hour)}
	repo.expireResult = false
	repo.afterExpire = func() {
		req := repo.byID["r-1"]
		req.Status = StatusAccepted
		repo.byID["r-1"] = req
	}

	p := NewProjection(repo, &fakeQuoteLister{}, quote.DefaultExpiryConfig()).WithClock(func() time.Time { return testNow })

	view, err := p.GetByID(context.Background(), GetParams{RequestID: "r-1", ActorID: "u-1", ActorRole: "customer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Request.Status != StatusAccepted {
		t.Fatalf("expected re-read settled status, got %s", view.Request.Status)
	}
}

func TestProjectionGetByTracking_RequiresBothFields(t *testing.T) {
	p := NewProjection(newFakeRepo(), &fakeQuoteLister{}, quote.DefaultExpiryConfig())

	if _, err := p.GetByTracking(context.Background(), "", "dana@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty code, got %v", err)
	}
	if _, err := p.GetByTracking(context.Background(), "ABCD2345", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty email, got %v", err)
	}
}

func TestProjectionGetByTracking_MatchedPair(t *testing.T) {
	repo := newFakeRepo()
	repo.byTracking["ABCD2345|dana@example.com"] = Request{
		ID: "r-1", CustomerID: "u-1", TrackingCode: "ABCD2345",
		Status: StatusOpen, ExpiresAt: testNow.Add(time.Hour),
	}

	p := NewProjection(repo, &fakeQuoteLister{}, quote.DefaultExpiryConfig()).WithClock(func() time.Time { return testNow })

	view, err := p.GetByTracking(context.Background(), "ABCD2345", "dana@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Request.TrackingCode != "ABCD2345" {
		t.Fatalf("unexpected request %+v", view.Request)
	}

	if _, err := p.GetByTracking(context.Background(), "ABCD2345", "wrong@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("mismatched pair must read as not found, got %v", err)
	}
}

func TestProjection_ViewedQuoteCountdown(t *testing.T) {
	viewedAt := testNow.Add(-44 * time.Hour)
	expiresAt := viewedAt.Add(quote.DefaultViewWindow)
	q := quote.Quote{
		ID: "q-1", RequestID: "r-1", Status: quote.StatusPending,
		ValidUntil:    testNow.Add(5 * 24 * time.Hour),
		FirstViewedAt: &viewedAt,
		ExpiresAt:     &expiresAt,
	}

	repo := newFakeRepo()
	repo.byID["r-1"] = Request{ID: "r-1", CustomerID: "u-1", Status: StatusQuoted, ExpiresAt: testNow.Add(24 * time.Hour)}

	p := NewProjection(repo, &fakeQuoteLister{quotes: []quote.Quote{q}}, quote.DefaultExpiryConfig()).
		WithClock(func() time.Time { return testNow })

	view, err := p.GetByID(context.Background(), GetParams{RequestID: "r-1", ActorID: "u-1", ActorRole: "customer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	qv := view.Quotes[0]
	if qv.Derived.DisplayStatus != quote.StatusViewed {
		t.Fatalf("expected viewed display, got %s", qv.Derived.DisplayStatus)
	}
	if qv.Derived.Remaining != 4*time.Hour {
		t.Fatalf("expected 4h remaining, got %s", qv.Derived.Remaining)
	}
	if !qv.Derived.IsExpiringSoon {
		t.Fatal("4h remaining must flag expiring soon")
	}
	if !qv.Actionable {
		t.Fatal("viewed-but-live quote must remain actionable")
	}
}
