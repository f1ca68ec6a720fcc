package quote

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusViewed    Status = "viewed"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is a resolved end state. Viewed and
// expired are display statuses: stored rows keep 'pending' until a write
// resolves them.
func (s Status) Terminal() bool {
	switch s {
	case StatusAccepted, StatusDeclined, StatusCancelled:
		return true
	default:
		return false
	}
}

// DeclineReasonAccepted is stamped on every pending sibling when a competing
// quote wins acceptance.
const DeclineReasonAccepted = "Customer accepted another quote"

// Actor roles as the surrounding API layer reports them.
const (
	RoleCustomer = "customer"
	RoleGarage   = "garage"
	RoleAdmin    = "admin"
)

// Quote mirrors the quotes table columns touched by the service.
type Quote struct {
	ID            string
	RequestID     string
	GarageID      string
	Amount        int64
	Message       *string
	Status        Status
	ValidUntil    time.Time
	FirstViewedAt *time.Time
	ExpiresAt     *time.Time
	AcceptedAt    *time.Time
	DeclinedAt    *time.Time
	DeclineReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ViewState is the tagged form of the nullable first_viewed_at/expires_at
// pair. An unviewed quote carries no countdown; a viewed quote carries the
// window stamped at first view.
type ViewState interface {
	viewState()
}

// Unviewed means the customer has never opened the quote details, so the
// 48-hour window has not started.
type Unviewed struct{}

// Viewed carries the timestamps stamped together, exactly once, on first view.
type Viewed struct {
	FirstViewedAt time.Time
	ExpiresAt     time.Time
}

func (Unviewed) viewState() {}
func (Viewed) viewState()   {}

// View returns the tagged view state for the quote. first_viewed_at and
// expires_at are always written together, so a half-set pair is treated as
// unviewed rather than guessed at.
func (q Quote) View() ViewState {
	if q.FirstViewedAt == nil || q.ExpiresAt == nil {
		return Unviewed{}
	}
	return Viewed{FirstViewedAt: *q.FirstViewedAt, ExpiresAt: *q.ExpiresAt}
}

// AcceptedSummary is the minimal confirmation payload returned after a
// successful acceptance.
type AcceptedSummary struct {
	QuoteID    string
	RequestID  string
	GarageID   string
	GarageName string
	Amount     int64
	AcceptedAt time.Time
}
