package request

import "time"

type Status string

const (
	StatusOpen      Status = "open"
	StatusQuoted    Status = "quoted"
	StatusAccepted  Status = "accepted"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the request can still receive or resolve quotes.
func (s Status) Active() bool {
	return s == StatusOpen || s == StatusQuoted
}

// RequestWindow is how long a quote request solicits quotes before the sweep
// expires it.
const RequestWindow = 7 * 24 * time.Hour

// Request mirrors the quote_requests table.
// acceptedQuoteId is non-nil iff status is accepted; the acceptance
// transaction writes both fields together.
type Request struct {
	ID              string
	CustomerID      string
	TrackingCode    string
	VehicleDesc     string
	ServiceDesc     string
	Status          Status
	QuotesReceived  int
	AcceptedQuoteID *string
	ExpiresAt       time.Time
	CancelReason    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
