package quote

import "time"

const (
	// DefaultViewWindow is how long a quote stays valid after the customer
	// first opens its details.
	DefaultViewWindow = 48 * time.Hour
	// DefaultExpiringSoonThreshold drives the "expiring soon" badge.
	DefaultExpiringSoonThreshold = 6 * time.Hour
)

// ExpiryConfig carries the tunable windows for derived-state math. The
// expiring-soon threshold is deliberately configuration, not a hard constant.
type ExpiryConfig struct {
	ViewWindow            time.Duration
	ExpiringSoonThreshold time.Duration
}

func DefaultExpiryConfig() ExpiryConfig {
	return ExpiryConfig{
		ViewWindow:            DefaultViewWindow,
		ExpiringSoonThreshold: DefaultExpiringSoonThreshold,
	}
}

// Derived is the read-time state of a quote: what to display and whether the
// customer can still act on it.
type Derived struct {
	DisplayStatus  Status
	IsExpired      bool
	IsExpiringSoon bool
	Remaining      time.Duration
}

// DeriveState maps a quote's stored fields to its display state at the given
// instant. It is pure: safe to call on every read, never mutates storage.
//
// Resolved quotes pass through untouched. An unviewed quote never expires by
// the view window, only by its garage-set valid_until or because the parent
// request expired. A viewed quote expires at the stricter of its stamped
// window and valid_until.
func DeriveState(q Quote, requestExpired bool, now time.Time, cfg ExpiryConfig) Derived {
	if q.Status.Terminal() || q.Status == StatusExpired {
		return Derived{DisplayStatus: q.Status, IsExpired: q.Status == StatusExpired}
	}

	switch v := q.View().(type) {
	case Unviewed:
		if requestExpired || now.After(q.ValidUntil) {
			return Derived{DisplayStatus: StatusExpired, IsExpired: true}
		}
		return Derived{DisplayStatus: StatusPending}

	case Viewed:
		deadline := v.ExpiresAt
		if q.ValidUntil.Before(deadline) {
			deadline = q.ValidUntil
		}
		if requestExpired || now.After(deadline) {
			return Derived{DisplayStatus: StatusExpired, IsExpired: true}
		}
		remaining := deadline.Sub(now)
		return Derived{
			DisplayStatus:  StatusViewed,
			IsExpiringSoon: remaining <= cfg.ExpiringSoonThreshold,
			Remaining:      remaining,
		}
	}

	return Derived{DisplayStatus: q.Status}
}
