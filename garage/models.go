package garage

import "time"

// Profile captures the subset of garage data exposed via the public API layer.
type Profile struct {
	ID        string
	Name      string
	City      string
	Phone     *string
	Verified  bool
	CreatedAt time.Time
}
