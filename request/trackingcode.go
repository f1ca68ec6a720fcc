package request

import (
	"crypto/rand"
	"fmt"
)

// Tracking codes are customer-facing and read over the phone, so the alphabet
// drops easily confused characters (0/O, 1/I/L).
const trackingCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const trackingCodeLength = 8

// NewTrackingCode returns an 8-character alphanumeric code for unauthenticated
// request lookup. Uniqueness is enforced by the store; callers retry on
// ErrDuplicateTrackingCode.
func NewTrackingCode() (string, error) {
	buf := make([]byte, trackingCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("request: generate tracking code: %w", err)
	}
	for i, b := range buf {
		buf[i] = trackingCodeAlphabet[int(b)%len(trackingCodeAlphabet)]
	}
	return string(buf), nil
}
