package quote

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals the quote (or its parent request) does not exist.
	ErrNotFound = errors.New("quote: not found")
	// ErrForbidden signals the actor is neither the owning customer nor an admin.
	ErrForbidden = errors.New("quote: forbidden")
	// ErrAlreadyAccepted signals the parent request already has a canonical accepted quote.
	ErrAlreadyAccepted = errors.New("quote: request already has an accepted quote")
	// ErrRequestInactive signals the parent request is expired or cancelled.
	ErrRequestInactive = errors.New("quote: request is no longer active")
	// ErrQuoteExpired signals the garage-set validity cutoff has lapsed.
	ErrQuoteExpired = errors.New("quote: validity window lapsed")
	// ErrQuoteNotAcceptable is the base for NotAcceptableError matching.
	ErrQuoteNotAcceptable = errors.New("quote: not acceptable")
	// ErrTransactionConflict signals a concurrent acceptance race was lost.
	// Callers may retry once; a repeat conflict is terminal.
	ErrTransactionConflict = errors.New("quote: acceptance conflict")
)

// NotAcceptableError reports an acceptance attempt against a quote that is not
// stored pending, carrying the actual status for user-facing messages.
type NotAcceptableError struct {
	Status Status
}

func (e *NotAcceptableError) Error() string {
	return fmt.Sprintf("quote: cannot accept quote in status %q", e.Status)
}

func (e *NotAcceptableError) Unwrap() error {
	return ErrQuoteNotAcceptable
}
