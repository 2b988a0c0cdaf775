package domain

import "errors"

// Error families surfaced by the catalog, ledger and directory. Callers
// match with errors.Is; packages wrap these with context via fmt.Errorf.
var (
	// ErrValidation marks malformed input (missing name, negative price or
	// stock, non-numeric phone). Recoverable locally, never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced product, order, dealer or connection
	// that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrOutOfStock is the advisory rejection at order placement when the
	// requested quantity exceeds the currently visible stock.
	ErrOutOfStock = errors.New("requested quantity exceeds available stock")

	// ErrInsufficientStock is the enforced rejection at approval time when
	// debiting stock would drive it negative.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidTransition marks a status change that is not a legal edge
	// of the order state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
)
