/*
errors.go - Centralized error types for the slip domain

PURPOSE:
  All error types in one place for consistency and discoverability.
  Transport and storage layers wrap these with additional context.

ERROR CATEGORIES:
  1. Validation errors - business rule violations, carry the UI message
  2. Lookup errors - referenced slip does not exist
  3. Provisioning errors - id/serial issuance failures

USAGE:
  var verr *slip.ValidationError
  if errors.As(err, &verr) {
      toast(verr.Message)
  }

SEE ALSO:
  - validate.go: produces ValidationError
  - store/sqlite/sqlite.go: wraps ErrSlipNotFound
*/
package slip

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrSlipNotFound is returned when a referenced slip header doesn't exist.
	ErrSlipNotFound = errors.New("slip not found")

	// ErrValidation is the category sentinel for all validation failures.
	ErrValidation = errors.New("slip validation failed")

	// ErrSerialExhausted is returned when an (office, date) pair has used
	// up its four-digit serial range.
	ErrSerialExhausted = errors.New("serial number range exhausted")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError is the first rule violation found by Validate.
// Row is the 1-based detail row, or 0 for header/aggregate level failures.
// Message is user-facing UI copy, ready to surface as-is.
type ValidationError struct {
	Row     int
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }
