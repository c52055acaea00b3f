package types

import "errors"

// Shared error taxonomy. Overflow and divide-by-zero live with the
// fixed-point package; venue rejections live with the venue package.
var (
	// ErrInsufficientBalance covers a caller lacking funds or shares for the
	// requested operation, including zero-value attempts.
	ErrInsufficientBalance = errors.New("insufficient balance for operation")

	// ErrUnauthorized covers privileged operations invoked by anyone other
	// than the configured authority.
	ErrUnauthorized = errors.New("caller is not authorized")
)
