package diskmultimap

import "errors"

// Sentinel errors for precondition violations and corruption detection.
// Wrapped with fmt.Errorf("%w: ...") at the call site so callers can match
// with errors.Is while still getting a descriptive message.
var (
	// ErrFieldTooLong is returned when a key, value, or context string
	// exceeds MaxFieldLen bytes.
	ErrFieldTooLong = errors.New("diskmultimap: field exceeds max length")

	// ErrNotOpen is returned by any operation attempted on a closed or
	// zero-value Map.
	ErrNotOpen = errors.New("diskmultimap: map not open")

	// ErrFileTooSmall is returned by OpenExisting when the file is shorter
	// than the header and bucket array it claims to have.
	ErrFileTooSmall = errors.New("diskmultimap: file too small for header and bucket array")

	// ErrChainCycle is returned when a horizontal or vertical chain walk
	// revisits an offset, indicating file corruption. Detection is a debug
	// aid (spec.md §9's "assert termination with a visited-set"), not a
	// format guarantee.
	ErrChainCycle = errors.New("diskmultimap: cycle detected while walking chain")
)
