package intelweb

import "errors"

// Sentinel errors, wrapped with fmt.Errorf("%w: ...") at the call site.
var (
	// ErrNotOpen is returned by any operation attempted on a closed or
	// zero-value IntelWeb.
	ErrNotOpen = errors.New("intelweb: not open")

	// ErrAlreadyLocked is returned by CreateNew/OpenExisting when another
	// process already holds the advisory lock for this prefix.
	ErrAlreadyLocked = errors.New("intelweb: prefix already locked by another process")
)
