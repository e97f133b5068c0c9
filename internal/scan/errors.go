package scan

import "errors"

// Errors surfaced by the callable operations. The HTTP layer maps these to
// status codes; the automatic pipeline never returns them to a caller and
// records failures on the scan itself instead.
var (
	ErrNotFound           = errors.New("scan not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrFailedPrecondition = errors.New("failed precondition")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnauthenticated    = errors.New("authentication required")

	// ErrStatusConflict is returned by DB.UpdateScan when the record's status
	// no longer matches the expected prior status, i.e. another writer got
	// there first.
	ErrStatusConflict = errors.New("scan status changed concurrently")
)
