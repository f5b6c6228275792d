package tracking

import "errors"

// Sentinel errors for the tracking service layer.
var (
	// ErrUnknownToken means no job carries the presented token. Handlers
	// decide how visible this is: the pixel stays silent, the unsubscribe
	// page shows a generic message, the click passes through.
	ErrUnknownToken = errors.New("unknown tracking token")
)
