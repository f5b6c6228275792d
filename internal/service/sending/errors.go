package sending

import "errors"

// Sentinel errors for the sending service layer.
var (
	// ErrSendInProgress means another executor holds the campaign's send
	// lock. The caller should retry after the running batch completes.
	ErrSendInProgress = errors.New("a send is already in progress for this campaign")

	// ErrNotSendable means the campaign is in a terminal state.
	ErrNotSendable = errors.New("campaign cannot be sent from its current status")

	// ErrScheduleInPast rejects scheduling requests for times that already passed.
	ErrScheduleInPast = errors.New("scheduled time must be in the future")
)
