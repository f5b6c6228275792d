package tracking

import (
	"context"
	"time"

	"github.com/brightsend/crm/internal/domain"
)

// JobRepository is the data access contract for token resolution and
// engagement timestamps. Implementations must be safe for concurrent use.
type JobRepository interface {
	// GetByOpenToken resolves an open token to its job.
	// Returns ErrUnknownToken if no job matches.
	GetByOpenToken(ctx context.Context, token string) (*domain.EmailJob, error)

	// GetByClickToken resolves a click token to its job.
	GetByClickToken(ctx context.Context, token string) (*domain.EmailJob, error)

	// GetByUnsubToken resolves an unsubscribe token to its job.
	GetByUnsubToken(ctx context.Context, token string) (*domain.EmailJob, error)

	// MarkOpened sets opened_at if it is not already set. Returns true only
	// for the write that won (at-most-once).
	MarkOpened(ctx context.Context, jobID string, at time.Time) (bool, error)

	// MarkClicked sets clicked_at if it is not already set. Returns true only
	// for the first click.
	MarkClicked(ctx context.Context, jobID string, at time.Time) (bool, error)

	// MarkUnsubscribed sets unsubscribed_at on the job.
	MarkUnsubscribed(ctx context.Context, jobID string, at time.Time) error
}

// SubscriptionRepository flips subscription state on unsubscribe.
type SubscriptionRepository interface {
	// UnsubscribeChannel sets every subscription the client holds on the
	// given channel to unsubscribed. Account-wide: the job token is a
	// capability check, not a scope limiter.
	UnsubscribeChannel(ctx context.Context, clientID, channel string) error
}

// EventRepository appends engagement events. The log is append-only.
type EventRepository interface {
	Append(ctx context.Context, e *domain.Event) error
}
