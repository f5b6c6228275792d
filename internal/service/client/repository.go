package client

import (
	"context"

	"github.com/brightsend/crm/internal/domain"
)

// Repository defines the data access contract for clients.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single client. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Client, error)

	// GetByEmail returns the client holding the (normalized) email, or
	// ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*domain.Client, error)

	// List returns clients ordered by created_at DESC plus the total count.
	List(ctx context.Context, f ListFilter) ([]domain.Client, int, error)

	// Create inserts a new client. Returns ErrDuplicateEmail when the email
	// is already taken.
	Create(ctx context.Context, c *domain.Client) error

	// Update persists profile changes (never the email's uniqueness owner:
	// a conflicting new email returns ErrDuplicateEmail).
	Update(ctx context.Context, c *domain.Client) error

	// AddTags appends tags the client doesn't already have.
	AddTags(ctx context.Context, id string, tags []string) error
}

// SubscriptionStore manages per-channel opt-in rows.
type SubscriptionStore interface {
	// Upsert creates or updates the client's subscription on a channel.
	Upsert(ctx context.Context, sub *domain.Subscription) error

	// Status returns the client's status on a channel. Clients with no
	// subscription row on the channel report Unsubscribed.
	Status(ctx context.Context, clientID, channel string) (domain.SubscriptionStatus, error)
}

// ListFilter controls pagination and tag filtering for client lists.
type ListFilter struct {
	Tag    string
	Limit  int
	Offset int
}
