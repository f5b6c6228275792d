package campaign

import (
	"context"

	"github.com/brightsend/crm/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns matching the filter, ordered by created_at DESC,
	// plus the total count.
	List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign.
	Create(ctx context.Context, c *domain.Campaign) error

	// UpdateStatus transitions status conditionally: the row is only updated
	// while its current status is `from`. Returns ErrInvalidTransition when
	// the guard fails (someone else moved it first) and ErrNotFound when the
	// campaign doesn't exist.
	UpdateStatus(ctx context.Context, id string, from, to domain.CampaignStatus) error
}

// JobWriter creates jobs during audience resolution and reports per-status
// counts for campaign stats.
type JobWriter interface {
	// CreateBatch inserts jobs, skipping any (campaign, client) pair that
	// already has one. Returns the number actually inserted.
	CreateBatch(ctx context.Context, jobs []*domain.EmailJob) (int, error)

	// StatusCounts returns job counts per status for one campaign.
	StatusCounts(ctx context.Context, campaignID string) (map[domain.JobStatus]int, error)
}

// ClientDirectory resolves candidate recipients.
type ClientDirectory interface {
	// Get returns a client or nil when the id is unknown.
	Get(ctx context.Context, id string) (*domain.Client, error)
}

// SubscriptionChecker reads live opt-in state.
type SubscriptionChecker interface {
	// Status returns the client's status on a channel. Clients with no
	// subscription row on the channel report Unsubscribed.
	Status(ctx context.Context, clientID, channel string) (domain.SubscriptionStatus, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}
