package sending

import (
	"context"
	"time"

	"github.com/brightsend/crm/internal/domain"
)

// CampaignStore is the campaign state the executor needs.
type CampaignStore interface {
	// Get returns a campaign or the campaign service's ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// UpdateStatus transitions status conditionally (only while the current
	// status is `from`).
	UpdateStatus(ctx context.Context, id string, from, to domain.CampaignStatus) error

	// MarkScheduled stamps the campaign scheduled with the target time.
	MarkScheduled(ctx context.Context, id string, at time.Time) error
}

// JobStore is the job state the executor needs. Transitions are atomic
// conditional updates so that concurrent executors never double-process a
// job: whoever flips pending→sending first owns it.
type JobStore interface {
	// ListPending returns up to limit pending jobs for a campaign, oldest first.
	ListPending(ctx context.Context, campaignID string, limit int) ([]domain.EmailJob, error)

	// CountPending returns the number of pending jobs remaining.
	CountPending(ctx context.Context, campaignID string) (int, error)

	// TransitionStatus moves one job from→to. Returns false (no error) when
	// the job is no longer in `from`.
	TransitionStatus(ctx context.Context, jobID string, from, to domain.JobStatus) (bool, error)

	// MarkSent finalizes a sending job as sent with the given timestamp.
	MarkSent(ctx context.Context, jobID string, at time.Time) error

	// MarkFailed finalizes a sending job as failed, capturing the error text.
	MarkFailed(ctx context.Context, jobID, lastError string) error

	// ScheduleAll stamps every pending job scheduled with the target time.
	ScheduleAll(ctx context.Context, campaignID string, at time.Time) (int, error)

	// ReleaseScheduled returns scheduled jobs to pending (send-now after a
	// schedule). Clears the job's scheduled time.
	ReleaseScheduled(ctx context.Context, campaignID string) (int, error)
}

// SubscriptionChecker reads live opt-in state for the late suppression check.
type SubscriptionChecker interface {
	Status(ctx context.Context, clientID, channel string) (domain.SubscriptionStatus, error)
}

// ClientDirectory fetches recipient profiles for merge-tag bindings.
type ClientDirectory interface {
	Get(ctx context.Context, id string) (*domain.Client, error)
}
