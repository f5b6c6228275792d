package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightsend/crm/internal/domain"
	"github.com/brightsend/crm/internal/pkg/logger"
)

// RequestMeta carries free-form context from the inbound HTTP request into
// the event log.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Service records inbound engagement events. All dependencies are injected;
// handlers own the HTTP shape (pixel bytes, redirects, pages) and call in
// with bare tokens.
type Service struct {
	jobs   JobRepository
	subs   SubscriptionRepository
	events EventRepository
	now    func() time.Time
}

// NewService creates a tracking service backed by the given repositories.
func NewService(jobs JobRepository, subs SubscriptionRepository, events EventRepository) *Service {
	return &Service{jobs: jobs, subs: subs, events: events, now: time.Now}
}

// RecordOpen resolves an open token and records the open at most once.
// Repeat pixel fetches are no-ops: opened_at keeps its first value and no
// further open events are appended. Returns ErrUnknownToken when no job
// matches; callers must stay silent about it.
func (s *Service) RecordOpen(ctx context.Context, token string, meta RequestMeta) error {
	job, err := s.jobs.GetByOpenToken(ctx, token)
	if err != nil {
		return err
	}

	first, err := s.jobs.MarkOpened(ctx, job.ID, s.now())
	if err != nil {
		return fmt.Errorf("mark opened: %w", err)
	}
	if !first {
		return nil
	}

	if err := s.events.Append(ctx, s.newEvent(job, domain.EventOpen, meta, nil)); err != nil {
		return fmt.Errorf("append open event: %w", err)
	}
	logger.Debug("open recorded", "job", job.ID, "campaign", job.CampaignID)
	return nil
}

// RecordClick resolves a click token and logs the click. Every click appends
// an event; only the first sets clicked_at. Returns ErrUnknownToken when no
// job matches; the handler still redirects when it has a destination.
func (s *Service) RecordClick(ctx context.Context, token, destURL string, meta RequestMeta) error {
	job, err := s.jobs.GetByClickToken(ctx, token)
	if err != nil {
		return err
	}

	if _, err := s.jobs.MarkClicked(ctx, job.ID, s.now()); err != nil {
		return fmt.Errorf("mark clicked: %w", err)
	}

	extra := map[string]string{"url": destURL}
	if err := s.events.Append(ctx, s.newEvent(job, domain.EventClick, meta, extra)); err != nil {
		return fmt.Errorf("append click event: %w", err)
	}
	logger.Debug("click recorded", "job", job.ID, "campaign", job.CampaignID)
	return nil
}

// RecordUnsubscribe resolves an unsubscribe token, stamps the job, and flips
// every email-channel subscription the client holds to unsubscribed. The
// per-job token is only an identity check; the effect is account-wide for
// the channel.
func (s *Service) RecordUnsubscribe(ctx context.Context, token string, meta RequestMeta) error {
	job, err := s.jobs.GetByUnsubToken(ctx, token)
	if err != nil {
		return err
	}

	if err := s.jobs.MarkUnsubscribed(ctx, job.ID, s.now()); err != nil {
		return fmt.Errorf("mark unsubscribed: %w", err)
	}
	if err := s.subs.UnsubscribeChannel(ctx, job.ClientID, domain.ChannelEmail); err != nil {
		return fmt.Errorf("unsubscribe channel: %w", err)
	}
	if err := s.events.Append(ctx, s.newEvent(job, domain.EventUnsubscribe, meta, nil)); err != nil {
		return fmt.Errorf("append unsubscribe event: %w", err)
	}
	logger.Info("unsubscribe recorded", "job", job.ID, "client", job.ClientID)
	return nil
}

func (s *Service) newEvent(job *domain.EmailJob, t domain.EventType, meta RequestMeta, extra map[string]string) *domain.Event {
	md := map[string]string{}
	if meta.IPAddress != "" {
		md["ip"] = meta.IPAddress
	}
	if meta.UserAgent != "" {
		md["user_agent"] = meta.UserAgent
	}
	for k, v := range extra {
		md[k] = v
	}
	return &domain.Event{
		ID:         uuid.New().String(),
		ClientID:   job.ClientID,
		JobID:      job.ID,
		CampaignID: job.CampaignID,
		Type:       t,
		Metadata:   md,
		CreatedAt:  s.now(),
	}
}
