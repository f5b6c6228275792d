package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightsend/crm/internal/domain"
	"github.com/brightsend/crm/internal/pkg/logger"
)

// Service implements campaign business logic. All public methods are safe
// for concurrent use if the underlying repositories are concurrency-safe.
type Service struct {
	repo    Repository
	jobs    JobWriter
	clients ClientDirectory
	subs    SubscriptionChecker
}

// NewService creates a campaign service backed by the given repositories.
func NewService(repo Repository, jobs JobWriter, clients ClientDirectory, subs SubscriptionChecker) *Service {
	return &Service{repo: repo, jobs: jobs, clients: clients, subs: subs}
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name      string `json:"name"`
	Subject   string `json:"subject"`
	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email"`
	HTMLBody  string `json:"html_body"`
	TextBody  string `json:"text_body"`
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, f)
}

// Create validates and persists a new campaign in draft status.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if input.Subject == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if input.FromEmail == "" {
		return nil, fmt.Errorf("from_email is required")
	}

	c := &domain.Campaign{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Subject:   input.Subject,
		FromName:  input.FromName,
		FromEmail: input.FromEmail,
		HTMLBody:  input.HTMLBody,
		TextBody:  input.TextBody,
		Status:    domain.CampaignDraft,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Cancel moves a draft or scheduled campaign to cancelled.
func (s *Service) Cancel(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !c.Status.CanTransition(domain.CampaignCancelled) {
		return ErrInvalidTransition
	}
	return s.repo.UpdateStatus(ctx, id, c.Status, domain.CampaignCancelled)
}

// Stats returns per-status job counts for a campaign.
func (s *Service) Stats(ctx context.Context, id string) (map[domain.JobStatus]int, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.jobs.StatusCounts(ctx, id)
}

// ResolveAudience creates one pending job per candidate that currently holds
// a subscribed email subscription. Ineligible or unknown candidates are
// silently skipped. Each job snapshots the client's current address and is
// minted three independent random tokens. Returns the number of jobs
// actually created; candidates that already have a job for this campaign
// are skipped by the unique (campaign, client) constraint.
func (s *Service) ResolveAudience(ctx context.Context, campaignID string, clientIDs []string) (int, error) {
	if _, err := s.repo.Get(ctx, campaignID); err != nil {
		return 0, err
	}

	now := time.Now()
	var batch []*domain.EmailJob
	for _, clientID := range clientIDs {
		client, err := s.clients.Get(ctx, clientID)
		if err != nil {
			return 0, fmt.Errorf("resolve client %s: %w", clientID, err)
		}
		if client == nil {
			continue
		}

		status, err := s.subs.Status(ctx, clientID, domain.ChannelEmail)
		if err != nil {
			return 0, fmt.Errorf("subscription status for %s: %w", clientID, err)
		}
		if status != domain.Subscribed {
			continue
		}

		batch = append(batch, &domain.EmailJob{
			ID:         uuid.New().String(),
			CampaignID: campaignID,
			ClientID:   clientID,
			ToEmail:    client.Email,
			Status:     domain.JobPending,
			OpenToken:  uuid.New().String(),
			ClickToken: uuid.New().String(),
			UnsubToken: uuid.New().String(),
			CreatedAt:  now,
		})
	}

	if len(batch) == 0 {
		return 0, nil
	}

	n, err := s.jobs.CreateBatch(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("create jobs: %w", err)
	}
	logger.Info("audience resolved", "campaign", campaignID,
		"candidates", len(clientIDs), "jobs_created", n)
	return n, nil
}
