package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/brightsend/crm/internal/domain"
	"github.com/brightsend/crm/internal/pkg/logger"
)

// Service implements client business logic.
type Service struct {
	repo Repository
	subs SubscriptionStore
}

// NewService creates a client service backed by the given stores.
func NewService(repo Repository, subs SubscriptionStore) *Service {
	return &Service{repo: repo, subs: subs}
}

// CreateInput holds the fields for registering a new client.
type CreateInput struct {
	Email        string            `json:"email"`
	FirstName    string            `json:"first_name"`
	LastName     string            `json:"last_name"`
	Phone        string            `json:"phone"`
	Company      string            `json:"company"`
	CustomFields map[string]string `json:"custom_fields"`
	Tags         []string          `json:"tags"`
}

// UpdateInput holds optional profile changes. Nil fields are left untouched.
type UpdateInput struct {
	Email        *string           `json:"email"`
	FirstName    *string           `json:"first_name"`
	LastName     *string           `json:"last_name"`
	Phone        *string           `json:"phone"`
	Company      *string           `json:"company"`
	CustomFields map[string]string `json:"custom_fields"`
}

// NormalizeEmail canonicalizes an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Get returns a single client.
func (s *Service) Get(ctx context.Context, id string) (*domain.Client, error) {
	return s.repo.Get(ctx, id)
}

// GetByEmail looks a client up by normalized address.
func (s *Service) GetByEmail(ctx context.Context, email string) (*domain.Client, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

// List returns clients matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Client, int, error) {
	return s.repo.List(ctx, f)
}

// Create registers a new client and opens a subscribed email subscription,
// making them immediately eligible for campaign audiences.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Client, error) {
	email := NormalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("a valid email is required")
	}

	c := &domain.Client{
		ID:           uuid.New().String(),
		Email:        email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Phone:        strings.TrimSpace(input.Phone),
		Company:      strings.TrimSpace(input.Company),
		CustomFields: input.CustomFields,
		Tags:         dedupeTags(input.Tags),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	if err := s.subs.Upsert(ctx, &domain.Subscription{
		ID:       uuid.New().String(),
		ClientID: c.ID,
		Channel:  domain.ChannelEmail,
		Status:   domain.Subscribed,
	}); err != nil {
		return nil, fmt.Errorf("open email subscription: %w", err)
	}

	logger.Info("client created", "client", c.ID, "email", c.Email)
	return c, nil
}

// Update applies profile changes. Changing the email moves the uniqueness
// claim; it does not rewrite addresses already snapshotted on email jobs.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*domain.Client, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Email != nil {
		email := NormalizeEmail(*input.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("a valid email is required")
		}
		c.Email = email
	}
	if input.FirstName != nil {
		c.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		c.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.Phone != nil {
		c.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Company != nil {
		c.Company = strings.TrimSpace(*input.Company)
	}
	if input.CustomFields != nil {
		if c.CustomFields == nil {
			c.CustomFields = map[string]string{}
		}
		for k, v := range input.CustomFields {
			c.CustomFields[k] = v
		}
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddTags appends tags to the client, skipping duplicates.
func (s *Service) AddTags(ctx context.Context, id string, tags []string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	tags = dedupeTags(tags)
	if len(tags) == 0 {
		return nil
	}
	return s.repo.AddTags(ctx, id, tags)
}

// SetSubscription flips the client's opt-in state on a channel.
func (s *Service) SetSubscription(ctx context.Context, id, channel string, status domain.SubscriptionStatus) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if channel == "" {
		channel = domain.ChannelEmail
	}
	if err := s.subs.Upsert(ctx, &domain.Subscription{
		ID:       uuid.New().String(),
		ClientID: id,
		Channel:  channel,
		Status:   status,
	}); err != nil {
		return err
	}
	logger.Info("subscription changed", "client", id, "channel", channel, "status", string(status))
	return nil
}

// SubscriptionStatus reads the client's current opt-in state on a channel.
func (s *Service) SubscriptionStatus(ctx context.Context, id, channel string) (domain.SubscriptionStatus, error) {
	if channel == "" {
		channel = domain.ChannelEmail
	}
	return s.subs.Status(ctx, id, channel)
}

func dedupeTags(tags []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
