package client_test

import (
	"context"
	"sync"
	"testing"

	"github.com/brightsend/crm/internal/domain"
	"github.com/brightsend/crm/internal/service/client"
)

type memRepo struct {
	mu      sync.Mutex
	clients map[string]*domain.Client
	byEmail map[string]string
}

func newMemRepo() *memRepo {
	return &memRepo{clients: map[string]*domain.Client{}, byEmail: map[string]string{}}
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, client.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (*domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, client.ErrNotFound
	}
	cp := *m.clients[id]
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f client.ListFilter) ([]domain.Client, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Client
	for _, c := range m.clients {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memRepo) Create(_ context.Context, c *domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmail[c.Email]; taken {
		return client.ErrDuplicateEmail
	}
	cp := *c
	m.clients[c.ID] = &cp
	m.byEmail[c.Email] = c.ID
	return nil
}

func (m *memRepo) Update(_ context.Context, c *domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.clients[c.ID]
	if !ok {
		return client.ErrNotFound
	}
	if c.Email != old.Email {
		if _, taken := m.byEmail[c.Email]; taken {
			return client.ErrDuplicateEmail
		}
		delete(m.byEmail, old.Email)
		m.byEmail[c.Email] = c.ID
	}
	cp := *c
	m.clients[c.ID] = &cp
	return nil
}

func (m *memRepo) AddTags(_ context.Context, id string, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.clients[id]
	have := map[string]bool{}
	for _, t := range c.Tags {
		have[t] = true
	}
	for _, t := range tags {
		if !have[t] {
			c.Tags = append(c.Tags, t)
		}
	}
	return nil
}

type memSubs struct {
	mu    sync.Mutex
	state map[string]domain.SubscriptionStatus // clientID|channel
}

func newMemSubs() *memSubs { return &memSubs{state: map[string]domain.SubscriptionStatus{}} }

func (m *memSubs) Upsert(_ context.Context, sub *domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[sub.ClientID+"|"+sub.Channel] = sub.Status
	return nil
}

func (m *memSubs) Status(_ context.Context, clientID, channel string) (domain.SubscriptionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.state[clientID+"|"+channel]; ok {
		return s, nil
	}
	return domain.Unsubscribed, nil
}

func newService() (*client.Service, *memRepo, *memSubs) {
	repo := newMemRepo()
	subs := newMemSubs()
	return client.NewService(repo, subs), repo, subs
}

func TestCreateNormalizesEmailAndSubscribes(t *testing.T) {
	svc, _, subs := newService()
	ctx := context.Background()

	c, err := svc.Create(ctx, client.CreateInput{Email: "  Jane.Doe@Example.COM ", FirstName: "Jane"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Email != "jane.doe@example.com" {
		t.Fatalf("email not normalized: %q", c.Email)
	}

	status, err := subs.Status(ctx, c.ID, domain.ChannelEmail)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != domain.Subscribed {
		t.Fatalf("new client should be subscribed, got %s", status)
	}
}

func TestCreateRejectsInvalidAndDuplicateEmail(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, client.CreateInput{Email: "not-an-email"}); err == nil {
		t.Fatal("expected validation error for bad email")
	}

	if _, err := svc.Create(ctx, client.CreateInput{Email: "a@example.com"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(ctx, client.CreateInput{Email: "A@EXAMPLE.COM"})
	if err != client.ErrDuplicateEmail {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestUpdatePartialFields(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	c, _ := svc.Create(ctx, client.CreateInput{Email: "a@example.com", FirstName: "Ada", Company: "Acme"})

	last := "Lovelace"
	got, err := svc.Update(ctx, c.ID, client.UpdateInput{LastName: &last})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.LastName != "Lovelace" || got.FirstName != "Ada" || got.Company != "Acme" {
		t.Fatalf("partial update clobbered fields: %+v", got)
	}
}

func TestUpdateEmailDoesNotTouchLookupOfOld(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	c, _ := svc.Create(ctx, client.CreateInput{Email: "old@example.com"})

	email := "new@example.com"
	if _, err := svc.Update(ctx, c.ID, client.UpdateInput{Email: &email}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := svc.GetByEmail(ctx, "old@example.com"); err != client.ErrNotFound {
		t.Fatalf("old email should be released, got %v", err)
	}
	got, err := svc.GetByEmail(ctx, "NEW@example.com")
	if err != nil {
		t.Fatalf("lookup by new email: %v", err)
	}
	if got.ID != c.ID {
		t.Fatal("new email resolves to wrong client")
	}
}

func TestAddTagsDeduplicates(t *testing.T) {
	svc, repo, _ := newService()
	ctx := context.Background()

	c, _ := svc.Create(ctx, client.CreateInput{Email: "a@example.com", Tags: []string{"vip"}})

	if err := svc.AddTags(ctx, c.ID, []string{"vip", "beta", " beta ", ""}); err != nil {
		t.Fatalf("add tags: %v", err)
	}
	got, _ := repo.Get(ctx, c.ID)
	if len(got.Tags) != 2 || got.Tags[0] != "vip" || got.Tags[1] != "beta" {
		t.Fatalf("unexpected tags: %v", got.Tags)
	}
}

func TestSetSubscriptionRoundTrip(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	c, _ := svc.Create(ctx, client.CreateInput{Email: "a@example.com"})

	if err := svc.SetSubscription(ctx, c.ID, "", domain.Unsubscribed); err != nil {
		t.Fatalf("set: %v", err)
	}
	status, _ := svc.SubscriptionStatus(ctx, c.ID, domain.ChannelEmail)
	if status != domain.Unsubscribed {
		t.Fatalf("expected unsubscribed, got %s", status)
	}

	if err := svc.SetSubscription(ctx, c.ID, domain.ChannelEmail, domain.Subscribed); err != nil {
		t.Fatalf("re-subscribe: %v", err)
	}
	status, _ = svc.SubscriptionStatus(ctx, c.ID, "")
	if status != domain.Subscribed {
		t.Fatalf("expected subscribed, got %s", status)
	}
}

func TestSetSubscriptionUnknownClient(t *testing.T) {
	svc, _, _ := newService()
	err := svc.SetSubscription(context.Background(), "nope", domain.ChannelEmail, domain.Unsubscribed)
	if err != client.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
