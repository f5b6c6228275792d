package sending_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/brightsend/crm/internal/domain"
	"github.com/brightsend/crm/internal/pkg/distlock"
	"github.com/brightsend/crm/internal/service/campaign"
	"github.com/brightsend/crm/internal/service/sending"
	"github.com/brightsend/crm/internal/service/tracking"
	"github.com/brightsend/crm/internal/templates"
)

// memStore is an in-memory campaign + job store for executor tests.
type memStore struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
	jobs      map[string]*domain.EmailJob
	subs      map[string]domain.SubscriptionStatus
	clients   map[string]*domain.Client
}

func newMemStore() *memStore {
	return &memStore{
		campaigns: map[string]*domain.Campaign{},
		jobs:      map[string]*domain.EmailJob{},
		subs:      map[string]domain.SubscriptionStatus{},
		clients:   map[string]*domain.Client{},
	}
}

func (m *memStore) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id string, from, to domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if c.Status != from {
		return campaign.ErrInvalidTransition
	}
	c.Status = to
	return nil
}

func (m *memStore) MarkScheduled(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.campaigns[id]
	c.Status = domain.CampaignScheduled
	c.ScheduledAt = &at
	return nil
}

func (m *memStore) ListPending(_ context.Context, campaignID string, limit int) ([]domain.EmailJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EmailJob
	for _, j := range m.jobs {
		if j.CampaignID == campaignID && j.Status == domain.JobPending {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CountPending(_ context.Context, campaignID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.CampaignID == campaignID && j.Status == domain.JobPending {
			n++
		}
	}
	return n, nil
}

func (m *memStore) TransitionStatus(_ context.Context, jobID string, from, to domain.JobStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j.Status != from {
		return false, nil
	}
	j.Status = to
	return true, nil
}

func (m *memStore) MarkSent(_ context.Context, jobID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.jobs[jobID]
	j.Status = domain.JobSent
	j.SentAt = &at
	return nil
}

func (m *memStore) MarkFailed(_ context.Context, jobID, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.jobs[jobID]
	j.Status = domain.JobFailed
	j.LastError = lastError
	return nil
}

func (m *memStore) ScheduleAll(_ context.Context, campaignID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.CampaignID == campaignID && j.Status == domain.JobPending {
			j.Status = domain.JobScheduled
			t := at
			j.ScheduledAt = &t
			n++
		}
	}
	return n, nil
}

func (m *memStore) ReleaseScheduled(_ context.Context, campaignID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.CampaignID == campaignID && j.Status == domain.JobScheduled {
			j.Status = domain.JobPending
			j.ScheduledAt = nil
			n++
		}
	}
	return n, nil
}

func (m *memStore) Status(_ context.Context, clientID, _ string) (domain.SubscriptionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[clientID]; ok {
		return s, nil
	}
	return domain.Unsubscribed, nil
}

func (m *memStore) GetClient(_ context.Context, id string) (*domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// clientDir adapts memStore to the ClientDirectory interface.
type clientDir struct{ *memStore }

func (d clientDir) Get(ctx context.Context, id string) (*domain.Client, error) {
	return d.GetClient(ctx, id)
}

func (m *memStore) addCampaign(id string) {
	m.campaigns[id] = &domain.Campaign{
		ID: id, Name: "n", Subject: "Hello {{ first_name }}",
		FromName: "Brightsend", FromEmail: "news@example.com",
		HTMLBody: `<body><a href="https://example.com/p">p</a></body>`,
		TextBody: "Hello", Status: domain.CampaignDraft,
	}
}

func (m *memStore) addJob(campaignID, clientID string, sub domain.SubscriptionStatus) *domain.EmailJob {
	j := &domain.EmailJob{
		ID: uuid.New().String(), CampaignID: campaignID, ClientID: clientID,
		ToEmail: clientID + "@example.com", Status: domain.JobPending,
		OpenToken: uuid.New().String(), ClickToken: uuid.New().String(), UnsubToken: uuid.New().String(),
	}
	m.jobs[j.ID] = j
	m.subs[clientID] = sub
	m.clients[clientID] = &domain.Client{ID: clientID, Email: j.ToEmail, FirstName: "Ada"}
	return j
}

func (m *memStore) jobStatuses(campaignID string) map[domain.JobStatus]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[domain.JobStatus]int{}
	for _, j := range m.jobs {
		if j.CampaignID == campaignID {
			out[j.Status]++
		}
	}
	return out
}

// fakeTransport records sends and fails addresses on demand.
type fakeTransport struct {
	mu     sync.Mutex
	sent   []*sending.Message
	failTo map[string]bool
}

func newFakeTransport() *fakeTransport { return &fakeTransport{failTo: map[string]bool{}} }

func (f *fakeTransport) Send(_ context.Context, msg *sending.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[msg.To] {
		return errors.New("550 mailbox unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newExecutor(store *memStore, tr sending.Transport, batch int, lf distlock.Factory) *sending.Executor {
	return sending.NewExecutor(store, store, store, clientDir{store}, tr,
		tracking.NewRewriter("https://track.example.com"), templates.NewEngine(), batch, lf)
}

func TestSendNowHappyPath(t *testing.T) {
	store := newMemStore()
	store.addCampaign("camp")
	store.addJob("camp", "c1", domain.Subscribed)
	store.addJob("camp", "c2", domain.Subscribed)
	store.addJob("camp", "c3", domain.Unsubscribed)
	tr := newFakeTransport()

	res, err := newExecutor(store, tr, 50, nil).SendNow(context.Background(), "camp")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Sent != 2 || res.Suppressed != 1 || res.Failed != 0 || res.Remaining != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	c, _ := store.Get(context.Background(), "camp")
	if c.Status != domain.CampaignSent {
		t.Fatalf("campaign should be sent, got %s", c.Status)
	}
	if len(tr.sent) != 2 {
		t.Fatalf("expected 2 transport calls, got %d", len(tr.sent))
	}
}

func TestSendNowBatchCap(t *testing.T) {
	store := newMemStore()
	store.addCampaign("camp")
	for i := 0; i < 7; i++ {
		store.addJob("camp", fmt.Sprintf("c%d", i), domain.Subscribed)
	}
	tr := newFakeTransport()
	exec := newExecutor(store, tr, 3, nil)

	res, err := exec.SendNow(context.Background(), "camp")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := res.Sent + res.Failed + res.Suppressed; got != 3 {
		t.Fatalf("batch must process min(N, cap)=3, processed %d", got)
	}
	if res.Remaining != 4 {
		t.Fatalf("expected 4 remaining, got %d", res.Remaining)
	}

	c, _ := store.Get(context.Background(), "camp")
	if c.Status != domain.CampaignSending {
		t.Fatalf("campaign must stay sending with jobs remaining, got %s", c.Status)
	}

	// Drain with further invocations.
	for res.Remaining > 0 {
		res, err = exec.SendNow(context.Background(), "camp")
		if err != nil {
			t.Fatalf("drain: %v", err)
		}
	}
	c, _ = store.Get(context.Background(), "camp")
	if c.Status != domain.CampaignSent {
		t.Fatalf("campaign should be sent after drain, got %s", c.Status)
	}
}

func TestSendNowTransportFailureDoesNotAbortBatch(t *testing.T) {
	store := newMemStore()
	store.addCampaign("camp")
	store.addJob("camp", "ok1", domain.Subscribed)
	bad := store.addJob("camp", "bad", domain.Subscribed)
	store.addJob("camp", "ok2", domain.Subscribed)
	tr := newFakeTransport()
	tr.failTo["bad@example.com"] = true

	res, err := newExecutor(store, tr, 50, nil).SendNow(context.Background(), "camp")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Sent != 2 || res.Failed != 1 || res.Remaining != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	store.mu.Lock()
	failedJob := store.jobs[bad.ID]
	store.mu.Unlock()
	if failedJob.Status != domain.JobFailed {
		t.Fatalf("bad job should be failed, got %s", failedJob.Status)
	}
	if !strings.Contains(failedJob.LastError, "550") {
		t.Fatalf("error not captured: %q", failedJob.LastError)
	}

	// Terminal: campaign still completes.
	c, _ := store.Get(context.Background(), "camp")
	if c.Status != domain.CampaignSent {
		t.Fatalf("campaign should be sent, got %s", c.Status)
	}
}

func TestSendNowUnsubscribedNeverSent(t *testing.T) {
	store := newMemStore()
	store.addCampaign("camp")
	j := store.addJob("camp", "c1", domain.Subscribed)
	// Subscription flips after audience resolution: late-binding check wins.
	store.subs["c1"] = domain.Unsubscribed
	tr := newFakeTransport()

	res, err := newExecutor(store, tr, 50, nil).SendNow(context.Background(), "camp")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Suppressed != 1 || res.Sent != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	store.mu.Lock()
	status := store.jobs[j.ID].Status
	store.mu.Unlock()
	if status != domain.JobSuppressed {
		t.Fatalf("expected suppressed, got %s", status)
	}
	if len(tr.sent) != 0 {
		t.Fatal("transport must not be called for suppressed recipients")
	}
}

func TestSendNowRendersTrackingAndMergeTags(t *testing.T) {
	store := newMemStore()
	store.addCampaign("camp")
	j := store.addJob("camp", "c1", domain.Subscribed)
	tr := newFakeTransport()

	if _, err := newExecutor(store, tr, 50, nil).SendNow(context.Background(), "camp"); err != nil {
		t.Fatalf("send: %v", err)
	}

	msg := tr.sent[0]
	if msg.Subject != "Hello Ada" {
		t.Fatalf("merge tag not rendered: %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "/tracking/open/"+j.OpenToken) {
		t.Fatal("pixel missing from rendered HTML")
	}
	if !strings.Contains(msg.HTML, "/tracking/click/"+j.ClickToken) {
		t.Fatal("links not rewritten")
	}
	if !strings.Contains(msg.Text, "/unsubscribe/"+j.UnsubToken) {
		t.Fatal("text unsubscribe line missing")
	}

	// Canonical campaign body untouched.
	c, _ := store.Get(context.Background(), "camp")
	if strings.Contains(c.HTMLBody, "/tracking/") {
		t.Fatal("campaign canonical body was mutated")
	}
}

func TestSendNowTerminalCampaign(t *testing.T) {
	store := newMemStore()
	store.addCampaign("camp")
	store.campaigns["camp"].Status = domain.CampaignSent

	_, err := newExecutor(store, newFakeTransport(), 50, nil).SendNow(context.Background(), "camp")
	if err != sending.ErrNotSendable {
		t.Fatalf("expected ErrNotSendable, got %v", err)
	}
}

func TestSendNowUnknownCampaign(t *testing.T) {
	store := newMemStore()
	_, err := newExecutor(store, newFakeTransport(), 50, nil).SendNow(context.Background(), "nope")
	if err != campaign.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSendNowLockContention(t *testing.T) {
	store := newMemStore()
	store.addCampaign("camp")
	store.addJob("camp", "c1", domain.Subscribed)

	held := &stubLock{acquired: false}
	factory := func(key string) distlock.Lock { return held }

	_, err := newExecutor(store, newFakeTransport(), 50, factory).SendNow(context.Background(), "camp")
	if err != sending.ErrSendInProgress {
		t.Fatalf("expected ErrSendInProgress, got %v", err)
	}
}

type stubLock struct{ acquired bool }

func (s *stubLock) Acquire(context.Context) (bool, error) { return s.acquired, nil }
func (s *stubLock) Release(context.Context) error         { return nil }

func TestSchedule(t *testing.T) {
	store := newMemStore()
	store.addCampaign("camp")
	store.addJob("camp", "c1", domain.Subscribed)
	store.addJob("camp", "c2", domain.Subscribed)
	exec := newExecutor(store, newFakeTransport(), 50, nil)

	at := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	if err := exec.Schedule(context.Background(), "camp", at); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	c, _ := store.Get(context.Background(), "camp")
	if c.Status != domain.CampaignScheduled || c.ScheduledAt == nil || !c.ScheduledAt.Equal(at) {
		t.Fatalf("campaign not scheduled: %+v", c)
	}
	if n := store.jobStatuses("camp")[domain.JobScheduled]; n != 2 {
		t.Fatalf("expected 2 scheduled jobs, got %d", n)
	}

	// Send-now afterwards releases and dispatches the scheduled jobs.
	res, err := exec.SendNow(context.Background(), "camp")
	if err != nil {
		t.Fatalf("send after schedule: %v", err)
	}
	if res.Sent != 2 || res.Remaining != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSchedulePastRejected(t *testing.T) {
	store := newMemStore()
	store.addCampaign("camp")
	exec := newExecutor(store, newFakeTransport(), 50, nil)
	err := exec.Schedule(context.Background(), "camp", time.Now().Add(-time.Minute))
	if err != sending.ErrScheduleInPast {
		t.Fatalf("expected ErrScheduleInPast, got %v", err)
	}
}
