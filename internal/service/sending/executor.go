package sending

import (
	"context"
	"fmt"
	"time"

	"github.com/brightsend/crm/internal/domain"
	"github.com/brightsend/crm/internal/pkg/distlock"
	"github.com/brightsend/crm/internal/pkg/logger"
	"github.com/brightsend/crm/internal/service/tracking"
	"github.com/brightsend/crm/internal/templates"
)

// DefaultBatchSize bounds how many jobs one send trigger processes. This is
// admission control for the synchronous call path, not a scheduler: the
// caller re-invokes until Remaining reaches zero.
const DefaultBatchSize = 50

// BatchResult reports the outcome of one send-trigger invocation.
// Sent + Failed + Suppressed equals the number of jobs processed this batch.
type BatchResult struct {
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Suppressed int `json:"suppressed"`
	Remaining  int `json:"remainingJobs"`
}

// Executor drives the per-campaign send pipeline.
type Executor struct {
	campaigns CampaignStore
	jobs      JobStore
	subs      SubscriptionChecker
	clients   ClientDirectory
	transport Transport
	rewriter  *tracking.Rewriter
	tpl       *templates.Engine
	batchSize int
	newLock   distlock.Factory
	now       func() time.Time
}

// NewExecutor wires a send executor. lockFactory may be nil, in which case
// concurrent triggers for the same campaign are only guarded by the per-job
// conditional updates.
func NewExecutor(
	campaigns CampaignStore,
	jobs JobStore,
	subs SubscriptionChecker,
	clients ClientDirectory,
	transport Transport,
	rewriter *tracking.Rewriter,
	tpl *templates.Engine,
	batchSize int,
	lockFactory distlock.Factory,
) *Executor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Executor{
		campaigns: campaigns,
		jobs:      jobs,
		subs:      subs,
		clients:   clients,
		transport: transport,
		rewriter:  rewriter,
		tpl:       tpl,
		batchSize: batchSize,
		newLock:   lockFactory,
		now:       time.Now,
	}
}

// SendNow processes one batch of pending jobs for the campaign. Per-job
// transport failures are recorded and counted, never propagated; only setup
// failures (unknown campaign, terminal status, lock contention) return an
// error. When no pending jobs remain afterwards the campaign flips to sent.
func (e *Executor) SendNow(ctx context.Context, campaignID string) (*BatchResult, error) {
	c, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransition(domain.CampaignSending) {
		return nil, ErrNotSendable
	}

	if e.newLock != nil {
		lock := e.newLock("campaign-send:" + campaignID)
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire send lock: %w", err)
		}
		if !ok {
			return nil, ErrSendInProgress
		}
		defer lock.Release(ctx)
	}

	// Visible to readers before any job is touched.
	if err := e.campaigns.UpdateStatus(ctx, campaignID, c.Status, domain.CampaignSending); err != nil {
		return nil, fmt.Errorf("transition to sending: %w", err)
	}

	// A send-now on a previously scheduled campaign dispatches its jobs.
	if n, err := e.jobs.ReleaseScheduled(ctx, campaignID); err != nil {
		return nil, fmt.Errorf("release scheduled jobs: %w", err)
	} else if n > 0 {
		logger.Info("scheduled jobs released", "campaign", campaignID, "count", n)
	}

	batch, err := e.jobs.ListPending(ctx, campaignID, e.batchSize)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}

	res := &BatchResult{}
	for i := range batch {
		e.processJob(ctx, c, &batch[i], res)
	}

	remaining, err := e.jobs.CountPending(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("count remaining jobs: %w", err)
	}
	res.Remaining = remaining

	if remaining == 0 {
		if err := e.campaigns.UpdateStatus(ctx, campaignID, domain.CampaignSending, domain.CampaignSent); err != nil {
			logger.Warn("campaign sent transition skipped", "campaign", campaignID, "err", err)
		}
	}

	logger.Info("send batch complete", "campaign", campaignID,
		"sent", res.Sent, "failed", res.Failed, "suppressed", res.Suppressed,
		"remaining", res.Remaining)
	return res, nil
}

// processJob handles a single recipient. Every outcome is absorbed into res;
// nothing here aborts the batch.
func (e *Executor) processJob(ctx context.Context, c *domain.Campaign, job *domain.EmailJob, res *BatchResult) {
	// Late-binding suppression check: the subscription may have flipped since
	// audience resolution.
	status, err := e.subs.Status(ctx, job.ClientID, domain.ChannelEmail)
	if err != nil {
		e.finalize(ctx, job, fmt.Sprintf("subscription check: %v", err), res)
		return
	}
	if status != domain.Subscribed {
		ok, err := e.jobs.TransitionStatus(ctx, job.ID, domain.JobPending, domain.JobSuppressed)
		if err != nil {
			logger.Error("suppress transition failed", "job", job.ID, "err", err)
			return
		}
		if ok {
			res.Suppressed++
		}
		return
	}

	// Claim the job. Losing the claim means a concurrent executor owns it.
	ok, err := e.jobs.TransitionStatus(ctx, job.ID, domain.JobPending, domain.JobSending)
	if err != nil {
		logger.Error("claim failed", "job", job.ID, "err", err)
		return
	}
	if !ok {
		return
	}

	msg, err := e.render(ctx, c, job)
	if err != nil {
		if mErr := e.jobs.MarkFailed(ctx, job.ID, err.Error()); mErr != nil {
			logger.Error("mark failed errored", "job", job.ID, "err", mErr)
		}
		res.Failed++
		return
	}

	if err := e.transport.Send(ctx, msg); err != nil {
		if mErr := e.jobs.MarkFailed(ctx, job.ID, err.Error()); mErr != nil {
			logger.Error("mark failed errored", "job", job.ID, "err", mErr)
		}
		res.Failed++
		return
	}

	if err := e.jobs.MarkSent(ctx, job.ID, e.now()); err != nil {
		logger.Error("mark sent errored", "job", job.ID, "err", err)
	}
	res.Sent++
}

// finalize suppresses a pending job with a recorded reason when pre-send
// checks error out. Claim first so the failure lands on a sending job.
func (e *Executor) finalize(ctx context.Context, job *domain.EmailJob, reason string, res *BatchResult) {
	ok, err := e.jobs.TransitionStatus(ctx, job.ID, domain.JobPending, domain.JobSending)
	if err != nil || !ok {
		return
	}
	if err := e.jobs.MarkFailed(ctx, job.ID, reason); err != nil {
		logger.Error("mark failed errored", "job", job.ID, "err", err)
	}
	res.Failed++
}

// render personalizes the campaign content for one recipient and injects
// tracking. The canonical campaign body is never mutated.
func (e *Executor) render(ctx context.Context, c *domain.Campaign, job *domain.EmailJob) (*Message, error) {
	bindings := map[string]interface{}{"email": job.ToEmail}
	if client, err := e.clients.Get(ctx, job.ClientID); err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	} else if client != nil {
		bindings = templates.ClientBindings(client)
		// The job snapshot wins over any later address change.
		bindings["email"] = job.ToEmail
	}

	subject, err := e.tpl.Render(c.Subject, bindings)
	if err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}
	html, err := e.tpl.Render(c.HTMLBody, bindings)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	text, err := e.tpl.Render(c.TextBody, bindings)
	if err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}

	html, text = e.rewriter.Rewrite(html, text, job.Tokens())

	return &Message{
		To:        job.ToEmail,
		FromEmail: c.FromEmail,
		FromName:  c.FromName,
		Subject:   subject,
		HTML:      html,
		Text:      text,
	}, nil
}

// Schedule stamps the campaign and all its pending jobs with the target
// time. No sends happen; dispatching scheduled campaigns is the caller's
// concern (there is no background worker).
func (e *Executor) Schedule(ctx context.Context, campaignID string, at time.Time) error {
	if !at.After(e.now()) {
		return ErrScheduleInPast
	}

	c, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if !c.Status.CanTransition(domain.CampaignScheduled) {
		return ErrNotSendable
	}

	if err := e.campaigns.MarkScheduled(ctx, campaignID, at); err != nil {
		return fmt.Errorf("mark campaign scheduled: %w", err)
	}
	n, err := e.jobs.ScheduleAll(ctx, campaignID, at)
	if err != nil {
		return fmt.Errorf("schedule jobs: %w", err)
	}
	logger.Info("campaign scheduled", "campaign", campaignID, "at", at.Format(time.RFC3339), "jobs", n)
	return nil
}
