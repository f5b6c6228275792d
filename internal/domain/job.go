package domain

import "time"

// JobStatus enumerates the delivery lifecycle of a single email job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobScheduled  JobStatus = "scheduled"
	JobSending    JobStatus = "sending"
	JobSent       JobStatus = "sent"
	JobFailed     JobStatus = "failed"
	JobSuppressed JobStatus = "suppressed"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobPending:   {JobSending, JobSuppressed, JobScheduled},
	JobScheduled: {JobPending},
	JobSending:   {JobSent, JobFailed},
}

// CanTransition reports whether moving from s to next is a legal delivery
// step. Sent, failed, and suppressed are terminal for delivery status;
// engagement timestamps (opened/clicked/unsubscribed) may still be written
// on a terminal job from inbound tracking hits.
func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, t := range jobTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true once the job's delivery outcome is settled.
func (s JobStatus) IsTerminal() bool {
	return s == JobSent || s == JobFailed || s == JobSuppressed
}

// EmailJob is one scheduled/attempted delivery of a campaign to one client.
// ToEmail is a snapshot taken at audience-resolution time: later address
// changes on the client never alter an existing job.
//
// The three tokens are minted once at creation, are unique across all jobs,
// and are never regenerated. A token resolves to at most one job.
type EmailJob struct {
	ID         string `json:"id" db:"id"`
	CampaignID string `json:"campaign_id" db:"campaign_id"`
	ClientID   string `json:"client_id" db:"client_id"`
	ToEmail    string `json:"to_email" db:"to_email"`

	Status    JobStatus `json:"status" db:"status"`
	LastError string    `json:"last_error,omitempty" db:"last_error"`

	OpenToken  string `json:"-" db:"open_token"`
	ClickToken string `json:"-" db:"click_token"`
	UnsubToken string `json:"-" db:"unsub_token"`

	ScheduledAt    *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	SentAt         *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	OpenedAt       *time.Time `json:"opened_at,omitempty" db:"opened_at"`
	ClickedAt      *time.Time `json:"clicked_at,omitempty" db:"clicked_at"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty" db:"unsubscribed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TrackingTokens groups a job's three tokens for the content rewriter.
type TrackingTokens struct {
	Open  string
	Click string
	Unsub string
}

// Tokens returns the job's tracking tokens.
func (j *EmailJob) Tokens() TrackingTokens {
	return TrackingTokens{Open: j.OpenToken, Click: j.ClickToken, Unsub: j.UnsubToken}
}
