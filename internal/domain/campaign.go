package domain

import "time"

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignCancelled CampaignStatus = "cancelled"
)

// campaignTransitions is the closed set of legal status moves. Anything not
// listed here is rejected by CanTransition.
var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignDraft:     {CampaignScheduled, CampaignSending, CampaignCancelled},
	CampaignScheduled: {CampaignSending, CampaignCancelled},
	CampaignSending:   {CampaignSending, CampaignSent},
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Sent and cancelled are terminal.
func (s CampaignStatus) CanTransition(next CampaignStatus) bool {
	for _, t := range campaignTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the campaign is in a final state.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignSent || s == CampaignCancelled
}

// Campaign represents an email campaign with its canonical content.
// HTMLBody and TextBody are never mutated by the send pipeline; recipient
// renderings are derived per job.
type Campaign struct {
	ID          string         `json:"id" db:"id"`
	Name        string         `json:"name" db:"name"`
	Subject     string         `json:"subject" db:"subject"`
	FromName    string         `json:"from_name" db:"from_name"`
	FromEmail   string         `json:"from_email" db:"from_email"`
	HTMLBody    string         `json:"html_body" db:"html_body"`
	TextBody    string         `json:"text_body" db:"text_body"`
	Status      CampaignStatus `json:"status" db:"status"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty" db:"scheduled_at"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}
