package domain

import "time"

// EventType enumerates the kinds of engagement events.
type EventType string

const (
	EventOpen        EventType = "open"
	EventClick       EventType = "click"
	EventUnsubscribe EventType = "unsubscribe"
)

// Event is an append-only engagement log entry. Events are never updated or
// deleted.
type Event struct {
	ID         string            `json:"id" db:"id"`
	ClientID   string            `json:"client_id" db:"client_id"`
	JobID      string            `json:"job_id" db:"job_id"`
	CampaignID string            `json:"campaign_id" db:"campaign_id"`
	Type       EventType         `json:"type" db:"type"`
	Metadata   map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}
