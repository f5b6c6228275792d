package domain

import "time"

// SubscriptionStatus is the per-channel opt-in state for a client.
type SubscriptionStatus string

const (
	Subscribed   SubscriptionStatus = "subscribed"
	Unsubscribed SubscriptionStatus = "unsubscribed"
)

// ChannelEmail is currently the only delivery channel.
const ChannelEmail = "email"

// Subscription is the single source of truth for suppression. The send
// executor checks it at send time; it is never cached on the job.
type Subscription struct {
	ID        string             `json:"id" db:"id"`
	ClientID  string             `json:"client_id" db:"client_id"`
	Channel   string             `json:"channel" db:"channel"`
	Status    SubscriptionStatus `json:"status" db:"status"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" db:"updated_at"`
}
