package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brightsend/crm/internal/domain"
)

// SubscriptionRepo implements the per-channel opt-in store. One row per
// (client, channel); upserts keep it that way.
type SubscriptionRepo struct{ db *sql.DB }

// NewSubscriptionRepo creates a Postgres-backed subscription repository.
func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{db: db} }

func (r *SubscriptionRepo) Upsert(ctx context.Context, sub *domain.Subscription) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, client_id, channel, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (client_id, channel)
		DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()
	`, sub.ID, sub.ClientID, sub.Channel, sub.Status)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// Status reports the client's opt-in state on a channel. A client without a
// subscription row on the channel is treated as unsubscribed: absence of
// consent is not consent.
func (r *SubscriptionRepo) Status(ctx context.Context, clientID, channel string) (domain.SubscriptionStatus, error) {
	var status domain.SubscriptionStatus
	err := r.db.QueryRowContext(ctx, `
		SELECT status FROM subscriptions WHERE client_id = $1 AND channel = $2
	`, clientID, channel).Scan(&status)
	if err == sql.ErrNoRows {
		return domain.Unsubscribed, nil
	}
	if err != nil {
		return "", fmt.Errorf("subscription status: %w", err)
	}
	return status, nil
}

// UnsubscribeChannel flips every subscription the client holds on the
// channel to unsubscribed. Account-wide, driven by one job's unsub token.
func (r *SubscriptionRepo) UnsubscribeChannel(ctx context.Context, clientID, channel string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET status = $1, updated_at = NOW()
		WHERE client_id = $2 AND channel = $3
	`, domain.Unsubscribed, clientID, channel)
	if err != nil {
		return fmt.Errorf("unsubscribe channel: %w", err)
	}
	return nil
}
