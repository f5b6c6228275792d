package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/brightsend/crm/internal/domain"
)

// EventRepo is the append-only engagement log. There is no update or delete
// path on purpose.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed event repository.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e *domain.Event) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO events (id, client_id, job_id, campaign_id, type, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.ClientID, e.JobID, e.CampaignID, e.Type, meta, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListByCampaign returns a campaign's engagement history, newest first.
func (r *EventRepo) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, job_id, campaign_id, type, metadata, created_at
		FROM events
		WHERE campaign_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var meta []byte
		if err := rows.Scan(&e.ID, &e.ClientID, &e.JobID, &e.CampaignID, &e.Type, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
