package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brightsend/crm/internal/domain"
	"github.com/brightsend/crm/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository and the executor's campaign
// store against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, name, subject, from_name, from_email,
	COALESCE(html_body,''), COALESCE(text_body,''), status,
	scheduled_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := row.Scan(
		&c.ID, &c.Name, &c.Subject, &c.FromName, &c.FromEmail,
		&c.HTMLBody, &c.TextBody, &c.Status,
		&c.ScheduledAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	countQ := `SELECT COUNT(*) FROM campaigns`
	args := []interface{}{}
	if f.Status != "" {
		countQ += ` WHERE status = $1`
		args = append(args, f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignColumns + ` FROM campaigns`
	qArgs := []interface{}{}
	idx := 1
	if f.Status != "" {
		q += fmt.Sprintf(" WHERE status = $%d", idx)
		qArgs = append(qArgs, f.Status)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	qArgs = append(qArgs, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, qArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, name, subject, from_name, from_email, html_body, text_body,
			 status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`, c.ID, c.Name, c.Subject, c.FromName, c.FromEmail,
		c.HTMLBody, c.TextBody, c.Status)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

// UpdateStatus transitions status only while the row is still in `from`, so
// concurrent writers cannot clobber each other's lifecycle moves.
func (r *CampaignRepo) UpdateStatus(ctx context.Context, id string, from, to domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM campaigns WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check campaign: %w", err)
		}
		if !exists {
			return campaign.ErrNotFound
		}
		return campaign.ErrInvalidTransition
	}
	return nil
}

// MarkScheduled stamps the campaign scheduled with its target time.
func (r *CampaignRepo) MarkScheduled(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, scheduled_at = $2, updated_at = NOW()
		WHERE id = $3
	`, domain.CampaignScheduled, at, id)
	if err != nil {
		return fmt.Errorf("mark campaign scheduled: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}
