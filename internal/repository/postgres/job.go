package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brightsend/crm/internal/domain"
	"github.com/brightsend/crm/internal/service/tracking"
)

// JobRepo implements the job stores used by audience resolution, the send
// executor, and the tracking endpoints.
type JobRepo struct{ db *sql.DB }

// NewJobRepo creates a Postgres-backed job repository.
func NewJobRepo(db *sql.DB) *JobRepo { return &JobRepo{db: db} }

const jobColumns = `id, campaign_id, client_id, to_email, status,
	COALESCE(last_error,''), open_token, click_token, unsub_token,
	scheduled_at, sent_at, opened_at, clicked_at, unsubscribed_at,
	created_at, updated_at`

func scanJob(row interface{ Scan(...interface{}) error }) (*domain.EmailJob, error) {
	j := &domain.EmailJob{}
	err := row.Scan(
		&j.ID, &j.CampaignID, &j.ClientID, &j.ToEmail, &j.Status,
		&j.LastError, &j.OpenToken, &j.ClickToken, &j.UnsubToken,
		&j.ScheduledAt, &j.SentAt, &j.OpenedAt, &j.ClickedAt, &j.UnsubscribedAt,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// CreateBatch inserts jobs inside one transaction. The unique
// (campaign_id, client_id) constraint silently drops candidates that already
// hold a job for the campaign; the return value counts actual inserts.
func (r *JobRepo) CreateBatch(ctx context.Context, jobs []*domain.EmailJob) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, j := range jobs {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO email_jobs
				(id, campaign_id, client_id, to_email, status,
				 open_token, click_token, unsub_token, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
			ON CONFLICT (campaign_id, client_id) DO NOTHING
		`, j.ID, j.CampaignID, j.ClientID, j.ToEmail, j.Status,
			j.OpenToken, j.ClickToken, j.UnsubToken)
		if err != nil {
			return 0, fmt.Errorf("insert job: %w", err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *JobRepo) StatusCounts(ctx context.Context, campaignID string) (map[domain.JobStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM email_jobs
		WHERE campaign_id = $1
		GROUP BY status
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()

	out := map[domain.JobStatus]int{}
	for rows.Next() {
		var status domain.JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *JobRepo) ListPending(ctx context.Context, campaignID string, limit int) ([]domain.EmailJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM email_jobs
		WHERE campaign_id = $1 AND status = $2
		ORDER BY created_at
		LIMIT $3
	`, campaignID, domain.JobPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func (r *JobRepo) CountPending(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM email_jobs WHERE campaign_id = $1 AND status = $2
	`, campaignID, domain.JobPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// TransitionStatus is the claim primitive: the row only moves when it is
// still in `from`, so exactly one of several concurrent executors wins.
func (r *JobRepo) TransitionStatus(ctx context.Context, jobID string, from, to domain.JobStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_jobs SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, jobID, from)
	if err != nil {
		return false, fmt.Errorf("transition job: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *JobRepo) MarkSent(ctx context.Context, jobID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_jobs SET status = $1, sent_at = $2, updated_at = NOW()
		WHERE id = $3
	`, domain.JobSent, at, jobID)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

func (r *JobRepo) MarkFailed(ctx context.Context, jobID, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_jobs SET status = $1, last_error = $2, updated_at = NOW()
		WHERE id = $3
	`, domain.JobFailed, lastError, jobID)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (r *JobRepo) ScheduleAll(ctx context.Context, campaignID string, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_jobs SET status = $1, scheduled_at = $2, updated_at = NOW()
		WHERE campaign_id = $3 AND status = $4
	`, domain.JobScheduled, at, campaignID, domain.JobPending)
	if err != nil {
		return 0, fmt.Errorf("schedule jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *JobRepo) ReleaseScheduled(ctx context.Context, campaignID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_jobs SET status = $1, scheduled_at = NULL, updated_at = NOW()
		WHERE campaign_id = $2 AND status = $3
	`, domain.JobPending, campaignID, domain.JobScheduled)
	if err != nil {
		return 0, fmt.Errorf("release scheduled: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *JobRepo) getByToken(ctx context.Context, column, token string) (*domain.EmailJob, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM email_jobs
		WHERE `+column+` = $1
	`, token))
	if err == sql.ErrNoRows {
		return nil, tracking.ErrUnknownToken
	}
	if err != nil {
		return nil, fmt.Errorf("get job by token: %w", err)
	}
	return j, nil
}

func (r *JobRepo) GetByOpenToken(ctx context.Context, token string) (*domain.EmailJob, error) {
	return r.getByToken(ctx, "open_token", token)
}

func (r *JobRepo) GetByClickToken(ctx context.Context, token string) (*domain.EmailJob, error) {
	return r.getByToken(ctx, "click_token", token)
}

func (r *JobRepo) GetByUnsubToken(ctx context.Context, token string) (*domain.EmailJob, error) {
	return r.getByToken(ctx, "unsub_token", token)
}

// MarkOpened records the first open only. The IS NULL guard makes the write
// at-most-once under concurrent pixel hits.
func (r *JobRepo) MarkOpened(ctx context.Context, jobID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_jobs SET opened_at = $1, updated_at = NOW()
		WHERE id = $2 AND opened_at IS NULL
	`, at, jobID)
	if err != nil {
		return false, fmt.Errorf("mark opened: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkClicked records the first click timestamp; later clicks keep it.
func (r *JobRepo) MarkClicked(ctx context.Context, jobID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_jobs SET clicked_at = $1, updated_at = NOW()
		WHERE id = $2 AND clicked_at IS NULL
	`, at, jobID)
	if err != nil {
		return false, fmt.Errorf("mark clicked: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *JobRepo) MarkUnsubscribed(ctx context.Context, jobID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_jobs SET unsubscribed_at = $1, updated_at = NOW()
		WHERE id = $2 AND unsubscribed_at IS NULL
	`, at, jobID)
	if err != nil {
		return fmt.Errorf("mark unsubscribed: %w", err)
	}
	return nil
}
