package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/brightsend/crm/internal/domain"
	"github.com/brightsend/crm/internal/service/client"
)

// ClientRepo implements client.Repository against PostgreSQL. Custom fields
// live in a JSONB column, tags in a text array.
type ClientRepo struct{ db *sql.DB }

// NewClientRepo creates a Postgres-backed client repository.
func NewClientRepo(db *sql.DB) *ClientRepo { return &ClientRepo{db: db} }

const clientColumns = `id, email, COALESCE(first_name,''), COALESCE(last_name,''),
	COALESCE(phone,''), COALESCE(company,''), custom_fields, tags,
	created_at, updated_at`

func scanClient(row interface{ Scan(...interface{}) error }) (*domain.Client, error) {
	c := &domain.Client{}
	var fields []byte
	err := row.Scan(
		&c.ID, &c.Email, &c.FirstName, &c.LastName,
		&c.Phone, &c.Company, &fields, pq.Array(&c.Tags),
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &c.CustomFields); err != nil {
			return nil, fmt.Errorf("decode custom fields: %w", err)
		}
	}
	return c, nil
}

func marshalFields(fields map[string]string) ([]byte, error) {
	if fields == nil {
		fields = map[string]string{}
	}
	return json.Marshal(fields)
}

func (r *ClientRepo) Get(ctx context.Context, id string) (*domain.Client, error) {
	c, err := scanClient(r.db.QueryRowContext(ctx, `
		SELECT `+clientColumns+` FROM clients WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, client.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

func (r *ClientRepo) GetByEmail(ctx context.Context, email string) (*domain.Client, error) {
	c, err := scanClient(r.db.QueryRowContext(ctx, `
		SELECT `+clientColumns+` FROM clients WHERE email = $1
	`, email))
	if err == sql.ErrNoRows {
		return nil, client.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client by email: %w", err)
	}
	return c, nil
}

func (r *ClientRepo) List(ctx context.Context, f client.ListFilter) ([]domain.Client, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	countQ := `SELECT COUNT(*) FROM clients`
	args := []interface{}{}
	if f.Tag != "" {
		countQ += ` WHERE $1 = ANY(tags)`
		args = append(args, f.Tag)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}

	q := `SELECT ` + clientColumns + ` FROM clients`
	qArgs := []interface{}{}
	idx := 1
	if f.Tag != "" {
		q += fmt.Sprintf(" WHERE $%d = ANY(tags)", idx)
		qArgs = append(qArgs, f.Tag)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	qArgs = append(qArgs, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, qArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *ClientRepo) Create(ctx context.Context, c *domain.Client) error {
	fields, err := marshalFields(c.CustomFields)
	if err != nil {
		return fmt.Errorf("encode custom fields: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO clients
			(id, email, first_name, last_name, phone, company,
			 custom_fields, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`, c.ID, c.Email, c.FirstName, c.LastName, c.Phone, c.Company,
		fields, pq.Array(c.Tags))
	if isUniqueViolation(err) {
		return client.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

func (r *ClientRepo) Update(ctx context.Context, c *domain.Client) error {
	fields, err := marshalFields(c.CustomFields)
	if err != nil {
		return fmt.Errorf("encode custom fields: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE clients
		SET email = $1, first_name = $2, last_name = $3, phone = $4,
		    company = $5, custom_fields = $6, updated_at = NOW()
		WHERE id = $7
	`, c.Email, c.FirstName, c.LastName, c.Phone, c.Company, fields, c.ID)
	if isUniqueViolation(err) {
		return client.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return client.ErrNotFound
	}
	return nil
}

// AddTags appends only the tags the row doesn't already carry.
func (r *ClientRepo) AddTags(ctx context.Context, id string, tags []string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE clients
		SET tags = tags || ARRAY(SELECT unnest($1::text[]) EXCEPT SELECT unnest(tags)),
		    updated_at = NOW()
		WHERE id = $2
	`, pq.Array(tags), id)
	if err != nil {
		return fmt.Errorf("add tags: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return client.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// ClientDirectory adapts ClientRepo to the lookup contract the audience
// resolver and send executor use: unknown ids report nil, not an error.
type ClientDirectory struct{ repo *ClientRepo }

// NewClientDirectory wraps a ClientRepo for audience lookups.
func NewClientDirectory(repo *ClientRepo) *ClientDirectory {
	return &ClientDirectory{repo: repo}
}

func (d *ClientDirectory) Get(ctx context.Context, id string) (*domain.Client, error) {
	c, err := d.repo.Get(ctx, id)
	if err == client.ErrNotFound {
		return nil, nil
	}
	return c, err
}
