package domain

import "time"

// Client is a CRM contact. Email is unique across all clients. Clients have
// an independent lifecycle: jobs reference them but never own them.
type Client struct {
	ID           string            `json:"id" db:"id"`
	Email        string            `json:"email" db:"email"`
	FirstName    string            `json:"first_name" db:"first_name"`
	LastName     string            `json:"last_name" db:"last_name"`
	Phone        string            `json:"phone,omitempty" db:"phone"`
	Company      string            `json:"company,omitempty" db:"company"`
	CustomFields map[string]string `json:"custom_fields,omitempty" db:"custom_fields"`
	Tags         []string          `json:"tags,omitempty"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
}
