package storage

import (
	"context"

	"github.com/Bobtechma/schonheitslokal2/libs/db"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Notification is one delivery attempt as kept in the notifications log.
type Notification struct {
	EventID       string
	AppointmentID string
	Kind          string
	Language      string
	Recipient     string
	Subject       string
	Provider      string
	Status        string
	Error         string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, appointment_id, kind, language, recipient, subject, provider, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
	`, n.EventID, n.AppointmentID, n.Kind, n.Language, n.Recipient, n.Subject, n.Provider, n.Status, n.Error)
	return err
}
