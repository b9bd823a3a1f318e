package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/villastay/booking-backend/internal/models"
)

// WebhookEventRepository handles the webhook_events audit table
type WebhookEventRepository struct {
	db DB
}

// NewWebhookEventRepository creates a new WebhookEventRepository
func NewWebhookEventRepository(db DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Insert records one inbound owner-action event and its outcome
func (r *WebhookEventRepository) Insert(event *models.WebhookEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	query := `
		INSERT INTO webhook_events (id, message_id, booking_id, action, outcome, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(query,
		event.ID, event.MessageID, event.BookingID, event.Action, event.Outcome, event.ReceivedAt,
	)
	return err
}

// DeleteOlderThan removes audit records received before the cutoff and returns
// the number of rows deleted
func (r *WebhookEventRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM webhook_events
		WHERE received_at < $1
	`

	result, err := r.db.Exec(query, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
