package models

import (
	"time"

	"github.com/google/uuid"
)

// EventOutcome records how an inbound webhook event was handled
type EventOutcome string

const (
	OutcomeSuccess          EventOutcome = "success"
	OutcomeDuplicate        EventOutcome = "duplicate"
	OutcomeNotButton        EventOutcome = "not_button_response"
	OutcomeInvalidPayload   EventOutcome = "invalid_payload"
	OutcomeBookingNotFound  EventOutcome = "booking_not_found"
	OutcomeAlreadyProcessed EventOutcome = "already_processed"
	OutcomeUpdateFailed     EventOutcome = "update_failed"
)

// WebhookEvent is an audit record of one inbound owner-action event.
// Writes are best-effort; the webhook response never depends on them.
type WebhookEvent struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	MessageID  string       `json:"message_id" db:"message_id"`
	BookingID  string       `json:"booking_id" db:"booking_id"`
	Action     string       `json:"action" db:"action"`
	Outcome    EventOutcome `json:"outcome" db:"outcome"`
	ReceivedAt time.Time    `json:"received_at" db:"received_at"`
}
