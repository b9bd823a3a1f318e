package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/villastay/booking-backend/internal/database"
	"github.com/villastay/booking-backend/internal/models"
	"github.com/villastay/booking-backend/internal/services"
	"github.com/villastay/booking-backend/pkg/whatsapp"
)

// WebhookHandler handles the WhatsApp webhook endpoints
type WebhookHandler struct {
	bookingRepo *database.BookingRepository
	eventRepo   *database.WebhookEventRepository
	gateway     whatsapp.Gateway
	dedup       *services.DedupCache
	dispatcher  services.Dispatcher
	logger      *logrus.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(
	bookingRepo *database.BookingRepository,
	eventRepo *database.WebhookEventRepository,
	gateway whatsapp.Gateway,
	dedup *services.DedupCache,
	dispatcher services.Dispatcher,
	logger *logrus.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		bookingRepo: bookingRepo,
		eventRepo:   eventRepo,
		gateway:     gateway,
		dedup:       dedup,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// ownerActionPayload is the JSON carried in a WhatsApp button id
type ownerActionPayload struct {
	BookingID string             `json:"bookingId"`
	Action    models.OwnerAction `json:"action"`
}

// Verify handles GET /webhook/whatsapp (Meta webhook verification handshake)
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "" || token == "" || challenge == "" {
		c.String(http.StatusBadRequest, "Missing verification parameters")
		return
	}

	verified, ok := h.gateway.VerifyWebhook(mode, token, challenge)
	if !ok {
		h.logger.WithField("mode", mode).Warn("Webhook verification failed")
		c.String(http.StatusForbidden, "Verification failed")
		return
	}

	c.String(http.StatusOK, verified)
}

// Receive handles POST /webhook/whatsapp (owner button responses).
// Meta retries deliveries that do not return 2xx, so every outcome the
// service can do nothing about is answered 200 with a reason marker. Only
// a failed status write returns 500 and invites a retry.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var payload whatsapp.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.WithError(err).Warn("Unparseable webhook payload")
		c.JSON(http.StatusOK, gin.H{"status": "error", "reason": "invalid_payload"})
		return
	}

	event := whatsapp.ExtractButtonEvent(&payload)
	if event == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "not_button_response"})
		return
	}

	if event.MessageID != "" && h.dedup.Seen(event.MessageID) {
		h.logger.WithField("message_id", event.MessageID).Info("Duplicate webhook delivery ignored")
		h.recordEvent(event.MessageID, "", "", models.OutcomeDuplicate)
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "duplicate"})
		return
	}

	var action ownerActionPayload
	if err := json.Unmarshal([]byte(event.ButtonID), &action); err != nil || action.BookingID == "" {
		h.logger.WithField("button_id", event.ButtonID).Warn("Invalid button payload")
		h.recordEvent(event.MessageID, "", "", models.OutcomeInvalidPayload)
		c.JSON(http.StatusOK, gin.H{"status": "error", "reason": "invalid_payload"})
		return
	}

	booking, err := h.bookingRepo.GetByBookingID(action.BookingID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			h.logger.WithError(err).WithField("booking_id", action.BookingID).Error("Failed to fetch booking")
		}
		h.recordEvent(event.MessageID, action.BookingID, string(action.Action), models.OutcomeBookingNotFound)
		c.JSON(http.StatusOK, gin.H{"status": "error", "reason": "booking_not_found"})
		return
	}

	if booking.BookingStatus != models.StatusRequestSentToOwner {
		h.logger.WithFields(logrus.Fields{
			"booking_id": action.BookingID,
			"status":     booking.BookingStatus,
		}).Info("Booking already processed")
		h.recordEvent(event.MessageID, action.BookingID, string(action.Action), models.OutcomeAlreadyProcessed)
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "already_processed"})
		return
	}

	newStatus := models.StatusForAction(action.Action)

	err = h.bookingRepo.UpdateStatusIfCurrent(action.BookingID, models.StatusRequestSentToOwner, newStatus)
	if errors.Is(err, database.ErrStatusConflict) {
		// Lost the race against a concurrent delivery of the same decision
		h.recordEvent(event.MessageID, action.BookingID, string(action.Action), models.OutcomeAlreadyProcessed)
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "already_processed"})
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("booking_id", action.BookingID).Error("Failed to update booking status")
		h.recordEvent(event.MessageID, action.BookingID, string(action.Action), models.OutcomeUpdateFailed)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "reason": "update_failed"})
		return
	}

	h.notifyOwner(booking, newStatus)
	h.dispatchProcessor(action.BookingID, newStatus)

	h.logger.WithFields(logrus.Fields{
		"booking_id": action.BookingID,
		"status":     newStatus,
	}).Info("Booking status updated from owner action")

	h.recordEvent(event.MessageID, action.BookingID, string(action.Action), models.OutcomeSuccess)
	c.JSON(http.StatusOK, gin.H{"status": "success", "action": newStatus})
}

// notifyOwner acknowledges the owner's decision. Delivery failure does not
// affect the webhook response; the status is already persisted.
func (h *WebhookHandler) notifyOwner(booking *models.Booking, newStatus models.BookingStatus) {
	var body string
	if newStatus == models.StatusOwnerConfirmed {
		body = "✅ Booking confirmed!\n\nBooking ID: " + booking.BookingID +
			"\nGuest: " + booking.GuestName +
			"\nProperty: " + booking.PropertyName
	} else {
		body = "❌ Booking cancelled.\n\nBooking ID: " + booking.BookingID +
			"\nGuest: " + booking.GuestName +
			"\nProperty: " + booking.PropertyName
	}

	if err := h.gateway.SendTextMessage(booking.OwnerPhone, body); err != nil {
		h.logger.WithError(err).WithField("booking_id", booking.BookingID).Error("Failed to notify owner")
	}
}

// dispatchProcessor triggers the downstream processor for the new status.
// Dispatch failure is logged only; the processor endpoints are idempotent and
// can be re-invoked manually.
func (h *WebhookHandler) dispatchProcessor(bookingID string, newStatus models.BookingStatus) {
	task := services.TaskProcessConfirmed
	if newStatus == models.StatusOwnerCancelled {
		task = services.TaskProcessCancelled
	}

	if err := h.dispatcher.Dispatch(task, bookingID); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": bookingID,
			"task":       string(task),
		}).Error("Failed to dispatch booking processor")
	}
}

// recordEvent writes one audit row. Audit failures never affect the response.
func (h *WebhookHandler) recordEvent(messageID, bookingID, action string, outcome models.EventOutcome) {
	event := &models.WebhookEvent{
		MessageID: messageID,
		BookingID: bookingID,
		Action:    action,
		Outcome:   outcome,
	}

	if err := h.eventRepo.Insert(event); err != nil {
		h.logger.WithError(err).Warn("Failed to record webhook event")
	}
}
