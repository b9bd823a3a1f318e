package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/villastay/booking-backend/internal/database"
	"github.com/villastay/booking-backend/internal/models"
	"github.com/villastay/booking-backend/pkg/whatsapp"
)

// ConfirmationHandler handles processing of owner-confirmed bookings
type ConfirmationHandler struct {
	bookingRepo *database.BookingRepository
	gateway     whatsapp.Gateway
	frontendURL string
	logger      *logrus.Logger
}

// NewConfirmationHandler creates a new confirmation handler
func NewConfirmationHandler(
	bookingRepo *database.BookingRepository,
	gateway whatsapp.Gateway,
	frontendURL string,
	logger *logrus.Logger,
) *ConfirmationHandler {
	return &ConfirmationHandler{
		bookingRepo: bookingRepo,
		gateway:     gateway,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// ProcessConfirmed handles POST /bookings/process-confirmed.
// Moves an OWNER_CONFIRMED booking to TICKET_GENERATED and notifies the guest
// and the admin with the e-ticket link.
func (h *ConfirmationHandler) ProcessConfirmed(c *gin.Context) {
	var req models.ProcessBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "booking_id is required"})
		return
	}

	booking, err := h.bookingRepo.GetByBookingID(req.BookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		h.logger.WithError(err).WithField("booking_id", req.BookingID).Error("Failed to fetch booking")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if booking.BookingStatus != models.StatusOwnerConfirmed {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "Invalid status",
			"current_status": booking.BookingStatus,
			"message":        "Booking must be in OWNER_CONFIRMED status",
		})
		return
	}

	err = h.bookingRepo.UpdateStatusIfCurrent(req.BookingID, models.StatusOwnerConfirmed, models.StatusTicketGenerated)
	if errors.Is(err, database.ErrStatusConflict) {
		// Another invocation advanced the booking between the read and the write
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "Invalid status",
			"current_status": booking.BookingStatus,
			"message":        "Booking must be in OWNER_CONFIRMED status",
		})
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("booking_id", req.BookingID).Error("Failed to update booking status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update booking", "details": err.Error()})
		return
	}

	ticketURL := fmt.Sprintf("%s/ticket?booking_id=%s", h.frontendURL, req.BookingID)

	guestMessage := "🎉 Booking Confirmed!\n\nYour booking has been confirmed.\n\nBooking ID: " + req.BookingID +
		"\nProperty: " + booking.PropertyName +
		"\n\nView your e-ticket:\n" + ticketURL

	h.sendNotification(booking.GuestPhone, guestMessage, req.BookingID)

	adminMessage := "✅ Booking Confirmed & Ticket Generated\n\nBooking ID: " + req.BookingID +
		"\nProperty: " + booking.PropertyName +
		"\nGuest: " + booking.GuestName + " (" + booking.GuestPhone + ")" +
		"\nOwner: " + booking.OwnerPhone +
		"\nAdvance: ₹" + formatAmount(booking.AdvanceAmount) +
		"\nDue: ₹" + formatAmount(booking.DueAmount()) +
		"\n\nE-ticket: " + ticketURL

	h.sendNotification(booking.AdminPhone, adminMessage, req.BookingID)

	h.logger.WithField("booking_id", req.BookingID).Info("E-ticket activated")

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"booking_id": req.BookingID,
		"status":     models.StatusTicketGenerated,
		"ticket_url": ticketURL,
	})
}

// sendNotification delivers a message best-effort. The status transition is
// already committed; a lost notification is recoverable, a stuck booking is not.
func (h *ConfirmationHandler) sendNotification(phone, body, bookingID string) {
	if err := h.gateway.SendTextMessage(phone, body); err != nil {
		h.logger.WithError(err).WithField("booking_id", bookingID).Error("Failed to send notification")
	}
}

// formatAmount renders a rupee amount without trailing zeros
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
