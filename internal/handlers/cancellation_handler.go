package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/villastay/booking-backend/internal/database"
	"github.com/villastay/booking-backend/internal/models"
	"github.com/villastay/booking-backend/pkg/paytm"
	"github.com/villastay/booking-backend/pkg/whatsapp"
)

// CancellationHandler handles processing of owner-cancelled bookings
type CancellationHandler struct {
	bookingRepo *database.BookingRepository
	gateway     whatsapp.Gateway
	refunds     paytm.RefundGateway
	logger      *logrus.Logger
}

// NewCancellationHandler creates a new cancellation handler
func NewCancellationHandler(
	bookingRepo *database.BookingRepository,
	gateway whatsapp.Gateway,
	refunds paytm.RefundGateway,
	logger *logrus.Logger,
) *CancellationHandler {
	return &CancellationHandler{
		bookingRepo: bookingRepo,
		gateway:     gateway,
		refunds:     refunds,
		logger:      logger,
	}
}

// ProcessCancelled handles POST /bookings/process-cancelled.
// Refunds the advance when payment was captured, otherwise closes the booking
// without a refund. Re-invocations after a refund was initiated are answered
// idempotently.
func (h *CancellationHandler) ProcessCancelled(c *gin.Context) {
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

	if booking.RefundProcessed() {
		h.logger.WithFields(logrus.Fields{
			"booking_id": req.BookingID,
			"refund_id":  *booking.RefundID,
		}).Info("Refund already processed")
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "Refund already processed",
			"refund_id": *booking.RefundID,
		})
		return
	}

	if booking.BookingStatus != models.StatusOwnerCancelled {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "Invalid status",
			"current_status": booking.BookingStatus,
			"message":        "Booking must be in OWNER_CANCELLED status",
		})
		return
	}

	if booking.PaymentSucceeded() {
		h.processRefund(c, booking)
		return
	}

	h.closeWithoutRefund(c, booking)
}

// processRefund initiates the advance refund through the payment gateway
func (h *CancellationHandler) processRefund(c *gin.Context, booking *models.Booking) {
	refundID, err := h.refunds.InitiateRefund(booking.OrderID, booking.TransactionID, booking.AdvanceAmount)
	if err != nil {
		h.logger.WithError(err).WithField("booking_id", booking.BookingID).Error("Refund initiation failed")

		if updateErr := h.bookingRepo.UpdateStatusIfCurrent(booking.BookingID, models.StatusOwnerCancelled, models.StatusRefundFailed); updateErr != nil {
			h.logger.WithError(updateErr).WithField("booking_id", booking.BookingID).Error("Failed to mark refund as failed")
		}

		adminMessage := "⚠️ Refund Failed\n\nBooking ID: " + booking.BookingID +
			"\nProperty: " + booking.PropertyName +
			"\nGuest: " + booking.GuestName + " (" + booking.GuestPhone + ")" +
			"\nAmount: ₹" + formatAmount(booking.AdvanceAmount) +
			"\n\nError: " + err.Error() +
			"\n\nManual refund required!"

		h.sendNotification(booking.AdminPhone, adminMessage, booking.BookingID)

		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Refund failed",
			"details": err.Error(),
		})
		return
	}

	err = h.bookingRepo.MarkRefundInitiated(booking.BookingID, refundID)
	if errors.Is(err, database.ErrStatusConflict) {
		// A concurrent invocation recorded its refund first
		h.logger.WithField("booking_id", booking.BookingID).Warn("Refund already recorded by concurrent invocation")
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Refund already processed",
		})
		return
	}
	if err != nil {
		// The refund is in flight at the gateway; surface the write failure in
		// logs but keep the flow going so the guest and admin are informed.
		h.logger.WithError(err).WithField("booking_id", booking.BookingID).Error("Failed to record refund id")
	}

	guestMessage := "❌ Booking Cancelled\n\nYour booking has been cancelled by the property owner.\n\nBooking ID: " + booking.BookingID +
		"\nRefund Amount: ₹" + formatAmount(booking.AdvanceAmount) +
		"\n\nYour refund has been initiated and will be credited to your payment account within 5-7 business days."

	h.sendNotification(booking.GuestPhone, guestMessage, booking.BookingID)

	adminMessage := "❌ Booking Cancelled - Refund Initiated\n\nBooking ID: " + booking.BookingID +
		"\nProperty: " + booking.PropertyName +
		"\nGuest: " + booking.GuestName + " (" + booking.GuestPhone + ")" +
		"\nRefund Amount: ₹" + formatAmount(booking.AdvanceAmount) +
		"\nRefund ID: " + refundID +
		"\n\nStatus: Refund initiated successfully"

	h.sendNotification(booking.AdminPhone, adminMessage, booking.BookingID)

	h.logger.WithFields(logrus.Fields{
		"booking_id": booking.BookingID,
		"refund_id":  refundID,
	}).Info("Refund initiated")

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"booking_id": booking.BookingID,
		"status":     models.StatusRefundInitiated,
		"refund_id":  refundID,
	})
}

// closeWithoutRefund finishes a cancellation where no payment was captured
func (h *CancellationHandler) closeWithoutRefund(c *gin.Context, booking *models.Booking) {
	err := h.bookingRepo.UpdateStatusIfCurrent(booking.BookingID, models.StatusOwnerCancelled, models.StatusCancelledNoRefund)
	if err != nil && !errors.Is(err, database.ErrStatusConflict) {
		h.logger.WithError(err).WithField("booking_id", booking.BookingID).Error("Failed to close booking without refund")
	}

	guestMessage := "❌ Booking Cancelled\n\nYour booking has been cancelled.\n\nBooking ID: " + booking.BookingID +
		"\n\nNo payment was processed, so no refund is needed."

	h.sendNotification(booking.GuestPhone, guestMessage, booking.BookingID)

	adminMessage := "❌ Booking Cancelled - No Refund Required\n\nBooking ID: " + booking.BookingID +
		"\nProperty: " + booking.PropertyName +
		"\nGuest: " + booking.GuestName +
		"\n\nPayment Status: " + booking.PaymentStatus +
		"\nNo refund required."

	h.sendNotification(booking.AdminPhone, adminMessage, booking.BookingID)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"booking_id": booking.BookingID,
		"status":     models.StatusCancelledNoRefund,
		"message":    "No refund required - payment was not successful",
	})
}

// sendNotification delivers a message best-effort
func (h *CancellationHandler) sendNotification(phone, body, bookingID string) {
	if err := h.gateway.SendTextMessage(phone, body); err != nil {
		h.logger.WithError(err).WithField("booking_id", bookingID).Error("Failed to send notification")
	}
}
