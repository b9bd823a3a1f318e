package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mssola/user_agent"
	"github.com/sirupsen/logrus"

	"github.com/villastay/booking-backend/internal/database"
)

// ETicketHandler serves the public e-ticket view
type ETicketHandler struct {
	bookingRepo *database.BookingRepository
	logger      *logrus.Logger
}

// NewETicketHandler creates a new e-ticket handler
func NewETicketHandler(bookingRepo *database.BookingRepository, logger *logrus.Logger) *ETicketHandler {
	return &ETicketHandler{
		bookingRepo: bookingRepo,
		logger:      logger,
	}
}

// GetETicket handles GET /eticket?booking_id=...
// The ticket is served only while the stay has not ended and the booking is
// confirmed or ticketed.
func (h *ETicketHandler) GetETicket(c *gin.Context) {
	bookingID := c.Query("booking_id")
	if bookingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "booking_id is required"})
		return
	}

	booking, err := h.bookingRepo.GetByBookingID(bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		h.logger.WithError(err).WithField("booking_id", bookingID).Error("Failed to fetch booking")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logAccess(c, bookingID)

	if booking.IsExpired(time.Now()) {
		c.JSON(http.StatusGone, gin.H{
			"error":             "Booking expired",
			"message":           "This booking has expired",
			"booking_id":        bookingID,
			"checkout_datetime": booking.CheckoutDatetime,
		})
		return
	}

	if !booking.TicketAvailable() {
		c.JSON(http.StatusForbidden, gin.H{
			"error":          "Ticket not available",
			"message":        "E-ticket is not yet available for this booking",
			"current_status": booking.BookingStatus,
		})
		return
	}

	c.JSON(http.StatusOK, booking.ToETicket())
}

// logAccess records who opened the ticket link, for support diagnostics
func (h *ETicketHandler) logAccess(c *gin.Context, bookingID string) {
	ua := user_agent.New(c.Request.UserAgent())
	browser, version := ua.Browser()

	h.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"ip":         c.ClientIP(),
		"browser":    browser,
		"version":    version,
		"os":         ua.OS(),
		"mobile":     ua.Mobile(),
		"bot":        ua.Bot(),
	}).Info("E-ticket accessed")
}
