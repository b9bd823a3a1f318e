package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	t.Run("Valid Transitions", func(t *testing.T) {
		assert.True(t, CanTransition(StatusRequestSentToOwner, StatusOwnerConfirmed))
		assert.True(t, CanTransition(StatusRequestSentToOwner, StatusOwnerCancelled))
		assert.True(t, CanTransition(StatusOwnerConfirmed, StatusTicketGenerated))
		assert.True(t, CanTransition(StatusOwnerCancelled, StatusRefundInitiated))
		assert.True(t, CanTransition(StatusOwnerCancelled, StatusRefundFailed))
		assert.True(t, CanTransition(StatusOwnerCancelled, StatusCancelledNoRefund))
	})

	t.Run("Invalid Transitions", func(t *testing.T) {
		assert.False(t, CanTransition(StatusOwnerConfirmed, StatusOwnerCancelled))
		assert.False(t, CanTransition(StatusOwnerCancelled, StatusOwnerConfirmed))
		assert.False(t, CanTransition(StatusTicketGenerated, StatusRequestSentToOwner))
		assert.False(t, CanTransition(StatusRefundInitiated, StatusRefundFailed))
		assert.False(t, CanTransition(StatusRequestSentToOwner, StatusTicketGenerated))
	})

	t.Run("Terminal Statuses", func(t *testing.T) {
		assert.True(t, StatusTicketGenerated.IsTerminal())
		assert.True(t, StatusRefundInitiated.IsTerminal())
		assert.True(t, StatusRefundFailed.IsTerminal())
		assert.True(t, StatusCancelledNoRefund.IsTerminal())
		assert.False(t, StatusRequestSentToOwner.IsTerminal())
		assert.False(t, StatusOwnerConfirmed.IsTerminal())
		assert.False(t, StatusOwnerCancelled.IsTerminal())
	})
}

func TestStatusForAction(t *testing.T) {
	assert.Equal(t, StatusOwnerConfirmed, StatusForAction(ActionConfirm))
	assert.Equal(t, StatusOwnerCancelled, StatusForAction(ActionCancel))

	// Unknown actions cancel, never confirm
	assert.Equal(t, StatusOwnerCancelled, StatusForAction(OwnerAction("REJECT")))
	assert.Equal(t, StatusOwnerCancelled, StatusForAction(OwnerAction("")))
}

func TestBookingAmounts(t *testing.T) {
	t.Run("Due Amount", func(t *testing.T) {
		total := 15000.0
		booking := &Booking{AdvanceAmount: 5000, TotalAmount: &total}
		assert.Equal(t, 10000.0, booking.DueAmount())
	})

	t.Run("Missing Total Treated As Zero", func(t *testing.T) {
		booking := &Booking{AdvanceAmount: 5000}
		assert.Equal(t, 0.0, booking.TotalOrZero())
		assert.Equal(t, -5000.0, booking.DueAmount())
	})
}

func TestRefundProcessed(t *testing.T) {
	refundID := "REFUND_ORDER_1001_1700000000000"
	empty := ""

	assert.False(t, (&Booking{}).RefundProcessed())
	assert.False(t, (&Booking{RefundID: &empty}).RefundProcessed())
	assert.True(t, (&Booking{RefundID: &refundID}).RefundProcessed())
}

func TestTicketAvailability(t *testing.T) {
	t.Run("Available Statuses", func(t *testing.T) {
		assert.True(t, (&Booking{BookingStatus: StatusTicketGenerated}).TicketAvailable())
		assert.True(t, (&Booking{BookingStatus: StatusOwnerConfirmed}).TicketAvailable())
	})

	t.Run("Unavailable Statuses", func(t *testing.T) {
		assert.False(t, (&Booking{BookingStatus: StatusRequestSentToOwner}).TicketAvailable())
		assert.False(t, (&Booking{BookingStatus: StatusOwnerCancelled}).TicketAvailable())
		assert.False(t, (&Booking{BookingStatus: StatusRefundInitiated}).TicketAvailable())
	})

	t.Run("Expiry", func(t *testing.T) {
		now := time.Now()
		booking := &Booking{CheckoutDatetime: now.Add(-time.Hour)}
		assert.True(t, booking.IsExpired(now))

		booking.CheckoutDatetime = now.Add(time.Hour)
		assert.False(t, booking.IsExpired(now))
	})
}

func TestToETicket(t *testing.T) {
	total := 15000.0
	now := time.Now()
	booking := &Booking{
		BookingID:        "BK-1001",
		PropertyName:     "Sea Breeze Villa",
		GuestName:        "Rohan Mehta",
		GuestPhone:       "919876543210",
		AdvanceAmount:    5000,
		TotalAmount:      &total,
		BookingStatus:    StatusTicketGenerated,
		CheckinDatetime:  now.Add(24 * time.Hour),
		CheckoutDatetime: now.Add(72 * time.Hour),
		CreatedAt:        now,
	}

	ticket := booking.ToETicket()
	assert.Equal(t, "BK-1001", ticket.BookingID)
	assert.Equal(t, 5000.0, ticket.AdvanceAmount)
	assert.Equal(t, 10000.0, ticket.DueAmount)
	assert.Equal(t, StatusTicketGenerated, ticket.BookingStatus)
}
