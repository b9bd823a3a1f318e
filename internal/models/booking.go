package models

import (
	"time"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	// StatusRequestSentToOwner is the initial status, set by the upstream booking flow
	StatusRequestSentToOwner BookingStatus = "BOOKING_REQUEST_SENT_TO_OWNER"

	// StatusOwnerConfirmed means the property owner accepted the booking
	StatusOwnerConfirmed BookingStatus = "OWNER_CONFIRMED"

	// StatusOwnerCancelled means the property owner rejected the booking
	StatusOwnerCancelled BookingStatus = "OWNER_CANCELLED"

	// StatusTicketGenerated is terminal: the e-ticket is live
	StatusTicketGenerated BookingStatus = "TICKET_GENERATED"

	// StatusRefundInitiated is terminal: the advance refund was handed to the gateway
	StatusRefundInitiated BookingStatus = "REFUND_INITIATED"

	// StatusRefundFailed is terminal: the gateway rejected the refund, manual handling needed
	StatusRefundFailed BookingStatus = "REFUND_FAILED"

	// StatusCancelledNoRefund is terminal: cancelled before any payment succeeded
	StatusCancelledNoRefund BookingStatus = "CANCELLED_NO_REFUND"
)

// PaymentStatusSuccess is the payment_status value that makes a refund necessary
// on cancellation. Anything else means no money was captured.
const PaymentStatusSuccess = "SUCCESS"

// OwnerAction is a confirm/cancel decision decoded from a WhatsApp button press
type OwnerAction string

const (
	ActionConfirm OwnerAction = "CONFIRM"
	ActionCancel  OwnerAction = "CANCEL"
)

// transitions is the booking status state graph. Statuses absent from the map
// are terminal.
var transitions = map[BookingStatus][]BookingStatus{
	StatusRequestSentToOwner: {StatusOwnerConfirmed, StatusOwnerCancelled},
	StatusOwnerConfirmed:     {StatusTicketGenerated},
	StatusOwnerCancelled:     {StatusRefundInitiated, StatusRefundFailed, StatusCancelledNoRefund},
}

// CanTransition reports whether moving from one status to another follows the state graph
func CanTransition(from, to BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions
func (s BookingStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// StatusForAction maps an owner action to the status it produces.
// Anything that is not CONFIRM cancels, matching the button contract.
func StatusForAction(action OwnerAction) BookingStatus {
	if action == ActionConfirm {
		return StatusOwnerConfirmed
	}
	return StatusOwnerCancelled
}

// Booking represents a vacation-rental reservation
type Booking struct {
	BookingID        string        `json:"booking_id" db:"booking_id"`
	PropertyName     string        `json:"property_name" db:"property_name"`
	PropertyAddress  string        `json:"property_address" db:"property_address"`
	MapLink          string        `json:"map_link" db:"map_link"`
	Persons          int           `json:"persons" db:"persons"`
	GuestName        string        `json:"guest_name" db:"guest_name"`
	GuestPhone       string        `json:"guest_phone" db:"guest_phone"`
	OwnerName        string        `json:"owner_name" db:"owner_name"`
	OwnerPhone       string        `json:"owner_phone" db:"owner_phone"`
	AdminPhone       string        `json:"admin_phone" db:"admin_phone"`
	PaymentStatus    string        `json:"payment_status" db:"payment_status"`
	OrderID          string        `json:"order_id" db:"order_id"`
	TransactionID    string        `json:"transaction_id" db:"transaction_id"`
	AdvanceAmount    float64       `json:"advance_amount" db:"advance_amount"`
	TotalAmount      *float64      `json:"total_amount,omitempty" db:"total_amount"`
	RefundID         *string       `json:"refund_id,omitempty" db:"refund_id"`
	BookingStatus    BookingStatus `json:"booking_status" db:"booking_status"`
	CheckinDatetime  time.Time     `json:"checkin_datetime" db:"checkin_datetime"`
	CheckoutDatetime time.Time     `json:"checkout_datetime" db:"checkout_datetime"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// TotalOrZero returns the total amount, treating a missing total as zero
func (b *Booking) TotalOrZero() float64 {
	if b.TotalAmount == nil {
		return 0
	}
	return *b.TotalAmount
}

// DueAmount is the remainder owed at checkout
func (b *Booking) DueAmount() float64 {
	return b.TotalOrZero() - b.AdvanceAmount
}

// PaymentSucceeded reports whether the advance payment was captured
func (b *Booking) PaymentSucceeded() bool {
	return b.PaymentStatus == PaymentStatusSuccess
}

// RefundProcessed reports whether a refund was already initiated for this booking.
// Once a refund id is recorded, refund initiation must never be repeated.
func (b *Booking) RefundProcessed() bool {
	return b.RefundID != nil && *b.RefundID != ""
}

// IsExpired reports whether the stay has ended relative to now
func (b *Booking) IsExpired(now time.Time) bool {
	return now.After(b.CheckoutDatetime)
}

// TicketAvailable reports whether an e-ticket may be served for this booking
func (b *Booking) TicketAvailable() bool {
	return b.BookingStatus == StatusTicketGenerated || b.BookingStatus == StatusOwnerConfirmed
}

// ETicket is the read-model projection served to guests
type ETicket struct {
	BookingID        string        `json:"booking_id"`
	PropertyName     string        `json:"property_name"`
	GuestName        string        `json:"guest_name"`
	GuestPhone       string        `json:"guest_phone"`
	CheckinDatetime  time.Time     `json:"checkin_datetime"`
	CheckoutDatetime time.Time     `json:"checkout_datetime"`
	AdvanceAmount    float64       `json:"advance_amount"`
	DueAmount        float64       `json:"due_amount"`
	TotalAmount      *float64      `json:"total_amount"`
	OwnerName        string        `json:"owner_name"`
	OwnerPhone       string        `json:"owner_phone"`
	MapLink          string        `json:"map_link"`
	PropertyAddress  string        `json:"property_address"`
	Persons          int           `json:"persons"`
	BookingStatus    BookingStatus `json:"booking_status"`
	CreatedAt        time.Time     `json:"created_at"`
}

// ToETicket builds the e-ticket projection for a booking
func (b *Booking) ToETicket() *ETicket {
	return &ETicket{
		BookingID:        b.BookingID,
		PropertyName:     b.PropertyName,
		GuestName:        b.GuestName,
		GuestPhone:       b.GuestPhone,
		CheckinDatetime:  b.CheckinDatetime,
		CheckoutDatetime: b.CheckoutDatetime,
		AdvanceAmount:    b.AdvanceAmount,
		DueAmount:        b.DueAmount(),
		TotalAmount:      b.TotalAmount,
		OwnerName:        b.OwnerName,
		OwnerPhone:       b.OwnerPhone,
		MapLink:          b.MapLink,
		PropertyAddress:  b.PropertyAddress,
		Persons:          b.Persons,
		BookingStatus:    b.BookingStatus,
		CreatedAt:        b.CreatedAt,
	}
}

// ProcessBookingRequest is the request body for the confirmation and cancellation processors
type ProcessBookingRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
}
