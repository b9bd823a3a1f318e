package database

import (
	"database/sql"
	"errors"

	"github.com/villastay/booking-backend/internal/models"
)

// ErrStatusConflict is returned when a conditional status update matched no row
// because the booking was no longer in the expected status. Callers treat this
// the same as "already processed".
var ErrStatusConflict = errors.New("booking not in expected status")

// scanner abstracts sql.Row / sql.Rows for single-record scans
type scanner interface {
	Scan(dest ...interface{}) error
}

const bookingColumns = `
	booking_id, property_name, property_address, map_link, persons,
	guest_name, guest_phone, owner_name, owner_phone, admin_phone,
	payment_status, order_id, transaction_id, advance_amount, total_amount,
	refund_id, booking_status, checkin_datetime, checkout_datetime,
	created_at, updated_at`

// BookingRepository handles database operations for the bookings table
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// GetByBookingID retrieves a booking by its booking id.
// Returns sql.ErrNoRows when the booking does not exist.
func (r *BookingRepository) GetByBookingID(bookingID string) (*models.Booking, error) {
	query := `
		SELECT` + bookingColumns + `
		FROM bookings
		WHERE booking_id = $1
	`

	return r.scanBooking(r.db.QueryRow(query, bookingID))
}

// UpdateStatusIfCurrent advances the booking status only if the booking is still
// in the expected current status. Zero rows updated means another invocation got
// there first and is reported as ErrStatusConflict, not as a write failure.
func (r *BookingRepository) UpdateStatusIfCurrent(bookingID string, current, next models.BookingStatus) error {
	query := `
		UPDATE bookings
		SET booking_status = $3, updated_at = NOW()
		WHERE booking_id = $1 AND booking_status = $2
	`

	result, err := r.db.Exec(query, bookingID, current, next)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrStatusConflict
	}

	return nil
}

// UpdateStatus writes a booking status unconditionally. Meant for manual
// corrections and maintenance tooling, not the webhook-driven transitions.
func (r *BookingRepository) UpdateStatus(bookingID string, status models.BookingStatus) error {
	query := `
		UPDATE bookings
		SET booking_status = $2, updated_at = NOW()
		WHERE booking_id = $1
	`

	result, err := r.db.Exec(query, bookingID, status)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// MarkRefundInitiated records the refund id and moves the booking to
// REFUND_INITIATED. The guard on refund_id keeps refund initiation a
// set-at-most-once operation even under concurrent duplicate deliveries.
func (r *BookingRepository) MarkRefundInitiated(bookingID, refundID string) error {
	query := `
		UPDATE bookings
		SET booking_status = $3, refund_id = $2, updated_at = NOW()
		WHERE booking_id = $1
		  AND booking_status = $4
		  AND refund_id IS NULL
	`

	result, err := r.db.Exec(query, bookingID, refundID, models.StatusRefundInitiated, models.StatusOwnerCancelled)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrStatusConflict
	}

	return nil
}

// scanBooking scans a single booking
func (r *BookingRepository) scanBooking(row scanner) (*models.Booking, error) {
	booking := &models.Booking{}
	var totalAmount sql.NullFloat64
	var refundID sql.NullString

	err := row.Scan(
		&booking.BookingID, &booking.PropertyName, &booking.PropertyAddress, &booking.MapLink, &booking.Persons,
		&booking.GuestName, &booking.GuestPhone, &booking.OwnerName, &booking.OwnerPhone, &booking.AdminPhone,
		&booking.PaymentStatus, &booking.OrderID, &booking.TransactionID, &booking.AdvanceAmount, &totalAmount,
		&refundID, &booking.BookingStatus, &booking.CheckinDatetime, &booking.CheckoutDatetime,
		&booking.CreatedAt, &booking.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	if totalAmount.Valid {
		booking.TotalAmount = &totalAmount.Float64
	}
	if refundID.Valid {
		booking.RefundID = &refundID.String
	}

	return booking, nil
}
