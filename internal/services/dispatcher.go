package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/villastay/booking-backend/pkg/jwt"
)

// Task identifies a booking processor the webhook handler can invoke
type Task string

const (
	// TaskProcessConfirmed runs guest/admin notifications for a confirmed booking
	TaskProcessConfirmed Task = "process-confirmed"

	// TaskProcessCancelled runs the refund flow for a cancelled booking
	TaskProcessCancelled Task = "process-cancelled"
)

// Dispatcher invokes a booking processor for a booking.
// The webhook handler treats dispatch failures as non-fatal; the status
// transition has already been persisted by the time a task is dispatched.
type Dispatcher interface {
	Dispatch(task Task, bookingID string) error
}

// HTTPDispatcher dispatches tasks by calling the processor endpoints over HTTP
type HTTPDispatcher struct {
	baseURL    string
	jwtService *jwt.Service
	client     *http.Client
	logger     *logrus.Logger
}

// NewHTTPDispatcher creates a dispatcher that posts to the processor endpoints
// under baseURL. jwtService may be nil when service auth is disabled.
func NewHTTPDispatcher(baseURL string, jwtService *jwt.Service, logger *logrus.Logger) *HTTPDispatcher {
	return &HTTPDispatcher{
		baseURL:    baseURL,
		jwtService: jwtService,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// dispatchRequest is the processor request body
type dispatchRequest struct {
	BookingID string `json:"booking_id"`
}

// Dispatch posts the booking id to the processor endpoint for the task
func (d *HTTPDispatcher) Dispatch(task Task, bookingID string) error {
	jsonData, err := json.Marshal(dispatchRequest{BookingID: bookingID})
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch request: %w", err)
	}

	url := fmt.Sprintf("%s/bookings/%s", d.baseURL, task)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if d.jwtService != nil {
		token, err := d.jwtService.GenerateServiceToken("webhook-dispatcher")
		if err != nil {
			return fmt.Errorf("failed to generate service token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to dispatch %s: %w", task, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("dispatch %s failed with status %d: %s", task, resp.StatusCode, string(body))
	}

	d.logger.WithFields(logrus.Fields{
		"task":       string(task),
		"booking_id": bookingID,
	}).Debug("Processor dispatched")

	return nil
}
