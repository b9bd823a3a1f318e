package handlers

import (
	"bytes"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/villastay/booking-backend/internal/database"
	"github.com/villastay/booking-backend/internal/models"
	"github.com/villastay/booking-backend/internal/services"
)

// Shared test doubles and fixtures for the handlers package.

// testDB wraps a plain *sql.DB from sqlmock to satisfy the database.DB interface
type testDB struct {
	db *sql.DB
}

func (m *testDB) Get(dest interface{}, query string, args ...interface{}) error {
	return fmt.Errorf("Get not implemented in mock")
}

func (m *testDB) Select(dest interface{}, query string, args ...interface{}) error {
	return fmt.Errorf("Select not implemented in mock")
}

func (m *testDB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return m.db.Query(query, args...)
}

func (m *testDB) QueryRow(query string, args ...interface{}) *sql.Row {
	return m.db.QueryRow(query, args...)
}

func (m *testDB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return m.db.Exec(query, args...)
}

func (m *testDB) Close() error { return m.db.Close() }
func (m *testDB) Ping() error  { return m.db.Ping() }

var bookingTestColumns = []string{
	"booking_id", "property_name", "property_address", "map_link", "persons",
	"guest_name", "guest_phone", "owner_name", "owner_phone", "admin_phone",
	"payment_status", "order_id", "transaction_id", "advance_amount", "total_amount",
	"refund_id", "booking_status", "checkin_datetime", "checkout_datetime",
	"created_at", "updated_at",
}

// bookingRow builds one bookings row with sensible defaults
func bookingRow(bookingID string, status models.BookingStatus, paymentStatus string, refundID interface{}) []driver.Value {
	now := time.Now()
	return []driver.Value{
		bookingID, "Sea Breeze Villa", "12 Beach Road, Alibaug", "https://maps.example.com/xyz", 4,
		"Rohan Mehta", "919876543210", "Anita Shah", "919812345678", "919800000000",
		paymentStatus, "ORDER_1001", "TXN_2002", 5000.0, 15000.0,
		refundID, string(status), now.Add(24 * time.Hour), now.Add(72 * time.Hour),
		now, now,
	}
}

type sentMessage struct {
	Phone string
	Body  string
}

// fakeGateway is an in-memory whatsapp.Gateway
type fakeGateway struct {
	sent        []sentMessage
	sendErr     error
	verifyToken string
}

func (g *fakeGateway) SendTextMessage(phone, body string) error {
	if g.sendErr != nil {
		return g.sendErr
	}
	g.sent = append(g.sent, sentMessage{Phone: phone, Body: body})
	return nil
}

func (g *fakeGateway) VerifyWebhook(mode, token, challenge string) (string, bool) {
	if mode == "subscribe" && token == g.verifyToken {
		return challenge, true
	}
	return "", false
}

func (g *fakeGateway) GetName() string { return "Fake Gateway" }

type dispatched struct {
	Task      services.Task
	BookingID string
}

// fakeDispatcher records dispatched tasks
type fakeDispatcher struct {
	calls []dispatched
	err   error
}

func (d *fakeDispatcher) Dispatch(task services.Task, bookingID string) error {
	if d.err != nil {
		return d.err
	}
	d.calls = append(d.calls, dispatched{Task: task, BookingID: bookingID})
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// buttonWebhookBody builds a WhatsApp webhook delivery carrying one button press
func buttonWebhookBody(messageID, buttonID string) []byte {
	body := map[string]interface{}{
		"object": "whatsapp_business_account",
		"entry": []map[string]interface{}{{
			"id": "entry-1",
			"changes": []map[string]interface{}{{
				"field": "messages",
				"value": map[string]interface{}{
					"messaging_product": "whatsapp",
					"messages": []map[string]interface{}{{
						"id":   messageID,
						"from": "919812345678",
						"type": "button",
						"button": map[string]interface{}{
							"payload": buttonID,
							"text":    "Confirm",
						},
					}},
				},
			}},
		}},
	}
	data, _ := json.Marshal(body)
	return data
}

type webhookTestEnv struct {
	router     *gin.Engine
	mock       sqlmock.Sqlmock
	gateway    *fakeGateway
	dispatcher *fakeDispatcher
	dedup      *services.DedupCache
	cleanup    func()
}

func newWebhookTestEnv(t *testing.T) *webhookTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mockDB := &testDB{db: db}
	gateway := &fakeGateway{verifyToken: "verify-secret"}
	dispatcher := &fakeDispatcher{}
	dedup := services.NewDedupCache(10 * time.Minute)

	handler := NewWebhookHandler(
		database.NewBookingRepository(mockDB),
		database.NewWebhookEventRepository(mockDB),
		gateway,
		dedup,
		dispatcher,
		testLogger(),
	)

	router := gin.New()
	router.GET("/webhook/whatsapp", handler.Verify)
	router.POST("/webhook/whatsapp", handler.Receive)

	return &webhookTestEnv{
		router:     router,
		mock:       mock,
		gateway:    gateway,
		dispatcher: dispatcher,
		dedup:      dedup,
		cleanup: func() {
			dedup.Stop()
			db.Close()
		},
	}
}

func (env *webhookTestEnv) post(body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *webhookTestEnv) expectAuditInsert() {
	env.mock.ExpectExec(`INSERT INTO webhook_events`).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWebhookVerify(t *testing.T) {
	env := newWebhookTestEnv(t)
	defer env.cleanup()

	t.Run("Valid Token Echoes Challenge", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=verify-secret&hub.challenge=12345", nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "12345", w.Body.String())
	})

	t.Run("Wrong Token Rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Missing Parameters", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/webhook/whatsapp?hub.mode=subscribe", nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestWebhookReceive(t *testing.T) {
	confirmButton := `{"bookingId":"BK-1001","action":"CONFIRM"}`
	cancelButton := `{"bookingId":"BK-1001","action":"CANCEL"}`

	t.Run("Confirm Updates Booking And Dispatches", func(t *testing.T) {
		env := newWebhookTestEnv(t)
		defer env.cleanup()

		env.mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE booking_id`).
			WithArgs("BK-1001").
			WillReturnRows(sqlmock.NewRows(bookingTestColumns).
				AddRow(bookingRow("BK-1001", models.StatusRequestSentToOwner, "SUCCESS", nil)...))
		env.mock.ExpectExec(`UPDATE bookings`).
			WithArgs("BK-1001", string(models.StatusRequestSentToOwner), string(models.StatusOwnerConfirmed)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		env.expectAuditInsert()

		w := env.post(buttonWebhookBody("wamid.msg-1", confirmButton))

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, string(models.StatusOwnerConfirmed), body["action"])

		require.Len(t, env.gateway.sent, 1)
		assert.Equal(t, "919812345678", env.gateway.sent[0].Phone)
		assert.Contains(t, env.gateway.sent[0].Body, "Booking confirmed!")
		assert.Contains(t, env.gateway.sent[0].Body, "BK-1001")

		require.Len(t, env.dispatcher.calls, 1)
		assert.Equal(t, services.TaskProcessConfirmed, env.dispatcher.calls[0].Task)
		assert.Equal(t, "BK-1001", env.dispatcher.calls[0].BookingID)

		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("Cancel Dispatches Cancellation Processor", func(t *testing.T) {
		env := newWebhookTestEnv(t)
		defer env.cleanup()

		env.mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE booking_id`).
			WithArgs("BK-1001").
			WillReturnRows(sqlmock.NewRows(bookingTestColumns).
				AddRow(bookingRow("BK-1001", models.StatusRequestSentToOwner, "SUCCESS", nil)...))
		env.mock.ExpectExec(`UPDATE bookings`).
			WithArgs("BK-1001", string(models.StatusRequestSentToOwner), string(models.StatusOwnerCancelled)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		env.expectAuditInsert()

		w := env.post(buttonWebhookBody("wamid.msg-2", cancelButton))

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, string(models.StatusOwnerCancelled), body["action"])

		require.Len(t, env.gateway.sent, 1)
		assert.Contains(t, env.gateway.sent[0].Body, "Booking cancelled.")

		require.Len(t, env.dispatcher.calls, 1)
		assert.Equal(t, services.TaskProcessCancelled, env.dispatcher.calls[0].Task)
	})

	t.Run("Non Button Delivery Ignored", func(t *testing.T) {
		env := newWebhookTestEnv(t)
		defer env.cleanup()

		body := []byte(`{"object":"whatsapp_business_account","entry":[{"id":"e","changes":[{"field":"messages","value":{"messaging_product":"whatsapp","messages":[{"id":"wamid.text-1","from":"919812345678","type":"text"}]}}]}]}`)
		w := env.post(body)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody(t, w)
		assert.Equal(t, "ignored", resp["status"])
		assert.Equal(t, "not_button_response", resp["reason"])
		assert.Empty(t, env.dispatcher.calls)
	})

	t.Run("Duplicate Delivery Ignored", func(t *testing.T) {
		env := newWebhookTestEnv(t)
		defer env.cleanup()

		env.dedup.Seen("wamid.dup-1")
		env.expectAuditInsert()

		w := env.post(buttonWebhookBody("wamid.dup-1", confirmButton))

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody(t, w)
		assert.Equal(t, "ignored", resp["status"])
		assert.Equal(t, "duplicate", resp["reason"])
		assert.Empty(t, env.dispatcher.calls)
		assert.Empty(t, env.gateway.sent)
	})

	t.Run("Invalid Button Payload", func(t *testing.T) {
		env := newWebhookTestEnv(t)
		defer env.cleanup()

		env.expectAuditInsert()

		w := env.post(buttonWebhookBody("wamid.msg-3", "not-json"))

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody(t, w)
		assert.Equal(t, "error", resp["status"])
		assert.Equal(t, "invalid_payload", resp["reason"])
	})

	t.Run("Unparseable Body", func(t *testing.T) {
		env := newWebhookTestEnv(t)
		defer env.cleanup()

		w := env.post([]byte(`{"entry": broken`))

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody(t, w)
		assert.Equal(t, "invalid_payload", resp["reason"])
	})

	t.Run("Booking Not Found", func(t *testing.T) {
		env := newWebhookTestEnv(t)
		defer env.cleanup()

		env.mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE booking_id`).
			WithArgs("BK-1001").
			WillReturnError(sql.ErrNoRows)
		env.expectAuditInsert()

		w := env.post(buttonWebhookBody("wamid.msg-4", confirmButton))

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody(t, w)
		assert.Equal(t, "booking_not_found", resp["reason"])
	})

	t.Run("Already Processed Booking", func(t *testing.T) {
		env := newWebhookTestEnv(t)
		defer env.cleanup()

		env.mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE booking_id`).
			WithArgs("BK-1001").
			WillReturnRows(sqlmock.NewRows(bookingTestColumns).
				AddRow(bookingRow("BK-1001", models.StatusOwnerConfirmed, "SUCCESS", nil)...))
		env.expectAuditInsert()

		w := env.post(buttonWebhookBody("wamid.msg-5", cancelButton))

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody(t, w)
		assert.Equal(t, "ignored", resp["status"])
		assert.Equal(t, "already_processed", resp["reason"])
		assert.Empty(t, env.dispatcher.calls)
	})

	t.Run("Lost Update Race Reported As Already Processed", func(t *testing.T) {
		env := newWebhookTestEnv(t)
		defer env.cleanup()

		env.mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE booking_id`).
			WithArgs("BK-1001").
			WillReturnRows(sqlmock.NewRows(bookingTestColumns).
				AddRow(bookingRow("BK-1001", models.StatusRequestSentToOwner, "SUCCESS", nil)...))
		env.mock.ExpectExec(`UPDATE bookings`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		env.expectAuditInsert()

		w := env.post(buttonWebhookBody("wamid.msg-6", confirmButton))

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody(t, w)
		assert.Equal(t, "already_processed", resp["reason"])
		assert.Empty(t, env.dispatcher.calls)
	})

	t.Run("Update Failure Returns 500", func(t *testing.T) {
		env := newWebhookTestEnv(t)
		defer env.cleanup()

		env.mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE booking_id`).
			WithArgs("BK-1001").
			WillReturnRows(sqlmock.NewRows(bookingTestColumns).
				AddRow(bookingRow("BK-1001", models.StatusRequestSentToOwner, "SUCCESS", nil)...))
		env.mock.ExpectExec(`UPDATE bookings`).
			WillReturnError(fmt.Errorf("connection reset"))
		env.expectAuditInsert()

		w := env.post(buttonWebhookBody("wamid.msg-7", confirmButton))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeBody(t, w)
		assert.Equal(t, "update_failed", resp["reason"])
	})

	t.Run("Owner Notification Failure Does Not Fail Request", func(t *testing.T) {
		env := newWebhookTestEnv(t)
		defer env.cleanup()

		env.gateway.sendErr = fmt.Errorf("gateway down")

		env.mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE booking_id`).
			WithArgs("BK-1001").
			WillReturnRows(sqlmock.NewRows(bookingTestColumns).
				AddRow(bookingRow("BK-1001", models.StatusRequestSentToOwner, "SUCCESS", nil)...))
		env.mock.ExpectExec(`UPDATE bookings`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		env.expectAuditInsert()

		w := env.post(buttonWebhookBody("wamid.msg-8", confirmButton))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "success", decodeBody(t, w)["status"])
		require.Len(t, env.dispatcher.calls, 1)
	})
}

func TestWebhookDedupAcrossDeliveries(t *testing.T) {
	env := newWebhookTestEnv(t)
	defer env.cleanup()

	confirmButton := `{"bookingId":"BK-1001","action":"CONFIRM"}`

	env.mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE booking_id`).
		WithArgs("BK-1001").
		WillReturnRows(sqlmock.NewRows(bookingTestColumns).
			AddRow(bookingRow("BK-1001", models.StatusRequestSentToOwner, "SUCCESS", nil)...))
	env.mock.ExpectExec(`UPDATE bookings`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.expectAuditInsert()

	first := env.post(buttonWebhookBody("wamid.same-id", confirmButton))
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "success", decodeBody(t, first)["status"])

	env.expectAuditInsert()

	second := env.post(buttonWebhookBody("wamid.same-id", confirmButton))
	assert.Equal(t, http.StatusOK, second.Code)
	resp := decodeBody(t, second)
	assert.Equal(t, "duplicate", resp["reason"])

	// Only one status update and one dispatch happened
	require.Len(t, env.dispatcher.calls, 1)
	assert.True(t, strings.Contains(env.gateway.sent[0].Body, "BK-1001"))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}
