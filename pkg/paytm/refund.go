package paytm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	stagingRefundURL    = "https://securegw-stage.paytm.in/refund/apply"
	productionRefundURL = "https://securegw.paytm.in/refund/apply"
)

// Client implements RefundGateway against the Paytm refund API
type Client struct {
	merchantID  string
	merchantKey string
	environment string
	refundURL   string
	client      *http.Client
	logger      *logrus.Logger
}

// Config holds configuration for the Paytm client
type Config struct {
	MerchantID  string
	MerchantKey string
	Environment string // "staging" or "production"
}

// NewClient creates a new Paytm refund client.
// Without merchant credentials the client runs sandboxed and synthesizes
// mock refund ids instead of calling the gateway.
func NewClient(config Config, logger *logrus.Logger) *Client {
	refundURL := stagingRefundURL
	if config.Environment == "production" {
		refundURL = productionRefundURL
	}

	return &Client{
		merchantID:  config.MerchantID,
		merchantKey: config.MerchantKey,
		environment: config.Environment,
		refundURL:   refundURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// refundRequestBody is the inner body of a refund request
type refundRequestBody struct {
	MID          string `json:"mid"`
	TxnType      string `json:"txnType"`
	OrderID      string `json:"orderId"`
	TxnID        string `json:"txnId"`
	RefID        string `json:"refId"`
	RefundAmount string `json:"refundAmount"`
}

// refundRequestHead carries the request signature
type refundRequestHead struct {
	Signature string `json:"signature"`
}

// refundRequest is the refund API request envelope
type refundRequest struct {
	Body refundRequestBody `json:"body"`
	Head refundRequestHead `json:"head"`
}

// refundResponse is the refund API response envelope
type refundResponse struct {
	Body struct {
		ResultInfo struct {
			ResultStatus string `json:"resultStatus"`
			ResultCode   string `json:"resultCode"`
			ResultMsg    string `json:"resultMsg"`
		} `json:"resultInfo"`
		RefundID string `json:"refundId"`
	} `json:"body"`
}

// InitiateRefund submits a refund for a captured payment and returns the
// refund id. Idempotency is the caller's concern; every call generates a
// fresh refund reference.
func (c *Client) InitiateRefund(orderID, transactionID string, amount float64) (string, error) {
	if c.merchantID == "" || c.merchantKey == "" {
		refundID := fmt.Sprintf("MOCK_REFUND_%d", time.Now().UnixMilli())
		c.logger.WithFields(logrus.Fields{
			"order_id":  orderID,
			"refund_id": refundID,
			"amount":    amount,
		}).Info("Paytm sandbox mode: refund not sent to gateway")
		return refundID, nil
	}

	refID := fmt.Sprintf("REFUND_%s_%d", orderID, time.Now().UnixMilli())

	body := refundRequestBody{
		MID:          c.merchantID,
		TxnType:      "REFUND",
		OrderID:      orderID,
		TxnID:        transactionID,
		RefID:        refID,
		RefundAmount: strconv.FormatFloat(amount, 'f', -1, 64),
	}

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal refund body: %w", err)
	}

	signature, err := GenerateSignature(string(bodyJSON), c.merchantKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign refund request: %w", err)
	}

	envelope := refundRequest{
		Body: body,
		Head: refundRequestHead{Signature: signature},
	}

	jsonData, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to marshal refund request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.refundURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create refund request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send refund request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read refund response: %w", err)
	}

	var refundResp refundResponse
	if err := json.Unmarshal(respBody, &refundResp); err != nil {
		return "", fmt.Errorf("failed to parse refund response: %w", err)
	}

	result := refundResp.Body.ResultInfo

	// PENDING counts as accepted; the gateway settles asynchronously
	if result.ResultStatus != "TXN_SUCCESS" && result.ResultStatus != "PENDING" {
		return "", fmt.Errorf("refund rejected by gateway: %s (%s)", result.ResultMsg, result.ResultCode)
	}

	refundID := refundResp.Body.RefundID
	if refundID == "" {
		refundID = refID
	}

	c.logger.WithFields(logrus.Fields{
		"order_id":  orderID,
		"refund_id": refundID,
		"status":    result.ResultStatus,
	}).Info("Paytm refund initiated")

	return refundID, nil
}

// GetName returns the name of this gateway implementation
func (c *Client) GetName() string {
	return "Paytm Refund Gateway"
}
