package whatsapp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/villastay/booking-backend/pkg/validator"
)

// Client implements Gateway against the WhatsApp Cloud API
type Client struct {
	apiURL        string
	accessToken   string
	phoneNumberID string
	verifyToken   string
	client        *http.Client
	logger        *logrus.Logger
	phones        *validator.PhoneValidator
}

// Config holds configuration for the WhatsApp Cloud API client
type Config struct {
	APIURL        string
	AccessToken   string
	PhoneNumberID string
	VerifyToken   string
}

// NewClient creates a new WhatsApp Cloud API client
func NewClient(config Config, logger *logrus.Logger) *Client {
	return &Client{
		apiURL:        config.APIURL,
		accessToken:   config.AccessToken,
		phoneNumberID: config.PhoneNumberID,
		verifyToken:   config.VerifyToken,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
		phones: validator.NewPhoneValidator(),
	}
}

// textMessageRequest is the Cloud API send-message request body
type textMessageRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

// sendMessageResponse is the Cloud API send-message response body
type sendMessageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *apiError `json:"error"`
}

// apiError is the Graph API error envelope
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// SendTextMessage sends a plain text message to a phone number.
// Without credentials the client runs in development mode and only logs the send.
func (c *Client) SendTextMessage(phone, body string) error {
	formatted, err := c.phones.Validate(phone)
	if err != nil {
		return fmt.Errorf("invalid recipient phone number: %w", err)
	}

	if c.accessToken == "" || c.phoneNumberID == "" {
		c.logger.WithFields(logrus.Fields{
			"to":   formatted,
			"body": body,
		}).Info("WhatsApp dev mode: message not sent")
		return nil
	}

	reqBody := textMessageRequest{
		MessagingProduct: "whatsapp",
		To:               formatted,
		Type:             "text",
		Text:             textBody{Body: body},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal message request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.apiURL, c.phoneNumberID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create message request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read message response: %w", err)
	}

	var sendResp sendMessageResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return fmt.Errorf("failed to parse message response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if sendResp.Error != nil {
			return fmt.Errorf("message sending failed: %s (code %d)", sendResp.Error.Message, sendResp.Error.Code)
		}
		return fmt.Errorf("message sending failed with status %d", resp.StatusCode)
	}

	if len(sendResp.Messages) == 0 {
		return fmt.Errorf("message sending failed: no message id in response")
	}

	c.logger.WithFields(logrus.Fields{
		"to":         formatted,
		"message_id": sendResp.Messages[0].ID,
	}).Debug("WhatsApp message sent")

	return nil
}

// VerifyWebhook validates a webhook handshake request against the configured
// verify token
func (c *Client) VerifyWebhook(mode, token, challenge string) (string, bool) {
	if mode == "subscribe" && token != "" && token == c.verifyToken {
		return challenge, true
	}
	return "", false
}

// GetName returns the name of this gateway implementation
func (c *Client) GetName() string {
	return "WhatsApp Cloud API Gateway"
}
