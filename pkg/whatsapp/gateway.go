package whatsapp

// Gateway defines the interface for the outbound messaging side of the
// WhatsApp integration
type Gateway interface {
	// SendTextMessage sends a plain text message to a phone number.
	// Sends are best-effort from the caller's perspective; an error only
	// means this delivery attempt failed.
	SendTextMessage(phone, body string) error

	// VerifyWebhook validates a webhook handshake request.
	// Returns the challenge to echo back and whether verification passed.
	VerifyWebhook(mode, token, challenge string) (string, bool)

	// GetName returns the name of this gateway implementation
	GetName() string
}
