package whatsapp

// WebhookPayload mirrors the inbound WhatsApp Cloud API webhook envelope.
// Only the fields needed to extract button presses are declared.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one account-level entry in a webhook delivery
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one field change inside an entry
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue carries the messages for a change
type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Messages         []Message `json:"messages"`
}

// Message is one inbound message
type Message struct {
	ID          string       `json:"id"`
	From        string       `json:"from"`
	Type        string       `json:"type"`
	Button      *Button      `json:"button,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
}

// Button is the legacy template-button reply shape
type Button struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// Interactive is the interactive-message reply shape
type Interactive struct {
	Type        string       `json:"type"`
	ButtonReply *ButtonReply `json:"button_reply,omitempty"`
}

// ButtonReply carries the pressed button's id and label
type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ButtonEvent is a normalized button press extracted from a webhook payload
type ButtonEvent struct {
	MessageID string
	From      string
	ButtonID  string
	Title     string
}

// ExtractButtonEvent pulls a button press out of a webhook payload. The payload
// shape is polymorphic: interactive replies and legacy template-button replies
// both count. Returns nil when the delivery carries no button press, which is
// a normal occurrence (status updates, plain texts) and not an error.
func ExtractButtonEvent(payload *WebhookPayload) *ButtonEvent {
	if payload == nil {
		return nil
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Interactive != nil && msg.Interactive.ButtonReply != nil {
					return &ButtonEvent{
						MessageID: msg.ID,
						From:      msg.From,
						ButtonID:  msg.Interactive.ButtonReply.ID,
						Title:     msg.Interactive.ButtonReply.Title,
					}
				}
				if msg.Button != nil {
					return &ButtonEvent{
						MessageID: msg.ID,
						From:      msg.From,
						ButtonID:  msg.Button.Payload,
						Title:     msg.Button.Text,
					}
				}
			}
		}
	}

	return nil
}
