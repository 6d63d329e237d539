package line

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Event and message type discriminators used by the webhook envelope.
const (
	EventTypeMessage  = "message"
	EventTypePostback = "postback"
	MessageTypeText   = "text"
)

// ErrInvalidEnvelope marks a webhook body that cannot be decoded at all.
var ErrInvalidEnvelope = errors.New("line: invalid webhook envelope")

// Webhook is one decoded webhook delivery. Events preserves every element
// that decoded cleanly, including types the bridge does not act on.
type Webhook struct {
	Destination string
	Events      []Event
}

// Event is one entry of the webhook events array. Unknown event types decode
// into Type with the remaining fields zero.
type Event struct {
	Type       string    `json:"type"`
	ReplyToken string    `json:"replyToken,omitempty"`
	Timestamp  int64     `json:"timestamp,omitempty"`
	Source     Source    `json:"source,omitempty"`
	Message    *Message  `json:"message,omitempty"`
	Postback   *Postback `json:"postback,omitempty"`
}

// Source identifies where an event originated.
type Source struct {
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
}

// Message is the message payload of a message event.
type Message struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Postback is the payload of a postback event (button taps and the like).
type Postback struct {
	Data string `json:"data"`
}

// DecodeWebhook parses a raw webhook body.
//
// The envelope must be valid JSON with an events array; anything else fails
// with ErrInvalidEnvelope. Individual elements are decoded independently so
// that one malformed event cannot drop the rest of the batch: bad elements
// are skipped with a warning and their siblings survive in order.
func DecodeWebhook(raw []byte) (Webhook, error) {
	var envelope struct {
		Destination string            `json:"destination"`
		Events      []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Webhook{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if envelope.Events == nil {
		return Webhook{}, fmt.Errorf("%w: missing events array", ErrInvalidEnvelope)
	}

	hook := Webhook{
		Destination: envelope.Destination,
		Events:      make([]Event, 0, len(envelope.Events)),
	}
	for i, rawEvent := range envelope.Events {
		var event Event
		if err := json.Unmarshal(rawEvent, &event); err != nil {
			slog.Default().With("component", "line.decode").Warn("Skipping malformed webhook event", "index", i, "error", err)
			continue
		}
		hook.Events = append(hook.Events, event)
	}

	return hook, nil
}

// PromptText returns the text this event should relay to the gateway and
// whether it should be relayed at all. Text messages relay their body,
// postbacks relay their payload data. Everything else decodes for
// completeness but produces no reply, and an event without a reply token
// cannot be answered.
func (e Event) PromptText() (string, bool) {
	if strings.TrimSpace(e.ReplyToken) == "" {
		return "", false
	}

	switch e.Type {
	case EventTypeMessage:
		if e.Message != nil && e.Message.Type == MessageTypeText && strings.TrimSpace(e.Message.Text) != "" {
			return e.Message.Text, true
		}
	case EventTypePostback:
		if e.Postback != nil && strings.TrimSpace(e.Postback.Data) != "" {
			return e.Postback.Data, true
		}
	}

	return "", false
}

// Replyable returns the events that should produce a reply, in arrival order.
func (w Webhook) Replyable() []Event {
	out := make([]Event, 0, len(w.Events))
	for _, event := range w.Events {
		if _, ok := event.PromptText(); ok {
			out = append(out, event)
		}
	}

	return out
}
