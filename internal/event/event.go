package event

import (
	"math"
	"time"

	"github.com/tidwall/gjson"
)

// Kind classifies an inbound event
type Kind int

const (
	KindUnknown Kind = iota
	KindMessage
	KindPostback
)

// String returns the label used in logs and metrics
func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindPostback:
		return "postback"
	default:
		return "unknown"
	}
}

// Event is one inbound messaging event from a chat platform
type Event struct {
	SenderID    string
	RecipientID string
	Timestamp   time.Time
	Message     *Message
	Postback    *Postback
}

// Message is a user-sent message. Text is empty for attachment-only messages.
type Message struct {
	ID          string
	Text        string
	Attachments []Attachment
}

// Attachment is a non-text part of a message
type Attachment struct {
	Type string
	URL  string
}

// Postback is a button press. Raw holds the payload string; Data is set when
// the platform already delivered a structured payload.
type Postback struct {
	Title string
	Raw   string
	Data  Payload
}

// Kind reports how the event should be routed
func (e *Event) Kind() Kind {
	switch {
	case e == nil:
		return KindUnknown
	case e.Postback != nil:
		return KindPostback
	case e.Message != nil:
		return KindMessage
	default:
		return KindUnknown
	}
}

// Text returns the message text, or "" when there is none
func (e *Event) Text() string {
	if e == nil || e.Message == nil {
		return ""
	}
	return e.Message.Text
}

// Payload returns the postback payload: the structured form when present,
// otherwise the parsed raw string. Nil when the event is not a postback.
func (e *Event) Payload() Payload {
	if e == nil || e.Postback == nil {
		return nil
	}
	if e.Postback.Data != nil {
		return e.Postback.Data
	}
	return ParsePayload(e.Postback.Raw)
}

// Payload is a decoded postback payload
type Payload map[string]any

// Type returns the payload's "type" field, or "" when absent or not a string
func (p Payload) Type() string {
	t, _ := p["type"].(string)
	return t
}

// String returns a string field, or "" when absent
func (p Payload) String(key string) string {
	v, _ := p[key].(string)
	return v
}

// Int returns an integral numeric field. Fractional numbers are rejected.
func (p Payload) Int(key string) (int64, bool) {
	switch v := p[key].(type) {
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// ParsePayload decodes a postback payload string. Invalid JSON is treated as
// an opaque token and wrapped as {type: raw}; valid JSON that is not an object
// yields an empty payload with no type.
func ParsePayload(raw string) Payload {
	if raw == "" {
		return nil
	}
	if !gjson.Valid(raw) {
		return Payload{"type": raw}
	}

	result := gjson.Parse(raw)
	if !result.IsObject() {
		return Payload{}
	}

	obj, ok := result.Value().(map[string]any)
	if !ok {
		return Payload{}
	}
	return Payload(obj)
}
