package event

import (
	"errors"
	"time"

	"github.com/tidwall/gjson"
)

// PageObject is the webhook object type carrying page messaging events
const PageObject = "page"

var (
	ErrInvalidBody = errors.New("webhook body is not valid JSON")
	ErrNotPage     = errors.New("webhook object is not a page")
)

// ParseGraphWebhook extracts messaging events from a Graph webhook body.
// Entries without a sender are skipped.
func ParseGraphWebhook(body []byte) ([]*Event, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidBody
	}

	root := gjson.ParseBytes(body)
	if root.Get("object").String() != PageObject {
		return nil, ErrNotPage
	}

	var events []*Event
	root.Get("entry.#.messaging|@flatten").ForEach(func(_, m gjson.Result) bool {
		if ev := graphEvent(m); ev != nil {
			events = append(events, ev)
		}
		return true
	})
	return events, nil
}

func graphEvent(m gjson.Result) *Event {
	sender := m.Get("sender.id").String()
	if sender == "" {
		return nil
	}

	ev := &Event{
		SenderID:    sender,
		RecipientID: m.Get("recipient.id").String(),
	}
	if ts := m.Get("timestamp"); ts.Exists() {
		ev.Timestamp = time.UnixMilli(ts.Int()).UTC()
	}

	if pb := m.Get("postback"); pb.Exists() {
		ev.Postback = &Postback{Title: pb.Get("title").String()}
		payload := pb.Get("payload")
		if payload.IsObject() {
			if obj, ok := payload.Value().(map[string]any); ok {
				ev.Postback.Data = Payload(obj)
			}
		} else {
			ev.Postback.Raw = payload.String()
		}
		return ev
	}

	// Quick replies carry their payload on the message; route them as postbacks
	if qr := m.Get("message.quick_reply.payload"); qr.Exists() {
		ev.Postback = &Postback{Title: m.Get("message.text").String(), Raw: qr.String()}
		return ev
	}

	if msg := m.Get("message"); msg.Exists() {
		if msg.Get("is_echo").Bool() {
			return nil
		}
		ev.Message = &Message{
			ID:   msg.Get("mid").String(),
			Text: msg.Get("text").String(),
		}
		msg.Get("attachments").ForEach(func(_, a gjson.Result) bool {
			ev.Message.Attachments = append(ev.Message.Attachments, Attachment{
				Type: a.Get("type").String(),
				URL:  a.Get("payload.url").String(),
			})
			return true
		})
		return ev
	}

	return nil
}
