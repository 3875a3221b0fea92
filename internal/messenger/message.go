package messenger

import (
	"context"
	"encoding/json"
)

// Messenger delivers outbound messages to a platform user
type Messenger interface {
	Deliver(ctx context.Context, userID string, msg Message) error
}

// ButtonType is the kind of action a button performs
type ButtonType string

const (
	ButtonPostback ButtonType = "postback"
	ButtonURL      ButtonType = "web_url"
)

// TemplateType selects the template layout
type TemplateType string

const (
	TemplateButton  TemplateType = "button"
	TemplateGeneric TemplateType = "generic"
)

// Button is a tappable action attached to a template
type Button struct {
	Type    ButtonType
	Title   string
	Payload string
	URL     string
}

// Element is one card of a generic template
type Element struct {
	Title    string
	Subtitle string
	ImageURL string
	Buttons  []Button
}

// Template is a structured message
type Template struct {
	Type     TemplateType
	Text     string
	Buttons  []Button
	Elements []Element
}

// Message is plain text or a template
type Message struct {
	Text     string
	Template *Template
}

// IsEmpty reports whether there is nothing to deliver
func (m Message) IsEmpty() bool {
	return m.Text == "" && m.Template == nil
}

// Text creates a plain text message
func Text(text string) Message {
	return Message{Text: text}
}

// ButtonTemplate creates a text prompt with buttons
func ButtonTemplate(text string, buttons ...Button) Message {
	return Message{Template: &Template{Type: TemplateButton, Text: text, Buttons: buttons}}
}

// GenericTemplate creates a card carousel
func GenericTemplate(elements ...Element) Message {
	return Message{Template: &Template{Type: TemplateGeneric, Elements: elements}}
}

// PostbackButton creates a button that sends payload back as a postback
func PostbackButton(title, payload string) Button {
	return Button{Type: ButtonPostback, Title: title, Payload: payload}
}

// PayloadButton creates a postback button whose payload is the JSON object data
func PayloadButton(title string, data map[string]any) Button {
	payload, _ := json.Marshal(data)
	return PostbackButton(title, string(payload))
}

// URLButton creates a button that opens url
func URLButton(title, url string) Button {
	return Button{Type: ButtonURL, Title: title, URL: url}
}
