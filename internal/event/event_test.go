package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type EventTestSuite struct {
	suite.Suite
}

func TestEventSuite(t *testing.T) {
	suite.Run(t, new(EventTestSuite))
}

func (s *EventTestSuite) TestParsePayload() {
	testCases := []struct {
		name     string
		raw      string
		expected Payload
		typ      string
	}{
		{
			name:     "json object",
			raw:      `{"type":"dice_roll","bet":50}`,
			expected: Payload{"type": "dice_roll", "bet": float64(50)},
			typ:      "dice_roll",
		},
		{
			name:     "opaque token",
			raw:      "not json",
			expected: Payload{"type": "not json"},
			typ:      "not json",
		},
		{
			name:     "json array has no type",
			raw:      `[1,2,3]`,
			expected: Payload{},
		},
		{
			name:     "json string has no type",
			raw:      `"dice_roll"`,
			expected: Payload{},
		},
		{
			name: "empty",
			raw:  "",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			p := ParsePayload(tc.raw)
			s.Equal(tc.expected, p)
			s.Equal(tc.typ, p.Type())
		})
	}
}

func (s *EventTestSuite) TestPayloadAccessors() {
	p := ParsePayload(`{"type":"copy_uid","uid":"123","bet":25.0}`)

	bet, ok := p.Int("bet")
	s.True(ok)
	s.Equal(int64(25), bet)
	s.Equal("123", p.String("uid"))

	_, ok = p.Int("missing")
	s.False(ok)
}

func (s *EventTestSuite) TestPayloadIntRejectsFractions() {
	p := ParsePayload(`{"bet":100.9,"small":0.5,"name":"x"}`)

	_, ok := p.Int("bet")
	s.False(ok)
	_, ok = p.Int("small")
	s.False(ok)
	_, ok = p.Int("name")
	s.False(ok)
}

func (s *EventTestSuite) TestKindAndText() {
	msg := &Event{SenderID: "u", Message: &Message{Text: "/ping"}}
	pb := &Event{SenderID: "u", Postback: &Postback{Raw: "dice_menu"}}
	var none *Event

	s.Equal(KindMessage, msg.Kind())
	s.Equal("/ping", msg.Text())
	s.Nil(msg.Payload())
	s.Equal(KindPostback, pb.Kind())
	s.Equal("dice_menu", pb.Payload().Type())
	s.Equal(KindUnknown, none.Kind())
	s.Equal("", none.Text())
}

func (s *EventTestSuite) TestStructuredPayloadPassesThrough() {
	ev := &Event{Postback: &Postback{Raw: "ignored", Data: Payload{"type": "slot_spin"}}}

	s.Equal("slot_spin", ev.Payload().Type())
}

func (s *EventTestSuite) TestParseGraphWebhook() {
	// Setup
	body := []byte(`{
		"object": "page",
		"entry": [
			{"messaging": [
				{"sender": {"id": "111"}, "recipient": {"id": "page"}, "timestamp": 1700000000000,
				 "message": {"mid": "m1", "text": "/balance"}},
				{"sender": {"id": "222"}, "postback": {"title": "Roll", "payload": "{\"type\":\"dice_roll\"}"}}
			]},
			{"messaging": [
				{"sender": {"id": "333"}, "message": {"mid": "m2", "attachments": [{"type": "image", "payload": {"url": "http://img"}}]}},
				{"sender": {"id": "page"}, "message": {"is_echo": true, "text": "echo"}},
				{"recipient": {"id": "page"}, "message": {"text": "no sender"}},
				{"sender": {"id": "444"}, "message": {"text": "Dice", "quick_reply": {"payload": "dice_menu"}}}
			]}
		]
	}`)

	// Execute
	events, err := ParseGraphWebhook(body)

	// Assert
	s.Require().NoError(err)
	s.Require().Len(events, 4)
	s.Equal("/balance", events[0].Text())
	s.Equal(time.UnixMilli(1700000000000).UTC(), events[0].Timestamp)
	s.Equal("dice_roll", events[1].Payload().Type())
	s.Equal(KindMessage, events[2].Kind())
	s.Equal("", events[2].Text())
	s.Equal("http://img", events[2].Message.Attachments[0].URL)
	s.Equal(KindPostback, events[3].Kind())
	s.Equal("dice_menu", events[3].Payload().Type())
}

func (s *EventTestSuite) TestParseGraphWebhookRejects() {
	_, err := ParseGraphWebhook([]byte(`{"object":"user","entry":[]}`))
	s.ErrorIs(err, ErrNotPage)

	_, err = ParseGraphWebhook([]byte(`{`))
	s.ErrorIs(err, ErrInvalidBody)
}
