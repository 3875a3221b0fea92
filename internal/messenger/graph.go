package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fadedpez/pagebot/internal/logging"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const defaultTimeout = 10 * time.Second

// DeliveryObserver is told about every delivery attempt
type DeliveryObserver interface {
	RecordDelivery(platform string, err error)
}

// GraphOptions configures the Graph Send API client
type GraphOptions struct {
	BaseURL         string
	PageAccessToken string
	RateLimit       float64 // requests per second, <= 0 disables limiting
	Burst           int
	HTTPClient      *http.Client
	Logger          *logging.Logger
	Observer        DeliveryObserver
}

// GraphClient delivers messages through the Graph Send API
type GraphClient struct {
	baseURL  string
	token    string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *logging.Logger
	observer DeliveryObserver
}

var _ Messenger = (*GraphClient)(nil)

// NewGraphClient creates a new Send API client
func NewGraphClient(opts GraphOptions) *GraphClient {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &GraphClient{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		token:    opts.PageAccessToken,
		client:   opts.HTTPClient,
		limiter:  limiter,
		logger:   opts.Logger.With("component", "graph"),
		observer: opts.Observer,
	}
}

// Deliver sends msg to the user, waiting for the rate limiter first
func (c *GraphClient) Deliver(ctx context.Context, userID string, msg Message) error {
	err := c.deliver(ctx, userID, msg)
	if c.observer != nil {
		c.observer.RecordDelivery("graph", err)
	}
	return err
}

func (c *GraphClient) deliver(ctx context.Context, userID string, msg Message) error {
	if userID == "" {
		return fmt.Errorf("recipient is required")
	}
	if msg.IsEmpty() {
		return fmt.Errorf("message is empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(sendRequest{
		Recipient:     recipient{ID: userID},
		Message:       toGraph(msg),
		MessagingType: "RESPONSE",
	})
	if err != nil {
		return fmt.Errorf("error encoding message: %w", err)
	}

	endpoint := c.baseURL + "/me/messages?access_token=" + url.QueryEscape(c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending message to %s: %w", userID, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= http.StatusBadRequest {
		reason := gjson.GetBytes(respBody, "error.message").String()
		if reason == "" {
			reason = resp.Status
		}
		return fmt.Errorf("send API rejected message to %s: %s", userID, reason)
	}

	c.logger.Debug("Delivered message %s to %s", gjson.GetBytes(respBody, "message_id").String(), userID)
	return nil
}

type sendRequest struct {
	Recipient     recipient    `json:"recipient"`
	Message       graphMessage `json:"message"`
	MessagingType string       `json:"messaging_type"`
}

type recipient struct {
	ID string `json:"id"`
}

type graphMessage struct {
	Text       string           `json:"text,omitempty"`
	Attachment *graphAttachment `json:"attachment,omitempty"`
}

type graphAttachment struct {
	Type    string        `json:"type"`
	Payload graphTemplate `json:"payload"`
}

type graphTemplate struct {
	TemplateType string         `json:"template_type"`
	Text         string         `json:"text,omitempty"`
	Buttons      []graphButton  `json:"buttons,omitempty"`
	Elements     []graphElement `json:"elements,omitempty"`
}

type graphElement struct {
	Title    string        `json:"title"`
	Subtitle string        `json:"subtitle,omitempty"`
	ImageURL string        `json:"image_url,omitempty"`
	Buttons  []graphButton `json:"buttons,omitempty"`
}

type graphButton struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Payload string `json:"payload,omitempty"`
	URL     string `json:"url,omitempty"`
}

func toGraph(msg Message) graphMessage {
	if msg.Template == nil {
		return graphMessage{Text: msg.Text}
	}

	tpl := graphTemplate{
		TemplateType: string(msg.Template.Type),
		Text:         msg.Template.Text,
		Buttons:      toGraphButtons(msg.Template.Buttons),
	}
	for _, e := range msg.Template.Elements {
		tpl.Elements = append(tpl.Elements, graphElement{
			Title:    e.Title,
			Subtitle: e.Subtitle,
			ImageURL: e.ImageURL,
			Buttons:  toGraphButtons(e.Buttons),
		})
	}
	return graphMessage{Attachment: &graphAttachment{Type: "template", Payload: tpl}}
}

func toGraphButtons(buttons []Button) []graphButton {
	if len(buttons) == 0 {
		return nil
	}
	out := make([]graphButton, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, graphButton{
			Type:    string(b.Type),
			Title:   b.Title,
			Payload: b.Payload,
			URL:     b.URL,
		})
	}
	return out
}
