package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fleetwatch/fleetwatch/internal/conf"
)

// webhookChannel posts the rendered message as JSON to an arbitrary HTTP
// endpoint, for receivers the shoutrrr catalog does not cover.
type webhookChannel struct {
	name     string
	url      string
	external bool
	client   *http.Client
}

// webhookPayload is the JSON body posted to the endpoint.
type webhookPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewWebhookChannel builds a channel that POSTs notifications to the
// configured URL.
func NewWebhookChannel(settings conf.ChannelSettings) Channel {
	return &webhookChannel{
		name:     settings.Name,
		url:      settings.URL,
		external: settings.IsExternal(),
		client:   &http.Client{},
	}
}

func (c *webhookChannel) Name() string   { return c.name }
func (c *webhookChannel) External() bool { return c.external }

func (c *webhookChannel) Send(ctx context.Context, msg *Message) error {
	payload, err := json.Marshal(webhookPayload{
		Subject: msg.Subject,
		Body:    msg.TextBody,
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to webhook %s: %w", c.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook %s answered %d", c.name, resp.StatusCode)
	}
	return nil
}
