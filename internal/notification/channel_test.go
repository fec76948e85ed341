package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwatch/fleetwatch/internal/conf"
	"github.com/fleetwatch/fleetwatch/internal/logger"
)

func TestWebhookChannelPostsJSON(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var received webhookPayload
	httpmock.RegisterResponder(http.MethodPost, "https://hooks.example.com/fleet",
		func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "application/json", req.Header.Get("Content-Type"))
			body, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, &received))
			return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
		})

	ch := NewWebhookChannel(conf.ChannelSettings{
		Name: "ops-hook",
		Type: conf.ChannelTypeWebhook,
		URL:  "https://hooks.example.com/fleet",
	})

	err := ch.Send(context.Background(), &Message{
		Subject:  "[CRITICAL] cam-01 - Extended downtime",
		TextBody: "cam-01 down for 45 minutes",
	})
	require.NoError(t, err)
	assert.Equal(t, "[CRITICAL] cam-01 - Extended downtime", received.Subject)
	assert.Equal(t, "cam-01 down for 45 minutes", received.Body)
	assert.True(t, ch.External(), "channels are external unless opted out")
}

func TestWebhookChannelServerError(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "https://hooks.example.com/fleet",
		httpmock.NewStringResponder(http.StatusBadGateway, "upstream down"))

	ch := NewWebhookChannel(conf.ChannelSettings{
		Name: "ops-hook",
		URL:  "https://hooks.example.com/fleet",
	})

	err := ch.Send(context.Background(), &Message{Subject: "s", TextBody: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestBuildChannels(t *testing.T) {
	t.Parallel()

	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)

	internal := false
	channels, err := BuildChannels(conf.NotifySettings{
		Channels: []conf.ChannelSettings{
			{Name: "ops-hook", Type: conf.ChannelTypeWebhook, URL: "https://hooks.example.com/fleet"},
			{Name: "ops-ntfy", URL: "ntfy://ntfy.example.com/fleet"},
			{Name: "wallboard", URL: "ntfy://ntfy.internal/fleet", External: &internal},
		},
	}, log)
	require.NoError(t, err)
	require.Len(t, channels, 4, "log sink plus three configured channels")
	assert.Equal(t, "log", channels[0].Name())
	assert.Equal(t, "ops-hook", channels[1].Name())

	// Redaction applies unless a channel is explicitly marked internal.
	assert.True(t, channels[1].External())
	assert.True(t, channels[2].External())
	assert.False(t, channels[3].External())

	_, err = BuildChannels(conf.NotifySettings{
		Channels: []conf.ChannelSettings{
			{Name: "broken", URL: "not-a-service://"},
		},
	}, log)
	require.Error(t, err, "invalid shoutrrr URLs fail startup")
}
