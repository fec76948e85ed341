package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/containrrr/shoutrrr"
	"github.com/containrrr/shoutrrr/pkg/router"
	"github.com/containrrr/shoutrrr/pkg/types"

	"github.com/fleetwatch/fleetwatch/internal/conf"
	"github.com/fleetwatch/fleetwatch/internal/logger"
)

// Channel sends rendered messages to one destination. External channels get
// the redacted message variant; internal ones see the original text.
type Channel interface {
	Name() string
	External() bool
	Send(ctx context.Context, msg *Message) error
}

// shoutrrrChannel delivers through a shoutrrr service URL (smtp, ntfy,
// discord, and the rest of the shoutrrr catalog).
type shoutrrrChannel struct {
	name     string
	external bool
	sender   *router.ServiceRouter
}

// NewShoutrrrChannel validates the service URL and builds the channel.
func NewShoutrrrChannel(settings conf.ChannelSettings) (Channel, error) {
	sender, err := shoutrrr.CreateSender(settings.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create channel %q: %w", settings.Name, err)
	}
	return &shoutrrrChannel{
		name:     settings.Name,
		external: settings.IsExternal(),
		sender:   sender,
	}, nil
}

func (c *shoutrrrChannel) Name() string   { return c.name }
func (c *shoutrrrChannel) External() bool { return c.external }

func (c *shoutrrrChannel) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := types.Params{"title": msg.Subject}
	if errs := c.sender.Send(msg.TextBody, &params); len(errs) > 0 {
		return fmt.Errorf("failed to send via %s: %w", c.name, errors.Join(errs...))
	}
	return nil
}

// logChannel writes notifications to the application log. Internal, so it
// keeps the unredacted text for on-site operators.
type logChannel struct {
	logger logger.Logger
}

// NewLogChannel creates the built-in log sink.
func NewLogChannel(log logger.Logger) Channel {
	return &logChannel{logger: log}
}

func (c *logChannel) Name() string   { return "log" }
func (c *logChannel) External() bool { return false }

func (c *logChannel) Send(_ context.Context, msg *Message) error {
	c.logger.Info("notification",
		logger.String("subject", msg.Subject),
		logger.String("body", msg.TextBody))
	return nil
}

// BuildChannels constructs all configured channels plus the built-in log
// sink. A channel with an invalid URL fails startup rather than silently
// dropping alerts later.
func BuildChannels(settings conf.NotifySettings, log logger.Logger) ([]Channel, error) {
	channels := []Channel{NewLogChannel(log)}
	for i := range settings.Channels {
		var (
			ch  Channel
			err error
		)
		switch settings.Channels[i].Type {
		case conf.ChannelTypeWebhook:
			ch = NewWebhookChannel(settings.Channels[i])
		default:
			ch, err = NewShoutrrrChannel(settings.Channels[i])
		}
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}
