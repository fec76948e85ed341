// Package ingest feeds device status transitions from MQTT into the
// downtime tracker.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/fleetwatch/fleetwatch/internal/conf"
	"github.com/fleetwatch/fleetwatch/internal/downtime"
	"github.com/fleetwatch/fleetwatch/internal/logger"
	"github.com/fleetwatch/fleetwatch/internal/observability"
)

const (
	connectTimeout = 10 * time.Second
	handleTimeout  = 10 * time.Second
	subscribeQoS   = 1
)

// StatusEvent is the JSON payload monitors publish on the status topic.
type StatusEvent struct {
	Device         string    `json:"device"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Timestamp      time.Time `json:"timestamp"`
}

// Subscriber consumes status events from an MQTT broker. Reconnects are
// handled by the paho client; subscriptions are re-established on reconnect.
type Subscriber struct {
	client   mqtt.Client
	tracker  *downtime.Tracker
	metrics  *observability.Metrics
	logger   logger.Logger
	settings conf.MQTTSettings
}

// NewSubscriber builds the subscriber; Start connects.
func NewSubscriber(settings conf.MQTTSettings, tracker *downtime.Tracker, metrics *observability.Metrics, log logger.Logger) *Subscriber {
	s := &Subscriber{
		tracker:  tracker,
		metrics:  metrics,
		logger:   log,
		settings: settings,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(settings.Broker).
		SetClientID(settings.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(s.onConnectionLost)
	if settings.Username != "" {
		opts.SetUsername(settings.Username)
		opts.SetPassword(settings.Password)
	}
	s.client = mqtt.NewClient(opts)
	return s
}

// Start connects to the broker. The subscription itself happens in the
// connect handler so it survives reconnects.
func (s *Subscriber) Start(ctx context.Context) error {
	token := s.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(connectTimeout):
		return fmt.Errorf("failed to connect to mqtt broker %s: timeout", s.settings.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to mqtt broker %s: %w", s.settings.Broker, err)
	}
	return nil
}

// Stop disconnects, allowing in-flight handlers a short drain.
func (s *Subscriber) Stop() {
	s.client.Disconnect(uint(time.Second.Milliseconds()))
}

func (s *Subscriber) onConnect(client mqtt.Client) {
	token := client.Subscribe(s.settings.Topic, subscribeQoS, s.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		s.logger.Error("failed to subscribe to status topic",
			logger.String("topic", s.settings.Topic),
			logger.Error(err))
		return
	}
	s.logger.Info("subscribed to status topic",
		logger.String("broker", s.settings.Broker),
		logger.String("topic", s.settings.Topic))
}

func (s *Subscriber) onConnectionLost(_ mqtt.Client, err error) {
	s.logger.Warn("mqtt connection lost, reconnecting", logger.Error(err))
}

// handleMessage decodes one status event and applies it to the tracker.
// Malformed payloads are logged and dropped; stale events are expected from
// retained messages and logged at debug.
func (s *Subscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	event, err := decodeStatusEvent(msg.Payload())
	if err != nil {
		s.metrics.StatusEvents.WithLabelValues("malformed").Inc()
		s.logger.Warn("dropping malformed status event",
			logger.String("topic", msg.Topic()),
			logger.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	err = s.tracker.RecordStatusChange(ctx, event.Device, event.PreviousStatus, event.NewStatus, event.Timestamp)
	switch {
	case errors.Is(err, downtime.ErrStaleEvent):
		s.metrics.StatusEvents.WithLabelValues("stale").Inc()
		s.logger.Debug("dropping stale status event",
			logger.String("device", event.Device),
			logger.Time("timestamp", event.Timestamp))
	case err != nil:
		s.metrics.StatusEvents.WithLabelValues("error").Inc()
		s.logger.Error("failed to record status change",
			logger.String("device", event.Device),
			logger.Error(err))
	default:
		s.metrics.StatusEvents.WithLabelValues("ok").Inc()
	}
}

func decodeStatusEvent(payload []byte) (*StatusEvent, error) {
	var event StatusEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("invalid status payload: %w", err)
	}
	if event.Device == "" {
		return nil, errors.New("status event missing device")
	}
	if event.NewStatus == "" {
		return nil, errors.New("status event missing new_status")
	}
	if event.Timestamp.IsZero() {
		return nil, errors.New("status event missing timestamp")
	}
	return &event, nil
}
