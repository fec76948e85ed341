//go:build integration

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwatch/fleetwatch/internal/conf"
	"github.com/fleetwatch/fleetwatch/internal/datastore"
	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
	"github.com/fleetwatch/fleetwatch/internal/datastore/repository"
	"github.com/fleetwatch/fleetwatch/internal/downtime"
	"github.com/fleetwatch/fleetwatch/internal/logger"
	"github.com/fleetwatch/fleetwatch/internal/observability"
	"github.com/fleetwatch/fleetwatch/internal/testutil/containers"
)

// brokerFixture wires a live Mosquitto broker to a subscriber backed by a
// throwaway sqlite ledger.
type brokerFixture struct {
	broker     *containers.MosquittoContainer
	repo       repository.DowntimeRepository
	subscriber *Subscriber
	publisher  mqtt.Client
}

func newBrokerFixture(t *testing.T) *brokerFixture {
	t.Helper()
	ctx := context.Background()

	broker, err := containers.NewMosquittoContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = broker.Terminate(ctx) })

	db, err := datastore.Open(conf.DatabaseSettings{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "ingest.db"),
	})
	require.NoError(t, err)

	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	repo := repository.NewDowntimeRepository(db)
	tracker := downtime.NewTracker(repo, log)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	subscriber := NewSubscriber(conf.MQTTSettings{
		Enabled:  true,
		Broker:   broker.BrokerURL(),
		Topic:    "fleetwatch/status/+",
		ClientID: "ingest-integration",
	}, tracker, metrics, log)
	require.NoError(t, subscriber.Start(ctx))
	t.Cleanup(subscriber.Stop)

	opts := mqtt.NewClientOptions().
		AddBroker(broker.BrokerURL()).
		SetClientID("ingest-integration-pub")
	publisher := mqtt.NewClient(opts)
	token := publisher.Connect()
	require.True(t, token.WaitTimeout(15*time.Second))
	require.NoError(t, token.Error())
	t.Cleanup(func() { publisher.Disconnect(250) })

	return &brokerFixture{
		broker:     broker,
		repo:       repo,
		subscriber: subscriber,
		publisher:  publisher,
	}
}

func (f *brokerFixture) publish(t *testing.T, device string, payload any) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	token := f.publisher.Publish("fleetwatch/status/"+device, 1, false, body)
	require.True(t, token.WaitTimeout(10*time.Second))
	require.NoError(t, token.Error())
}

func TestSubscriberRecordsOutageLifecycle(t *testing.T) {
	f := newBrokerFixture(t)
	ctx := context.Background()

	offlineAt := time.Now().UTC().Add(-30 * time.Minute).Truncate(time.Second)
	f.publish(t, "cam-01", StatusEvent{
		Device:         "cam-01",
		PreviousStatus: entities.StatusOnline,
		NewStatus:      entities.StatusOffline,
		Timestamp:      offlineAt,
	})

	require.Eventually(t, func() bool {
		_, err := f.repo.GetOpenInterval(ctx, "cam-01")
		return err == nil
	}, 15*time.Second, 100*time.Millisecond, "offline event should open an interval")

	onlineAt := offlineAt.Add(20 * time.Minute)
	f.publish(t, "cam-01", StatusEvent{
		Device:         "cam-01",
		PreviousStatus: entities.StatusOffline,
		NewStatus:      entities.StatusOnline,
		Timestamp:      onlineAt,
	})

	require.Eventually(t, func() bool {
		_, err := f.repo.GetOpenInterval(ctx, "cam-01")
		return errors.Is(err, repository.ErrNoOpenInterval)
	}, 15*time.Second, 100*time.Millisecond, "online event should close the interval")

	closed, err := f.repo.LastClosedSince(ctx, "cam-01", offlineAt.Add(-time.Minute))
	require.NoError(t, err)
	assert.InDelta(t, 20, closed.DurationMinutes, 0.01)
	assert.Equal(t, entities.RecoveryAuto, closed.RecoveryMethod)
}

func TestSubscriberSurvivesMalformedPayload(t *testing.T) {
	f := newBrokerFixture(t)
	ctx := context.Background()

	token := f.publisher.Publish("fleetwatch/status/cam-02", 1, false, []byte("{not json"))
	require.True(t, token.WaitTimeout(10*time.Second))
	require.NoError(t, token.Error())

	// A valid event after the garbage proves the handler is still alive.
	f.publish(t, "cam-02", StatusEvent{
		Device:         "cam-02",
		PreviousStatus: entities.StatusOnline,
		NewStatus:      entities.StatusOffline,
		Timestamp:      time.Now().UTC().Truncate(time.Second),
	})

	require.Eventually(t, func() bool {
		_, err := f.repo.GetOpenInterval(ctx, "cam-02")
		return err == nil
	}, 15*time.Second, 100*time.Millisecond)
}
