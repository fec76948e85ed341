// Command fleetwatch runs the fleet monitoring daemon: MQTT status ingest,
// the downtime tracker, the alert rule engine, the notification dispatcher,
// and the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/fleetwatch/fleetwatch/internal/alerting"
	"github.com/fleetwatch/fleetwatch/internal/api"
	"github.com/fleetwatch/fleetwatch/internal/conf"
	"github.com/fleetwatch/fleetwatch/internal/datastore"
	"github.com/fleetwatch/fleetwatch/internal/datastore/repository"
	"github.com/fleetwatch/fleetwatch/internal/downtime"
	"github.com/fleetwatch/fleetwatch/internal/ingest"
	"github.com/fleetwatch/fleetwatch/internal/logger"
	"github.com/fleetwatch/fleetwatch/internal/maintenance"
	"github.com/fleetwatch/fleetwatch/internal/notification"
	"github.com/fleetwatch/fleetwatch/internal/observability"
)

// version is set at build time via -ldflags.
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "fleetwatch",
		Short:         "Fleet device monitoring and alerting daemon",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	settings, err := conf.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.NewSlogLogger(os.Stdout, logger.ParseLevel(settings.Log.Level), nil)

	if enabled, err := observability.InitSentry(settings.Sentry, version); err != nil {
		log.Warn("sentry disabled", logger.Error(err))
	} else if enabled {
		defer observability.FlushSentry()
	}

	db, err := datastore.Open(settings.Database)
	if err != nil {
		return err
	}

	alerts := repository.NewAlertRepository(db)
	devices := repository.NewDeviceRepository(db)
	downtimes := repository.NewDowntimeRepository(db)
	windows := repository.NewMaintenanceRepository(db)

	if err := alerting.SeedDefaultRules(ctx, alerts, log); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(registry)
	health := observability.NewHealth()

	tracker := downtime.NewTracker(downtimes, log)

	var source repository.AvailabilitySource
	switch settings.Engine.AvailabilitySource {
	case conf.AvailabilitySourceChecks:
		source = repository.NewCheckAvailabilitySource(db)
	default:
		source = repository.NewIntervalAvailabilitySource(downtimes)
	}
	calculator := downtime.NewCalculator(source)

	suppressions := maintenance.NewRegistry(windows, log)

	channels, err := notification.BuildChannels(settings.Notify, log)
	if err != nil {
		return err
	}
	dispatcher := notification.NewDispatcher(alerts, channels, settings.Notify, metrics, log)
	dispatcher.Start()

	engine := alerting.NewEngine(alerts, devices, downtimes, calculator,
		suppressions, dispatcher, metrics, health, settings.Engine, log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil {
		dispatcher.Stop(settings.Notify.ShutdownGrace.Std())
		return err
	}

	var subscriber *ingest.Subscriber
	if settings.MQTT.Enabled {
		subscriber = ingest.NewSubscriber(settings.MQTT, tracker, metrics, log)
		if err := subscriber.Start(ctx); err != nil {
			engine.Stop()
			dispatcher.Stop(settings.Notify.ShutdownGrace.Std())
			return err
		}
	}

	controller := api.New(api.Options{
		Alerts:          alerts,
		Devices:         devices,
		Downtime:        downtimes,
		Maintenance:     windows,
		Engine:          engine,
		Calculator:      calculator,
		Registry:        suppressions,
		Health:          health,
		Gatherer:        registry,
		Settings:        settings.API,
		DefaultSuppress: settings.Engine.DefaultSuppress,
		Logger:          log,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := controller.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Info("fleetwatch started", logger.String("version", version))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		log.Error("api server failed", logger.Error(err))
	}

	// Stop producers before consumers: the engine first so no new
	// notifications enqueue, then drain the dispatcher, then the ingest
	// path and the API.
	engine.Stop()
	dispatcher.Stop(settings.Notify.ShutdownGrace.Std())
	if subscriber != nil {
		subscriber.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := controller.Shutdown(shutdownCtx); err != nil {
		log.Warn("api shutdown incomplete", logger.Error(err))
	}

	log.Info("fleetwatch stopped")
	return nil
}
