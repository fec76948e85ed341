package observability

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/fleetwatch/fleetwatch/internal/conf"
)

const sentryFlushTimeout = 2 * time.Second

// InitSentry starts sentry telemetry when a DSN is configured. With an empty
// DSN it does nothing and CaptureError becomes a no-op.
func InitSentry(settings conf.SentrySettings, release string) (enabled bool, err error) {
	if settings.DSN == "" {
		return false, nil
	}
	err = sentry.Init(sentry.ClientOptions{
		Dsn:         settings.DSN,
		Environment: settings.Environment,
		Release:     release,
	})
	if err != nil {
		return false, fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return true, nil
}

// CaptureError reports an error tagged with the component it came from.
// Safe to call whether or not sentry was initialized.
func CaptureError(err error, component string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		sentry.CaptureException(err)
	})
}

// FlushSentry drains pending events during shutdown.
func FlushSentry() {
	sentry.Flush(sentryFlushTimeout)
}
