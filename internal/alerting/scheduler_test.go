package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fleetwatch/fleetwatch/internal/conf"
)

func TestEngineStartStopNoLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newEngineFixture(t, slaRule())
	require.NoError(t, f.engine.Start(context.Background()))
	f.engine.Stop()
}

func TestEngineStopIsIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	require.NoError(t, f.engine.Start(context.Background()))
	f.engine.Stop()
	f.engine.Stop()
}

func TestEngineTicksEvaluate(t *testing.T) {
	f := newEngineFixture(t, slaRule())
	f.engine.settings.TickInterval = conf.Duration(10 * time.Millisecond)
	f.calculator.uptime["cam-01"] = 90

	require.NoError(t, f.engine.Start(context.Background()))
	defer f.engine.Stop()

	require.Eventually(t, func() bool {
		return f.alerts.instanceCount() == 1
	}, time.Second, 5*time.Millisecond)
}
