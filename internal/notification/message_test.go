package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
)

func TestRenderSubjects(t *testing.T) {
	t.Parallel()

	rule := testRule()
	inst := testInstance("down")

	tests := []struct {
		kind    string
		status  string
		subject string
	}{
		{entities.NotificationKindAlert, entities.AlertTriggered, "[CRITICAL] cam-01 - Extended downtime"},
		{entities.NotificationKindEscalation, entities.AlertTriggered, "ESCALATED: [CRITICAL] cam-01 - Extended downtime"},
		{entities.NotificationKindRecovery, entities.AlertAutoResolved, "RESOLVED: [CRITICAL] cam-01 - Extended downtime"},
	}

	for _, tt := range tests {
		inst.Status = tt.status
		msg, err := Render(rule, inst, tt.kind, false)
		require.NoError(t, err)
		assert.Equal(t, tt.subject, msg.Subject)
	}
}

func TestRenderBodies(t *testing.T) {
	t.Parallel()

	msg, err := Render(testRule(), testInstance("cam-01 down for 45.0 minutes"), entities.NotificationKindAlert, false)
	require.NoError(t, err)

	assert.Contains(t, msg.HTMLBody, "<table>")
	assert.Contains(t, msg.HTMLBody, "cam-01 down for 45.0 minutes")
	assert.Contains(t, msg.HTMLBody, "45.00 (threshold &gt;= 30.00)")

	// Plain text variant carries the same facts without markup.
	assert.NotContains(t, msg.TextBody, "<")
	assert.Contains(t, msg.TextBody, "cam-01 down for 45.0 minutes")
	assert.Contains(t, msg.TextBody, "Severity")
}

func TestRenderRedaction(t *testing.T) {
	t.Parallel()

	inst := testInstance("stream at 192.168.1.50:8554 lost")

	redacted, err := Render(testRule(), inst, entities.NotificationKindAlert, true)
	require.NoError(t, err)
	assert.NotContains(t, redacted.TextBody, "192.168.1.50")
	assert.Contains(t, redacted.TextBody, "[IP REDACTED]")

	plain, err := Render(testRule(), inst, entities.NotificationKindAlert, false)
	require.NoError(t, err)
	assert.Contains(t, plain.TextBody, "192.168.1.50:8554")
}

func TestRenderRedactsAddressBearingFields(t *testing.T) {
	t.Parallel()

	// Field devices are often registered under their address; the body's
	// Device and Rule rows must come out scrubbed too, not just the summary.
	rule := testRule()
	rule.Name = "Stream loss on 172.16.4.9"
	inst := testInstance("stream lost")
	inst.DeviceName = "cam-10.20.30.40:554"

	msg, err := Render(rule, inst, entities.NotificationKindAlert, true)
	require.NoError(t, err)

	assert.NotContains(t, msg.Subject, "10.20.30.40")
	assert.NotContains(t, msg.HTMLBody, "10.20.30.40")
	assert.NotContains(t, msg.HTMLBody, "172.16.4.9")
	assert.NotContains(t, msg.TextBody, "10.20.30.40")
	assert.NotContains(t, msg.TextBody, "172.16.4.9")
	assert.Contains(t, msg.TextBody, "[IP REDACTED]")
}
