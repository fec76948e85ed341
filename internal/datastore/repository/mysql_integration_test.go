//go:build integration

package repository_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/conf"
	"github.com/fleetwatch/fleetwatch/internal/datastore"
	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
	"github.com/fleetwatch/fleetwatch/internal/datastore/repository"
	"github.com/fleetwatch/fleetwatch/internal/testutil/containers"
)

var (
	testContainer *containers.MySQLContainer
	testDB        *gorm.DB
)

// allTables lists every migrated table for truncation between tests.
var allTables = []string{
	"alert_rules",
	"alert_instances",
	"notification_attempts",
	"devices",
	"device_groups",
	"device_group_members",
	"downtime_intervals",
	"maintenance_windows",
	"health_checks",
}

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testContainer, err = containers.NewMySQLContainer(ctx)
	if err != nil {
		log.Fatalf("failed to start mysql container: %v", err)
	}

	testDB, err = datastore.Open(conf.DatabaseSettings{Driver: "mysql", DSN: testContainer.DSN()})
	if err != nil {
		_ = testContainer.Terminate(ctx)
		log.Fatalf("failed to open database: %v", err)
	}

	code := m.Run()
	_ = testContainer.Terminate(ctx)
	os.Exit(code)
}

func resetTables(t *testing.T) {
	t.Helper()
	require.NoError(t, testContainer.Reset(context.Background(), allTables))
}

func seedRule(t *testing.T, repo repository.AlertRepository, name string) *entities.AlertRule {
	t.Helper()
	rule := &entities.AlertRule{
		Name:           name,
		RuleType:       entities.RuleTypeExtendedDowntime,
		Operator:       entities.OperatorGreaterOrEqual,
		ThresholdValue: 30,
		AppliesTo:      entities.ScopeAll,
		Severity:       entities.SeverityCritical,
		Enabled:        true,
	}
	require.NoError(t, repo.CreateRule(context.Background(), rule))
	return rule
}

func TestMySQLAlertRuleCRUD(t *testing.T) {
	resetTables(t)
	repo := repository.NewAlertRepository(testDB)
	ctx := context.Background()

	rule := seedRule(t, repo, "Extended downtime")
	require.NotZero(t, rule.ID)

	got, err := repo.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "Extended downtime", got.Name)
	assert.True(t, got.Enabled)

	count, err := repo.CountRulesByName(ctx, "Extended downtime")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repo.ToggleRule(ctx, rule.ID, false))
	enabled, err := repo.GetEnabledRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	require.NoError(t, repo.DeleteRule(ctx, rule.ID))
	_, err = repo.GetRule(ctx, rule.ID)
	assert.ErrorIs(t, err, repository.ErrAlertRuleNotFound)
	assert.ErrorIs(t, repo.DeleteRule(ctx, rule.ID), repository.ErrAlertRuleNotFound)
}

func TestMySQLAlertInstanceLedger(t *testing.T) {
	resetTables(t)
	repo := repository.NewAlertRepository(testDB)
	ctx := context.Background()

	rule := seedRule(t, repo, "Extended downtime")
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	for i, device := range []string{"cam-01", "cam-02", "cam-03"} {
		inst := &entities.AlertInstance{
			RuleID:      rule.ID,
			DeviceName:  device,
			Severity:    entities.SeverityCritical,
			TriggeredAt: base.Add(time.Duration(i) * time.Minute),
			Status:      entities.AlertTriggered,
		}
		require.NoError(t, repo.CreateInstance(ctx, inst))
	}

	items, total, err := repo.ListInstances(ctx, repository.AlertInstanceFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 2)
	assert.Equal(t, "cam-03", items[0].DeviceName, "newest first")

	items, _, err = repo.ListInstances(ctx, repository.AlertInstanceFilter{DeviceName: "cam-02"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	instanceID := items[0].ID

	resolvedAt := base.Add(30 * time.Minute)
	require.NoError(t, repo.UpdateInstanceFields(ctx, instanceID, map[string]any{
		"status":      entities.AlertResolved,
		"resolved_at": resolvedAt,
		"resolved_by": "ops",
	}))

	active, err := repo.ActiveInstances(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	last, err := repo.LastTriggeredAt(ctx, rule.ID, "cam-03")
	require.NoError(t, err)
	assert.Equal(t, base.Add(2*time.Minute), last.UTC())

	last, err = repo.LastTriggeredAt(ctx, rule.ID, "cam-99")
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	stats, err := repo.Statistics(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(3), stats.BySeverity[entities.SeverityCritical])
	assert.Equal(t, int64(1), stats.ByStatus[entities.AlertResolved])
	assert.InDelta(t, 29, stats.MeanResolutionMinutes, 1.5)
}

func TestMySQLNotificationAttempts(t *testing.T) {
	resetTables(t)
	repo := repository.NewAlertRepository(testDB)
	ctx := context.Background()

	rule := seedRule(t, repo, "Extended downtime")
	inst := &entities.AlertInstance{
		RuleID:      rule.ID,
		DeviceName:  "cam-01",
		Severity:    entities.SeverityCritical,
		TriggeredAt: time.Now().UTC().Truncate(time.Second),
		Status:      entities.AlertTriggered,
	}
	require.NoError(t, repo.CreateInstance(ctx, inst))

	for i, success := range []bool{false, true} {
		require.NoError(t, repo.RecordAttempt(ctx, &entities.NotificationAttempt{
			InstanceID:    inst.ID,
			CorrelationID: "corr-1",
			Channel:       "ops-mail",
			Kind:          entities.NotificationKindAlert,
			Success:       success,
			AttemptedAt:   time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	attempts, err := repo.ListAttempts(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.False(t, attempts[0].Success)
	assert.True(t, attempts[1].Success)
	assert.Equal(t, attempts[0].CorrelationID, attempts[1].CorrelationID)
}

func TestMySQLDowntimeIntervals(t *testing.T) {
	resetTables(t)
	repo := repository.NewDowntimeRepository(testDB)
	ctx := context.Background()

	start := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.OpenInterval(ctx, &entities.DowntimeInterval{
		DeviceName:   "cam-01",
		StartTime:    start,
		StatusBefore: entities.StatusOnline,
		StatusDuring: entities.StatusOffline,
	}))

	open, err := repo.GetOpenInterval(ctx, "cam-01")
	require.NoError(t, err)
	assert.True(t, open.Open())

	_, err = repo.GetOpenInterval(ctx, "cam-02")
	assert.ErrorIs(t, err, repository.ErrNoOpenInterval)

	end := start.Add(45 * time.Minute)
	require.NoError(t, repo.CloseInterval(ctx, "cam-01", end, entities.RecoveryAuto))
	assert.ErrorIs(t, repo.CloseInterval(ctx, "cam-01", end, entities.RecoveryAuto), repository.ErrNoOpenInterval)

	closed, err := repo.LastClosedSince(ctx, "cam-01", start)
	require.NoError(t, err)
	assert.InDelta(t, 45, closed.DurationMinutes, 0.01)
	assert.Equal(t, entities.RecoveryAuto, closed.RecoveryMethod)

	overlapping, err := repo.ListOverlapping(ctx, "cam-01", start.Add(-time.Hour), start.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, overlapping, 1)

	overlapping, err = repo.ListOverlapping(ctx, "cam-01", end.Add(time.Hour), end.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, overlapping)

	stats, err := repo.DeviceStats(ctx, "cam-01", start.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalIncidents)
	assert.InDelta(t, 45, stats.MaxDowntimeMinutes, 0.01)
}

func TestMySQLMaintenanceSuppressions(t *testing.T) {
	resetTables(t)
	repo := repository.NewMaintenanceRepository(testDB)
	ctx := context.Background()

	start := time.Date(2026, 9, 1, 2, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	active := &entities.MaintenanceWindow{
		DeviceName:     "cam-01",
		ScheduledStart: start,
		ScheduledEnd:   end,
		Status:         entities.MaintenanceScheduled,
		SuppressAlerts: true,
	}
	require.NoError(t, repo.CreateWindow(ctx, active))

	completed := &entities.MaintenanceWindow{
		DeviceName:     "cam-01",
		ScheduledStart: start,
		ScheduledEnd:   end,
		Status:         entities.MaintenanceCompleted,
		SuppressAlerts: true,
	}
	require.NoError(t, repo.CreateWindow(ctx, completed))

	noSuppress := &entities.MaintenanceWindow{
		DeviceName:     "cam-01",
		ScheduledStart: start,
		ScheduledEnd:   end,
		Status:         entities.MaintenanceScheduled,
		SuppressAlerts: false,
	}
	require.NoError(t, repo.CreateWindow(ctx, noSuppress))

	windows, err := repo.ActiveSuppressions(ctx, "cam-01", start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, active.ID, windows[0].ID)

	// Bounds are inclusive on both ends.
	windows, err = repo.ActiveSuppressions(ctx, "cam-01", end)
	require.NoError(t, err)
	assert.Len(t, windows, 1)

	windows, err = repo.ActiveSuppressions(ctx, "cam-01", end.Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, windows)

	windows, err = repo.ActiveSuppressions(ctx, "cam-02", start.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestMySQLDevicesAndGroups(t *testing.T) {
	resetTables(t)
	repo := repository.NewDeviceRepository(testDB)
	ctx := context.Background()

	for _, d := range []entities.Device{
		{Name: "cam-01", Enabled: true},
		{Name: "cam-02", Enabled: true},
		{Name: "cam-03", Enabled: false},
	} {
		device := d
		require.NoError(t, repo.CreateDevice(ctx, &device))
	}

	names, err := repo.ListEnabledNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cam-01", "cam-02"}, names)

	group := &entities.DeviceGroup{
		Name: "perimeter",
		Members: []entities.DeviceGroupMember{
			{DeviceName: "cam-01"},
			{DeviceName: "cam-03"},
		},
	}
	require.NoError(t, repo.CreateGroup(ctx, group))

	members, err := repo.GroupMembers(ctx, group.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cam-01", "cam-03"}, members)

	_, err = repo.GroupMembers(ctx, group.ID+100)
	assert.ErrorIs(t, err, repository.ErrGroupNotFound)
}
