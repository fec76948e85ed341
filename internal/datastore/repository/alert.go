package repository

import (
	"context"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
)

// AlertRepository handles alert rule CRUD and the alert instance ledger.
type AlertRepository interface {
	// Rule CRUD
	ListRules(ctx context.Context, filter AlertRuleFilter) ([]entities.AlertRule, error)
	GetRule(ctx context.Context, id uint) (*entities.AlertRule, error)
	CreateRule(ctx context.Context, rule *entities.AlertRule) error
	UpdateRule(ctx context.Context, rule *entities.AlertRule) error
	DeleteRule(ctx context.Context, id uint) error
	ToggleRule(ctx context.Context, id uint, enabled bool) error
	GetEnabledRules(ctx context.Context) ([]entities.AlertRule, error)
	CountRulesByName(ctx context.Context, name string) (int64, error)

	// Instance ledger: append-only rows with mutable tail fields.
	CreateInstance(ctx context.Context, instance *entities.AlertInstance) error
	GetInstance(ctx context.Context, id uint) (*entities.AlertInstance, error)
	UpdateInstanceFields(ctx context.Context, id uint, fields map[string]any) error
	ListInstances(ctx context.Context, filter AlertInstanceFilter) ([]entities.AlertInstance, int64, error)
	// ActiveInstances returns triggered/acknowledged instances; the engine
	// rebuilds its active map from this on startup.
	ActiveInstances(ctx context.Context) ([]entities.AlertInstance, error)
	// LastTriggeredAt returns the most recent triggered_at for (rule,
	// device), used for the rate-limit check. Returns the zero time when no
	// instance exists.
	LastTriggeredAt(ctx context.Context, ruleID uint, deviceName string) (time.Time, error)
	Statistics(ctx context.Context, since time.Time) (*AlertStatistics, error)

	// Notification bookkeeping
	RecordAttempt(ctx context.Context, attempt *entities.NotificationAttempt) error
	ListAttempts(ctx context.Context, instanceID uint) ([]entities.NotificationAttempt, error)
}

// AlertRuleFilter controls rule listing queries.
type AlertRuleFilter struct {
	RuleType string
	Enabled  *bool
	BuiltIn  *bool
}

// AlertInstanceFilter controls instance listing queries.
type AlertInstanceFilter struct {
	DeviceName string
	Status     string
	Severity   string
	Since      *time.Time
	Until      *time.Time
	Limit      int
	Offset     int
}

// AlertStatistics aggregates the instance ledger over a window.
type AlertStatistics struct {
	Total                 int64            `json:"total"`
	BySeverity            map[string]int64 `json:"by_severity"`
	ByStatus              map[string]int64 `json:"by_status"`
	MeanResolutionMinutes float64          `json:"mean_resolution_minutes"`
	EscalatedCount        int64            `json:"escalated_count"`
}
