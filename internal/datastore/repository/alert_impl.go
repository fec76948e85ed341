package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
)

// alertRepository implements AlertRepository.
type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// ListRules returns alert rules matching the given filter.
func (r *alertRepository) ListRules(ctx context.Context, filter AlertRuleFilter) ([]entities.AlertRule, error) {
	var rules []entities.AlertRule
	query := r.db.WithContext(ctx)

	if filter.RuleType != "" {
		query = query.Where("rule_type = ?", filter.RuleType)
	}
	if filter.Enabled != nil {
		query = query.Where("enabled = ?", *filter.Enabled)
	}
	if filter.BuiltIn != nil {
		query = query.Where("built_in = ?", *filter.BuiltIn)
	}

	if err := query.Order("id ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	return rules, nil
}

// GetRule returns a single alert rule by ID.
func (r *alertRepository) GetRule(ctx context.Context, id uint) (*entities.AlertRule, error) {
	var rule entities.AlertRule
	if err := r.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertRuleNotFound
		}
		return nil, fmt.Errorf("failed to get alert rule %d: %w", id, err)
	}
	return &rule, nil
}

// CreateRule creates a new alert rule.
func (r *alertRepository) CreateRule(ctx context.Context, rule *entities.AlertRule) error {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}
	return nil
}

// UpdateRule replaces an alert rule.
func (r *alertRepository) UpdateRule(ctx context.Context, rule *entities.AlertRule) error {
	if rule.ID == 0 {
		return fmt.Errorf("failed to update alert rule: missing rule ID")
	}
	if err := r.db.WithContext(ctx).Save(rule).Error; err != nil {
		return fmt.Errorf("failed to update alert rule %d: %w", rule.ID, err)
	}
	return nil
}

// DeleteRule deletes an alert rule.
func (r *alertRepository) DeleteRule(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.AlertRule{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete alert rule %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertRuleNotFound
	}
	return nil
}

// ToggleRule enables or disables an alert rule.
func (r *alertRepository) ToggleRule(ctx context.Context, id uint, enabled bool) error {
	result := r.db.WithContext(ctx).Model(&entities.AlertRule{}).Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("failed to toggle alert rule %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertRuleNotFound
	}
	return nil
}

// GetEnabledRules returns all enabled alert rules ordered by ID, the
// deterministic evaluation order the engine depends on.
func (r *alertRepository) GetEnabledRules(ctx context.Context) ([]entities.AlertRule, error) {
	enabled := true
	return r.ListRules(ctx, AlertRuleFilter{Enabled: &enabled})
}

// CountRulesByName returns the number of rules with the given name.
func (r *alertRepository) CountRulesByName(ctx context.Context, name string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.AlertRule{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count rules by name: %w", err)
	}
	return count, nil
}

// CreateInstance appends a new alert instance row.
func (r *alertRepository) CreateInstance(ctx context.Context, instance *entities.AlertInstance) error {
	if err := r.db.WithContext(ctx).Create(instance).Error; err != nil {
		return fmt.Errorf("failed to create alert instance: %w", err)
	}
	return nil
}

// GetInstance returns a single alert instance with its rule preloaded.
func (r *alertRepository) GetInstance(ctx context.Context, id uint) (*entities.AlertInstance, error) {
	var instance entities.AlertInstance
	if err := r.db.WithContext(ctx).Preload("Rule").First(&instance, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertInstanceNotFound
		}
		return nil, fmt.Errorf("failed to get alert instance %d: %w", id, err)
	}
	return &instance, nil
}

// UpdateInstanceFields mutates only the lifecycle tail fields of an instance.
func (r *alertRepository) UpdateInstanceFields(ctx context.Context, id uint, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&entities.AlertInstance{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update alert instance %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertInstanceNotFound
	}
	return nil
}

// ListInstances returns instances matching the filter with pagination.
func (r *alertRepository) ListInstances(ctx context.Context, filter AlertInstanceFilter) ([]entities.AlertInstance, int64, error) {
	applyFilter := func(q *gorm.DB) *gorm.DB {
		if filter.DeviceName != "" {
			q = q.Where("device_name = ?", filter.DeviceName)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Severity != "" {
			q = q.Where("severity = ?", filter.Severity)
		}
		if filter.Since != nil {
			q = q.Where("triggered_at >= ?", *filter.Since)
		}
		if filter.Until != nil {
			q = q.Where("triggered_at <= ?", *filter.Until)
		}
		return q
	}

	var total int64
	if err := applyFilter(r.db.WithContext(ctx).Model(&entities.AlertInstance{})).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alert instances: %w", err)
	}

	var items []entities.AlertInstance
	query := applyFilter(r.db.WithContext(ctx).Preload("Rule")).Order("triggered_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list alert instances: %w", err)
	}
	return items, total, nil
}

// ActiveInstances returns all triggered/acknowledged instances.
func (r *alertRepository) ActiveInstances(ctx context.Context) ([]entities.AlertInstance, error) {
	var items []entities.AlertInstance
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{entities.AlertTriggered, entities.AlertAcknowledged}).
		Order("triggered_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active alert instances: %w", err)
	}
	return items, nil
}

// LastTriggeredAt returns the latest triggered_at for (rule, device).
func (r *alertRepository) LastTriggeredAt(ctx context.Context, ruleID uint, deviceName string) (time.Time, error) {
	var instance entities.AlertInstance
	err := r.db.WithContext(ctx).
		Where("rule_id = ? AND device_name = ?", ruleID, deviceName).
		Order("triggered_at DESC").
		First(&instance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last trigger time: %w", err)
	}
	return instance.TriggeredAt, nil
}

// Statistics aggregates instances triggered at or after since.
func (r *alertRepository) Statistics(ctx context.Context, since time.Time) (*AlertStatistics, error) {
	stats := &AlertStatistics{
		BySeverity: make(map[string]int64),
		ByStatus:   make(map[string]int64),
	}

	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&entities.AlertInstance{}).Where("triggered_at >= ?", since)
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count alert instances: %w", err)
	}

	type bucket struct {
		Label string
		Count int64
	}

	var bySeverity []bucket
	if err := base().Select("severity AS label, COUNT(*) AS count").Group("severity").Scan(&bySeverity).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate by severity: %w", err)
	}
	for _, b := range bySeverity {
		stats.BySeverity[b.Label] = b.Count
	}

	var byStatus []bucket
	if err := base().Select("status AS label, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate by status: %w", err)
	}
	for _, b := range byStatus {
		stats.ByStatus[b.Label] = b.Count
	}

	if err := base().Where("escalated = ?", true).Count(&stats.EscalatedCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count escalated instances: %w", err)
	}

	// Mean resolution time over resolved instances, computed in Go to stay
	// portable across SQLite and MySQL date arithmetic.
	var resolved []entities.AlertInstance
	err := base().
		Where("resolved_at IS NOT NULL").
		Select("triggered_at", "resolved_at").
		Find(&resolved).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load resolved instances: %w", err)
	}
	if len(resolved) > 0 {
		var totalMinutes float64
		for i := range resolved {
			totalMinutes += resolved[i].ResolvedAt.Sub(resolved[i].TriggeredAt).Minutes()
		}
		stats.MeanResolutionMinutes = totalMinutes / float64(len(resolved))
	}

	return stats, nil
}

// RecordAttempt appends a notification attempt row.
func (r *alertRepository) RecordAttempt(ctx context.Context, attempt *entities.NotificationAttempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to record notification attempt: %w", err)
	}
	return nil
}

// ListAttempts returns all notification attempts for an instance.
func (r *alertRepository) ListAttempts(ctx context.Context, instanceID uint) ([]entities.NotificationAttempt, error) {
	var attempts []entities.NotificationAttempt
	err := r.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("attempted_at ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notification attempts: %w", err)
	}
	return attempts, nil
}
