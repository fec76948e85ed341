// Package alerting evaluates alert rules over device health data and drives
// the alert instance lifecycle.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/conf"
	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
	"github.com/fleetwatch/fleetwatch/internal/datastore/repository"
	"github.com/fleetwatch/fleetwatch/internal/logger"
	"github.com/fleetwatch/fleetwatch/internal/observability"
)

// ErrInvalidTransition is returned when an acknowledge or resolve request
// does not apply to the instance's current status.
var ErrInvalidTransition = errors.New("invalid alert state transition")

const resolvedByEngine = "engine"

// Notifier dispatches messages for alert instances. Implemented by the
// notification dispatcher; nil disables dispatch.
type Notifier interface {
	Dispatch(rule *entities.AlertRule, instance *entities.AlertInstance, kind string)
}

// Suppressor answers maintenance suppression queries.
type Suppressor interface {
	IsSuppressed(ctx context.Context, deviceName string, at time.Time) (bool, error)
}

// UptimeCalculator measures availability over a window.
type UptimeCalculator interface {
	UptimePercentage(ctx context.Context, deviceName string, windowStart, windowEnd, now time.Time) (float64, error)
}

type activeKey struct {
	ruleID     uint
	deviceName string
}

// Engine runs the tick-driven rule evaluation loop. One evaluation pass runs
// at a time; a tick arriving while the previous pass is still running is
// skipped and counted.
type Engine struct {
	alerts     repository.AlertRepository
	devices    repository.DeviceRepository
	downtime   repository.DowntimeRepository
	calculator UptimeCalculator
	suppressor Suppressor
	notifier   Notifier
	metrics    *observability.Metrics
	health     *observability.Health
	logger     logger.Logger
	settings   conf.EngineSettings

	// active maps (rule, device) to the open instance ID so breached scopes
	// do not spawn duplicates. Rebuilt from the store on Start.
	active   map[activeKey]uint
	activeMu sync.Mutex

	inPass   atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewEngine wires an Engine. notifier may be nil for deployments without
// configured channels.
func NewEngine(
	alerts repository.AlertRepository,
	devices repository.DeviceRepository,
	downtimeRepo repository.DowntimeRepository,
	calculator UptimeCalculator,
	suppressor Suppressor,
	notifier Notifier,
	metrics *observability.Metrics,
	health *observability.Health,
	settings conf.EngineSettings,
	log logger.Logger,
) *Engine {
	return &Engine{
		alerts:     alerts,
		devices:    devices,
		downtime:   downtimeRepo,
		calculator: calculator,
		suppressor: suppressor,
		notifier:   notifier,
		metrics:    metrics,
		health:     health,
		logger:     log,
		settings:   settings,
		active:     make(map[activeKey]uint),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start rebuilds the active instance map and launches the evaluation loop.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.recoverActive(ctx); err != nil {
		return fmt.Errorf("failed to recover active alerts: %w", err)
	}
	go e.run()
	e.logger.Info("alert engine started",
		logger.Duration("tick_interval", e.settings.TickInterval.Std()),
		logger.Int("active_alerts", e.activeCount()))
	return nil
}

// Stop halts the ticker and waits for an in-flight pass to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
	<-e.done
}

func (e *Engine) run() {
	defer close(e.done)
	ticker := time.NewTicker(e.settings.TickInterval.Std())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.RunPass(context.Background(), time.Now())
		case <-e.stop:
			return
		}
	}
}

// recoverActive loads triggered and acknowledged instances so a restart does
// not create duplicates for conditions that are still breached.
func (e *Engine) recoverActive(ctx context.Context) error {
	instances, err := e.alerts.ActiveInstances(ctx)
	if err != nil {
		return err
	}
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	for i := range instances {
		inst := &instances[i]
		e.active[activeKey{ruleID: inst.RuleID, deviceName: inst.DeviceName}] = inst.ID
	}
	return nil
}

// RunPass executes one evaluation pass at the given instant. Exposed for the
// scheduler and for tests; concurrent calls beyond the first are skipped.
func (e *Engine) RunPass(ctx context.Context, now time.Time) {
	if !e.inPass.CompareAndSwap(false, true) {
		e.metrics.TicksSkipped.Inc()
		e.logger.Warn("previous evaluation pass still running, tick skipped")
		return
	}
	defer e.inPass.Store(false)
	e.metrics.TicksTotal.Inc()

	rules, err := e.alerts.GetEnabledRules(ctx)
	if err != nil {
		e.metrics.PassFailures.Inc()
		e.health.SetDegraded("alert rule store unavailable")
		observability.CaptureError(err, "alerting")
		e.logger.Error("failed to load rules, pass abandoned", logger.Error(err))
		return
	}
	e.health.ClearDegraded()

	for i := range rules {
		rule := &rules[i]
		if cfgErr := validateRule(rule); cfgErr != nil {
			e.disableRule(ctx, rule, cfgErr.Reason)
			continue
		}
		deviceNames, ok := e.resolveScope(ctx, rule)
		if !ok {
			continue
		}
		for _, deviceName := range deviceNames {
			if rule.RuleType == entities.RuleTypeRecovery {
				e.evaluateRecovery(ctx, rule, deviceName, now)
			} else {
				e.evaluateThreshold(ctx, rule, deviceName, now)
			}
		}
	}
}

// resolveScope expands a rule to the device names it applies to. A scope
// that resolves to zero devices follows the configured policy: skip the rule
// this pass, or disable it persistently.
func (e *Engine) resolveScope(ctx context.Context, rule *entities.AlertRule) ([]string, bool) {
	var (
		names []string
		err   error
	)
	switch rule.AppliesTo {
	case entities.ScopeAll:
		names, err = e.devices.ListEnabledNames(ctx)
	case entities.ScopeGroup:
		names, err = e.devices.GroupMembers(ctx, rule.GroupID)
		if errors.Is(err, repository.ErrGroupNotFound) {
			names, err = nil, nil
		}
	case entities.ScopeDevice:
		names = []string{rule.DeviceName}
	}
	if err != nil {
		e.logger.Error("failed to resolve rule scope",
			logger.String("rule", rule.Name),
			logger.Error(err))
		return nil, false
	}
	if len(names) == 0 {
		if e.settings.ScopePolicy == conf.ScopePolicyDisable {
			e.disableRule(ctx, rule, "scope resolves to no devices")
		} else {
			e.logger.Warn("rule scope resolves to no devices, skipping",
				logger.String("rule", rule.Name),
				logger.String("applies_to", rule.AppliesTo))
		}
		return nil, false
	}
	return names, true
}

func (e *Engine) disableRule(ctx context.Context, rule *entities.AlertRule, reason string) {
	e.logger.Error("disabling rule",
		logger.String("rule", rule.Name),
		logger.Uint64("rule_id", uint64(rule.ID)),
		logger.String("reason", reason))
	if err := e.alerts.ToggleRule(ctx, rule.ID, false); err != nil {
		e.logger.Error("failed to disable rule",
			logger.Uint64("rule_id", uint64(rule.ID)),
			logger.Error(err))
		return
	}
	e.metrics.RulesDisabled.Inc()
}

// evaluateThreshold handles sla_violation and extended_downtime rules for
// one device. Metric failures skip the device, never the pass.
func (e *Engine) evaluateThreshold(ctx context.Context, rule *entities.AlertRule, deviceName string, now time.Time) {
	value, err := e.metricFor(ctx, rule, deviceName, now)
	if err != nil {
		if errors.Is(err, repository.ErrNoData) {
			e.logger.Debug("no health data for device, skipping",
				logger.String("rule", rule.Name),
				logger.String("device", deviceName))
			return
		}
		e.logger.Error("metric evaluation failed",
			logger.String("rule", rule.Name),
			logger.String("device", deviceName),
			logger.Error(err))
		return
	}

	breached := compare(value, rule.Operator, rule.ThresholdValue)
	key := activeKey{ruleID: rule.ID, deviceName: deviceName}

	if instanceID, ok := e.activeInstance(key); ok {
		if breached {
			e.maybeEscalate(ctx, rule, instanceID, now)
			return
		}
		e.autoResolve(ctx, rule, key, instanceID, now)
		return
	}
	if !breached {
		return
	}
	e.trigger(ctx, rule, deviceName, value, now)
}

func (e *Engine) metricFor(ctx context.Context, rule *entities.AlertRule, deviceName string, now time.Time) (float64, error) {
	switch rule.RuleType {
	case entities.RuleTypeSLAViolation:
		windowStart := now.Add(-time.Duration(rule.EvaluationWindowMinutes) * time.Minute)
		return e.calculator.UptimePercentage(ctx, deviceName, windowStart, now, now)
	case entities.RuleTypeExtendedDowntime:
		open, err := e.downtime.GetOpenInterval(ctx, deviceName)
		if errors.Is(err, repository.ErrNoOpenInterval) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		return now.Sub(open.StartTime).Minutes(), nil
	default:
		return 0, fmt.Errorf("no metric for rule type %q", rule.RuleType)
	}
}

// trigger creates a TRIGGERED instance after the suppression and rate-limit
// gates pass, then hands it to the notifier.
func (e *Engine) trigger(ctx context.Context, rule *entities.AlertRule, deviceName string, value float64, now time.Time) {
	if suppressed := e.suppressed(ctx, rule, deviceName, now); suppressed {
		return
	}
	if e.rateLimited(ctx, rule, deviceName, now) {
		return
	}

	instance := &entities.AlertInstance{
		RuleID:         rule.ID,
		DeviceName:     deviceName,
		Severity:       rule.Severity,
		TriggeredAt:    now,
		TriggerValue:   value,
		ThresholdValue: rule.ThresholdValue,
		Message:        alertMessage(rule, deviceName, value),
		Status:         entities.AlertTriggered,
	}
	if err := e.alerts.CreateInstance(ctx, instance); err != nil {
		e.logger.Error("failed to create alert instance",
			logger.String("rule", rule.Name),
			logger.String("device", deviceName),
			logger.Error(err))
		return
	}
	e.setActive(activeKey{ruleID: rule.ID, deviceName: deviceName}, instance.ID)
	e.metrics.AlertsTriggered.WithLabelValues(rule.Severity).Inc()
	e.logger.Warn("alert triggered",
		logger.String("rule", rule.Name),
		logger.String("device", deviceName),
		logger.String("severity", rule.Severity),
		logger.Float64("value", value))

	instance.Rule = *rule
	if e.notifier != nil {
		e.notifier.Dispatch(rule, instance, entities.NotificationKindAlert)
	}
}

func (e *Engine) suppressed(ctx context.Context, rule *entities.AlertRule, deviceName string, now time.Time) bool {
	if !rule.SuppressDuringMaintenance {
		return false
	}
	suppressed, err := e.suppressor.IsSuppressed(ctx, deviceName, now)
	if err != nil {
		// Suppression unknown: hold the alert rather than page during
		// scheduled maintenance. Next tick retries.
		e.logger.Error("suppression check failed, holding alert",
			logger.String("device", deviceName),
			logger.Error(err))
		return true
	}
	if suppressed {
		e.logger.Debug("alert suppressed by maintenance window",
			logger.String("rule", rule.Name),
			logger.String("device", deviceName))
	}
	return suppressed
}

func (e *Engine) rateLimited(ctx context.Context, rule *entities.AlertRule, deviceName string, now time.Time) bool {
	limit := time.Duration(rule.RateLimitMinutes) * time.Minute
	if rule.RateLimitMinutes <= 0 {
		limit = e.settings.DefaultRateLimit.Std()
	}
	if limit <= 0 {
		return false
	}
	last, err := e.alerts.LastTriggeredAt(ctx, rule.ID, deviceName)
	if err != nil {
		e.logger.Error("rate limit lookup failed, holding alert",
			logger.String("device", deviceName),
			logger.Error(err))
		return true
	}
	if last.IsZero() || now.Sub(last) >= limit {
		return false
	}
	e.logger.Debug("alert rate limited",
		logger.String("rule", rule.Name),
		logger.String("device", deviceName),
		logger.Time("last_triggered", last))
	return true
}

// maybeEscalate escalates an active instance exactly once after the rule's
// escalation delay. Works from both triggered and acknowledged states.
func (e *Engine) maybeEscalate(ctx context.Context, rule *entities.AlertRule, instanceID uint, now time.Time) {
	if !rule.EscalationEnabled || rule.EscalationAfterMinutes <= 0 {
		return
	}
	instance, err := e.alerts.GetInstance(ctx, instanceID)
	if err != nil {
		e.logger.Error("failed to load instance for escalation check",
			logger.Uint64("instance_id", uint64(instanceID)),
			logger.Error(err))
		return
	}
	if instance.Escalated || !instance.Active() {
		return
	}
	if now.Sub(instance.TriggeredAt) < time.Duration(rule.EscalationAfterMinutes)*time.Minute {
		return
	}

	fields := map[string]any{
		"escalated":        true,
		"escalated_at":     now,
		"escalation_level": instance.EscalationLevel + 1,
	}
	if err := e.alerts.UpdateInstanceFields(ctx, instanceID, fields); err != nil {
		e.logger.Error("failed to escalate alert",
			logger.Uint64("instance_id", uint64(instanceID)),
			logger.Error(err))
		return
	}
	instance.Escalated = true
	instance.EscalatedAt = &now
	instance.EscalationLevel++
	e.metrics.Escalations.Inc()
	e.logger.Warn("alert escalated",
		logger.String("rule", rule.Name),
		logger.String("device", instance.DeviceName),
		logger.Uint64("instance_id", uint64(instanceID)))

	if e.notifier != nil {
		e.notifier.Dispatch(rule, instance, entities.NotificationKindEscalation)
	}
}

// autoResolve closes an active instance whose condition cleared on its own.
func (e *Engine) autoResolve(ctx context.Context, rule *entities.AlertRule, key activeKey, instanceID uint, now time.Time) {
	fields := map[string]any{
		"status":      entities.AlertAutoResolved,
		"resolved_at": now,
		"resolved_by": resolvedByEngine,
	}
	if err := e.alerts.UpdateInstanceFields(ctx, instanceID, fields); err != nil {
		e.logger.Error("failed to auto-resolve alert",
			logger.Uint64("instance_id", uint64(instanceID)),
			logger.Error(err))
		return
	}
	e.clearActive(key)
	e.metrics.AlertsResolved.WithLabelValues("auto").Inc()
	e.logger.Info("alert auto-resolved",
		logger.String("rule", rule.Name),
		logger.String("device", key.deviceName),
		logger.Uint64("instance_id", uint64(instanceID)))

	if e.notifier == nil {
		return
	}
	instance, err := e.alerts.GetInstance(ctx, instanceID)
	if err != nil {
		e.logger.Error("failed to load instance for recovery notification",
			logger.Uint64("instance_id", uint64(instanceID)),
			logger.Error(err))
		return
	}
	e.notifier.Dispatch(rule, instance, entities.NotificationKindRecovery)
}

// evaluateRecovery fires a one-shot informational instance when a device
// came back after a long enough outage. Fired instances never enter the
// active map and never escalate.
func (e *Engine) evaluateRecovery(ctx context.Context, rule *entities.AlertRule, deviceName string, now time.Time) {
	lookback := time.Duration(rule.EvaluationWindowMinutes) * time.Minute
	if lookback <= 0 {
		lookback = e.settings.RecoveryLookback.Std()
	}
	interval, err := e.downtime.LastClosedSince(ctx, deviceName, now.Add(-lookback))
	if err != nil {
		if !errors.Is(err, repository.ErrNoData) {
			e.logger.Error("recovery lookup failed",
				logger.String("device", deviceName),
				logger.Error(err))
		}
		return
	}
	if !compare(interval.DurationMinutes, rule.Operator, rule.ThresholdValue) {
		return
	}

	// One shot per recovery: skip when an instance already fired at or after
	// the interval's end.
	last, err := e.alerts.LastTriggeredAt(ctx, rule.ID, deviceName)
	if err != nil {
		e.logger.Error("recovery dedup lookup failed",
			logger.String("device", deviceName),
			logger.Error(err))
		return
	}
	if !last.IsZero() && !last.Before(*interval.EndTime) {
		return
	}
	if suppressed := e.suppressed(ctx, rule, deviceName, now); suppressed {
		return
	}

	instance := &entities.AlertInstance{
		RuleID:         rule.ID,
		DeviceName:     deviceName,
		Severity:       rule.Severity,
		TriggeredAt:    now,
		TriggerValue:   interval.DurationMinutes,
		ThresholdValue: rule.ThresholdValue,
		Message:        alertMessage(rule, deviceName, interval.DurationMinutes),
		Status:         entities.AlertFired,
	}
	if err := e.alerts.CreateInstance(ctx, instance); err != nil {
		e.logger.Error("failed to create recovery instance",
			logger.String("device", deviceName),
			logger.Error(err))
		return
	}
	e.metrics.AlertsTriggered.WithLabelValues(rule.Severity).Inc()
	e.logger.Info("recovery alert fired",
		logger.String("rule", rule.Name),
		logger.String("device", deviceName),
		logger.Float64("downtime_minutes", interval.DurationMinutes))

	instance.Rule = *rule
	if e.notifier != nil {
		e.notifier.Dispatch(rule, instance, entities.NotificationKindRecovery)
	}
}

// Acknowledge marks a triggered instance as seen by an operator.
func (e *Engine) Acknowledge(ctx context.Context, instanceID uint, user, notes string) error {
	instance, err := e.alerts.GetInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	if instance.Status != entities.AlertTriggered {
		return fmt.Errorf("%w: cannot acknowledge alert in status %q", ErrInvalidTransition, instance.Status)
	}
	now := time.Now()
	fields := map[string]any{
		"status":             entities.AlertAcknowledged,
		"acknowledged_at":    now,
		"acknowledged_by":    user,
		"acknowledged_notes": notes,
	}
	if err := e.alerts.UpdateInstanceFields(ctx, instanceID, fields); err != nil {
		return fmt.Errorf("failed to acknowledge alert %d: %w", instanceID, err)
	}
	e.logger.Info("alert acknowledged",
		logger.Uint64("instance_id", uint64(instanceID)),
		logger.String("user", user))
	return nil
}

// Resolve closes a triggered or acknowledged instance manually.
func (e *Engine) Resolve(ctx context.Context, instanceID uint, user, notes string) error {
	instance, err := e.alerts.GetInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	if !instance.Active() {
		return fmt.Errorf("%w: cannot resolve alert in status %q", ErrInvalidTransition, instance.Status)
	}
	now := time.Now()
	fields := map[string]any{
		"status":         entities.AlertResolved,
		"resolved_at":    now,
		"resolved_by":    user,
		"resolved_notes": notes,
	}
	if err := e.alerts.UpdateInstanceFields(ctx, instanceID, fields); err != nil {
		return fmt.Errorf("failed to resolve alert %d: %w", instanceID, err)
	}
	e.clearActive(activeKey{ruleID: instance.RuleID, deviceName: instance.DeviceName})
	e.metrics.AlertsResolved.WithLabelValues("manual").Inc()
	e.logger.Info("alert resolved",
		logger.Uint64("instance_id", uint64(instanceID)),
		logger.String("user", user))
	return nil
}

// Statistics aggregates the instance ledger over the trailing window.
func (e *Engine) Statistics(ctx context.Context, windowDays int) (*repository.AlertStatistics, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	since := time.Now().AddDate(0, 0, -windowDays)
	return e.alerts.Statistics(ctx, since)
}

func (e *Engine) activeInstance(key activeKey) (uint, bool) {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	id, ok := e.active[key]
	return id, ok
}

func (e *Engine) setActive(key activeKey, instanceID uint) {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	e.active[key] = instanceID
}

func (e *Engine) clearActive(key activeKey) {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	delete(e.active, key)
}

func (e *Engine) activeCount() int {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	return len(e.active)
}
