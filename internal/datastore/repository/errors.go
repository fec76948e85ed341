package repository

import "errors"

// Sentinel errors returned by repositories. Callers match with errors.Is.
var (
	ErrAlertRuleNotFound     = errors.New("alert rule not found")
	ErrAlertInstanceNotFound = errors.New("alert instance not found")
	ErrDeviceNotFound        = errors.New("device not found")
	ErrGroupNotFound         = errors.New("device group not found")
	ErrWindowNotFound        = errors.New("maintenance window not found")
	ErrNoOpenInterval        = errors.New("no open downtime interval")
	// ErrNoData signals a metric cannot be computed yet for a scope (e.g. a
	// newly added device with no history). The engine skips the scope for
	// the current pass and retries on the next tick.
	ErrNoData = errors.New("no data for device")
)
