package notification

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetwatch/fleetwatch/internal/conf"
	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
	"github.com/fleetwatch/fleetwatch/internal/datastore/repository"
	"github.com/fleetwatch/fleetwatch/internal/logger"
	"github.com/fleetwatch/fleetwatch/internal/observability"
)

const (
	// sendTimeout bounds one delivery attempt including its retry.
	sendTimeout = 30 * time.Second
	// recordTimeout bounds the bookkeeping writes done from workers.
	recordTimeout = 3 * time.Second
)

// job is one message for one channel. Jobs for the same instance share a
// correlation ID across channels.
type job struct {
	rule          entities.AlertRule
	instance      entities.AlertInstance
	kind          string
	channel       Channel
	recipients    string
	correlationID string
}

// Dispatcher fans alert notifications out to channels through a bounded
// queue and a fixed worker pool. Enqueueing never blocks: when the queue is
// full the job is dropped and recorded as a failed attempt.
type Dispatcher struct {
	alerts            repository.AlertRepository
	channels          map[string]Channel
	order             []string
	defaultRecipients map[string]string
	queue             chan job
	workers           int
	metrics           *observability.Metrics
	logger            logger.Logger

	wg       sync.WaitGroup
	mu       sync.RWMutex // guards stopped and the queue close
	stopped  bool
	stopOnce sync.Once
}

// NewDispatcher wires a Dispatcher over the given channels.
func NewDispatcher(
	alerts repository.AlertRepository,
	channels []Channel,
	settings conf.NotifySettings,
	metrics *observability.Metrics,
	log logger.Logger,
) *Dispatcher {
	d := &Dispatcher{
		alerts:            alerts,
		channels:          make(map[string]Channel, len(channels)),
		defaultRecipients: make(map[string]string, len(settings.Channels)),
		queue:             make(chan job, settings.QueueSize),
		workers:           settings.Workers,
		metrics:           metrics,
		logger:            log,
	}
	for _, ch := range channels {
		d.channels[ch.Name()] = ch
		d.order = append(d.order, ch.Name())
	}
	for i := range settings.Channels {
		d.defaultRecipients[settings.Channels[i].Name] = strings.Join(settings.Channels[i].Recipients, ", ")
	}
	return d
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.logger.Info("notification dispatcher started",
		logger.Int("workers", d.workers),
		logger.Int("queue_size", cap(d.queue)),
		logger.Int("channels", len(d.channels)))
}

// Stop closes the queue and waits up to grace for workers to drain it. Safe
// against concurrent Dispatch calls: the queue is only closed once every
// in-flight enqueue has released the lock.
func (d *Dispatcher) Stop(grace time.Duration) {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		close(d.queue)
		d.mu.Unlock()
	})
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		d.logger.Warn("notification queue drain timed out",
			logger.Duration("grace", grace),
			logger.Int("remaining", len(d.queue)))
	}
}

// Dispatch enqueues one job per target channel. Never blocks; a full queue
// drops the job with a failed attempt on record.
func (d *Dispatcher) Dispatch(rule *entities.AlertRule, instance *entities.AlertInstance, kind string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.logger.Warn("dispatcher stopped, notification dropped",
			logger.Uint64("instance_id", uint64(instance.ID)))
		return
	}

	correlationID := uuid.NewString()
	recipients := rule.Recipients
	if kind == entities.NotificationKindEscalation && rule.EscalationRecipients != "" {
		recipients = rule.EscalationRecipients
	}

	for _, name := range d.targetChannels(rule) {
		channel, ok := d.channels[name]
		if !ok {
			d.logger.Warn("rule references unknown channel",
				logger.String("rule", rule.Name),
				logger.String("channel", name))
			continue
		}
		j := job{
			rule:          *rule,
			instance:      *instance,
			kind:          kind,
			channel:       channel,
			recipients:    recipients,
			correlationID: correlationID,
		}
		if j.recipients == "" {
			j.recipients = d.defaultRecipients[name]
		}
		select {
		case d.queue <- j:
			d.metrics.NotifyQueueDepth.Set(float64(len(d.queue)))
		default:
			d.metrics.NotifyDropped.Inc()
			d.recordAttempt(&j, false, "queue full")
			d.logger.Error("notification queue full, job dropped",
				logger.Uint64("instance_id", uint64(instance.ID)),
				logger.String("channel", name))
		}
	}
}

// targetChannels resolves the rule's channel list; an empty list means every
// configured channel.
func (d *Dispatcher) targetChannels(rule *entities.AlertRule) []string {
	if strings.TrimSpace(rule.Channels) == "" {
		return d.order
	}
	parts := strings.Split(rule.Channels, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.metrics.NotifyQueueDepth.Set(float64(len(d.queue)))
		d.deliver(&j)
	}
}

// deliver renders and sends one job with exactly one retry. Failures are
// recorded and logged; they never feed back into the alert lifecycle.
func (d *Dispatcher) deliver(j *job) {
	msg, err := Render(&j.rule, &j.instance, j.kind, j.channel.External())
	if err != nil {
		d.recordAttempt(j, false, err.Error())
		d.logger.Error("failed to render notification",
			logger.Uint64("instance_id", uint64(j.instance.ID)),
			logger.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	err = j.channel.Send(ctx, msg)
	if err != nil {
		d.logger.Warn("notification send failed, retrying once",
			logger.String("channel", j.channel.Name()),
			logger.Error(err))
		err = j.channel.Send(ctx, msg)
	}

	outcome := "success"
	errText := ""
	if err != nil {
		outcome = "failure"
		errText = err.Error()
		d.logger.Error("notification delivery failed",
			logger.String("channel", j.channel.Name()),
			logger.Uint64("instance_id", uint64(j.instance.ID)),
			logger.Error(err))
	}
	d.metrics.NotifyAttempts.WithLabelValues(j.channel.Name(), outcome).Inc()
	d.recordAttempt(j, err == nil, errText)

	if err == nil && j.kind == entities.NotificationKindAlert && !j.instance.NotificationSent {
		d.markSent(j.instance.ID)
	}
}

func (d *Dispatcher) recordAttempt(j *job, success bool, errText string) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	attempt := &entities.NotificationAttempt{
		InstanceID:    j.instance.ID,
		CorrelationID: j.correlationID,
		Channel:       j.channel.Name(),
		Recipients:    j.recipients,
		Kind:          j.kind,
		Success:       success,
		Error:         errText,
		AttemptedAt:   time.Now(),
	}
	if err := d.alerts.RecordAttempt(ctx, attempt); err != nil {
		d.logger.Error("failed to record notification attempt",
			logger.Uint64("instance_id", uint64(j.instance.ID)),
			logger.Error(err))
	}
}

func (d *Dispatcher) markSent(instanceID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	fields := map[string]any{
		"notification_sent":    true,
		"notification_sent_at": time.Now(),
	}
	if err := d.alerts.UpdateInstanceFields(ctx, instanceID, fields); err != nil {
		d.logger.Error("failed to mark notification sent",
			logger.Uint64("instance_id", uint64(instanceID)),
			logger.Error(err))
	}
}
