// Package dispatch orchestrates one schedule run: window evaluation,
// audience resolution, per-channel fan-out, delivery bookkeeping.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	stderrors "gaia-notifier/internal/common/errors"
	"gaia-notifier/internal/common/logger"
	"gaia-notifier/internal/common/metrics"
	"gaia-notifier/internal/models"
	"gaia-notifier/internal/notifier/audience"
	"gaia-notifier/internal/notifier/channels"
	"gaia-notifier/internal/notifier/render"
	"gaia-notifier/internal/notifier/window"
)

// Store is the engine's write surface: the only schedule fields it ever
// mutates plus the notification audit insert. All three are idempotent.
type Store interface {
	DeactivateSchedule(ctx context.Context, scheduleID string) error
	SetLastSentAt(ctx context.Context, scheduleID string, at time.Time) error
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Locker serializes dispatches per schedule identity. Acquire returns
// acquired=false when another run holds the lock; the caller skips quietly.
type Locker interface {
	Acquire(ctx context.Context, scheduleID string) (release func(), acquired bool, err error)
}

// ConnectorFactory builds the connectors a schedule has configured.
type ConnectorFactory interface {
	ForSchedule(s *models.Schedule) []channels.Connector
}

// DeliveryFailure is one isolated per-recipient failure.
type DeliveryFailure struct {
	Channel     models.Channel
	RecipientID string
	Err         error
}

// BatchResult summarizes one dispatch.
type BatchResult struct {
	Skipped  bool // another run held the lock
	Eligible bool
	Bundles  int
	Sent     map[models.Channel]int
	Failures []DeliveryFailure
}

// Dispatcher wires the evaluator, resolver, renderer and connectors together.
type Dispatcher struct {
	evaluator  *window.Evaluator
	resolver   *audience.Resolver
	engine     render.Engine
	connectors ConnectorFactory
	store      Store
	locker     Locker
	clock      window.Clock
	poolSize   int
	log        logger.Logger
}

type Config struct {
	Evaluator  *window.Evaluator
	Resolver   *audience.Resolver
	Engine     render.Engine
	Connectors ConnectorFactory
	Store      Store
	Locker     Locker
	Clock      window.Clock
	PoolSize   int
	Logger     logger.Logger
}

func New(cfg Config) *Dispatcher {
	if cfg.Clock == nil {
		cfg.Clock = window.SystemClock{}
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 8
	}
	return &Dispatcher{
		evaluator:  cfg.Evaluator,
		resolver:   cfg.Resolver,
		engine:     cfg.Engine,
		connectors: cfg.Connectors,
		store:      cfg.Store,
		locker:     cfg.Locker,
		clock:      cfg.Clock,
		poolSize:   cfg.PoolSize,
		log:        cfg.Logger,
	}
}

// Dispatch runs one schedule against one root entity.
func (d *Dispatcher) Dispatch(ctx context.Context, s *models.Schedule, root models.Root) (*BatchResult, error) {
	log := d.log.WithFields(map[string]interface{}{
		"scheduleId":  s.ID,
		"schedule":    s.Name,
		"triggerType": string(s.TriggerType),
	})

	if err := root.Validate(s.TriggerType); err != nil {
		return nil, stderrors.NewTriggerMismatchError(string(s.TriggerType), err.Error())
	}

	if s.Template == nil || !s.HasConnector() {
		log.Debug("schedule is inert, skipping", nil)
		return &BatchResult{}, nil
	}

	release, acquired, err := d.locker.Acquire(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		log.Info("dispatch lock held elsewhere, skipping", nil)
		metrics.DispatchesTotal.WithLabelValues(string(s.TriggerType), "lock_held").Inc()
		return &BatchResult{Skipped: true}, nil
	}
	defer release()

	started := d.clock.Now()
	result, err := d.run(ctx, log, s, root)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else if !result.Eligible {
		outcome = "ineligible"
	}
	metrics.DispatchesTotal.WithLabelValues(string(s.TriggerType), outcome).Inc()
	metrics.DispatchDuration.WithLabelValues(string(s.TriggerType)).Observe(d.clock.Now().Sub(started).Seconds())
	return result, err
}

func (d *Dispatcher) run(ctx context.Context, log logger.Logger, s *models.Schedule, root models.Root) (*BatchResult, error) {
	decision, err := d.evaluator.Evaluate(s, root)
	if err != nil {
		return nil, err
	}

	if decision.ShouldDeactivate {
		if err := d.deactivate(ctx, log, s); err != nil {
			return nil, err
		}
	}
	if !decision.Eligible {
		log.Debug("schedule outside notification window", nil)
		return &BatchResult{}, nil
	}

	bundles, err := d.resolver.Resolve(ctx, s, root)
	if err != nil {
		return nil, err
	}
	metrics.AudienceSize.WithLabelValues(string(s.TriggerType)).Observe(float64(len(bundles)))

	result := &BatchResult{
		Eligible: true,
		Bundles:  len(bundles),
		Sent:     make(map[models.Channel]int),
	}
	if len(bundles) == 0 {
		log.Debug("resolved audience is empty", nil)
		return result, nil
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	// Channels fan out concurrently; each runs its own bounded recipient pool.
	for _, conn := range d.connectors.ForSchedule(s) {
		wg.Add(1)
		go func(conn channels.Connector) {
			defer wg.Done()
			sent, failures := d.deliverChannel(ctx, s, conn, bundles)

			mu.Lock()
			result.Sent[conn.Channel()] = sent
			result.Failures = append(result.Failures, failures...)
			mu.Unlock()

			if sent > 0 {
				now := d.clock.Now()
				if err := d.store.SetLastSentAt(ctx, s.ID, now); err != nil {
					log.WithError(err).Error("failed to update last sent timestamp", nil)
				} else {
					mu.Lock()
					s.LastSentAt = &now
					mu.Unlock()
				}
			}
		}(conn)
	}
	wg.Wait()

	anySent := false
	for _, n := range result.Sent {
		if n > 0 {
			anySent = true
			break
		}
	}

	// A one-shot schedule retires after its first successful send.
	if anySent && !s.Recurring {
		if err := d.deactivate(ctx, log, s); err != nil {
			log.WithError(err).Error("failed to retire one-shot schedule", nil)
		}
	}

	log.Info("dispatch complete", map[string]interface{}{
		"bundles":  result.Bundles,
		"failures": len(result.Failures),
	})

	// Surface an aggregated error only when a channel with recipients had
	// zero successes; partial failure is reported in the result alone.
	for ch, sent := range result.Sent {
		if sent == 0 && channelHadFailures(result.Failures, ch) {
			return result, fmt.Errorf("channel %s failed for all %d recipients", ch, result.Bundles)
		}
	}

	return result, nil
}

// deliverChannel fans the bundles out to one connector on a bounded pool.
func (d *Dispatcher) deliverChannel(ctx context.Context, s *models.Schedule, conn channels.Connector, bundles []models.ContextBundle) (int, []DeliveryFailure) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		sent     int
		failures []DeliveryFailure
	)

	sem := make(chan struct{}, d.poolSize)
	for _, bundle := range bundles {
		wg.Add(1)
		sem <- struct{}{}
		go func(bundle models.ContextBundle) {
			defer wg.Done()
			defer func() { <-sem }()

			err := d.deliverOne(ctx, s, conn, bundle)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, DeliveryFailure{
					Channel:     conn.Channel(),
					RecipientID: bundle.Recipient.ID,
					Err:         err,
				})
				metrics.DeliveriesTotal.WithLabelValues(string(conn.Channel()), "failed").Inc()
				return
			}
			sent++
			metrics.DeliveriesTotal.WithLabelValues(string(conn.Channel()), "sent").Inc()
		}(bundle)
	}
	wg.Wait()

	return sent, failures
}

// deliverOne renders and sends one recipient's message and records the audit
// row on success.
func (d *Dispatcher) deliverOne(ctx context.Context, s *models.Schedule, conn channels.Connector, bundle models.ContextBundle) error {
	resolved := render.ResolveContext(s.Template, bundle)

	body, err := d.engine.Render(s.Template.Template.Ref, resolved)
	if err != nil {
		return err
	}

	msg := channels.Message{
		Subject: subjectFrom(resolved),
		Body:    body,
		HTML:    s.Template.Template.HTML,
	}
	if err := conn.Send(ctx, bundle.Recipient, msg); err != nil {
		return err
	}

	n := &models.Notification{
		ID:          uuid.New().String(),
		TemplateID:  s.Template.ID,
		ScheduleID:  s.ID,
		RecipientID: bundle.Recipient.ID,
		Channel:     conn.Channel(),
		Connector:   conn.Name(),
		CreatedAt:   d.clock.Now(),
	}
	if err := d.store.CreateNotification(ctx, n); err != nil {
		// The message is out; a failed audit write must not count the
		// delivery as failed.
		d.log.WithError(err).Error("failed to record notification", map[string]interface{}{
			"notificationId": n.ID,
			"recipientId":    n.RecipientID,
		})
	}
	return nil
}

func (d *Dispatcher) deactivate(ctx context.Context, log logger.Logger, s *models.Schedule) error {
	if err := d.store.DeactivateSchedule(ctx, s.ID); err != nil {
		return err
	}
	if s.Active {
		s.Active = false
		metrics.SchedulesDeactivated.Inc()
		log.Info("schedule deactivated", nil)
	}
	return nil
}

// subjectFrom picks the conventional subject key out of the resolved context.
func subjectFrom(resolved map[string]interface{}) string {
	for _, key := range []string{"email_subject", "subject"} {
		if v, ok := resolved[key]; ok {
			if str, ok := v.(string); ok {
				return str
			}
		}
	}
	return ""
}

func channelHadFailures(failures []DeliveryFailure, ch models.Channel) bool {
	for _, f := range failures {
		if f.Channel == ch {
			return true
		}
	}
	return false
}
