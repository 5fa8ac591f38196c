// Package relay moves committed outbox rows onto Pub/Sub topics.
package relay

import (
	"context"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/registry"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Outbox is the row bookkeeping the relay needs.
type Outbox interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	Pending(tx *gorm.DB) (int64, error)
}

type deadLetters interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// Sink delivers one message to a topic and waits for the broker's ack.
type Sink interface {
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

// Recorder observes relay outcomes.
type Recorder interface {
	EventRelayed(eventType, outcome string)
	Backlog(pending int64)
}

// Check is a dependency probe run before the relay starts.
type Check struct {
	Name string
	Ping func(context.Context) error
}

// Settings tune batching and retries.
type Settings struct {
	BatchSize      int
	PollInterval   time.Duration
	MaxAttempts    int
	PublishTimeout time.Duration
}

// SettingsFrom fills Settings from config, applying defaults for unset values.
func SettingsFrom(cfg config.OutboxConfig) Settings {
	s := Settings{
		BatchSize:    cfg.BatchSize,
		PollInterval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		MaxAttempts:  cfg.MaxAttempts,
	}
	return s.withDefaults()
}

func (s Settings) withDefaults() Settings {
	if s.BatchSize <= 0 {
		s.BatchSize = 50
	}
	if s.PollInterval <= 0 {
		s.PollInterval = 500 * time.Millisecond
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 10
	}
	if s.PublishTimeout <= 0 {
		s.PublishTimeout = 15 * time.Second
	}
	return s
}

type Params struct {
	Logger      *logger.Logger
	DB          txRunner
	Outbox      Outbox
	DeadLetters deadLetters
	Registry    resolver
	Sink        Sink
	Metrics     Recorder
	Checks      []Check
	Settings    Settings
}

// Relay drains outbox_events in locked batches. Several relays may run
// side by side.
type Relay struct {
	logg     *logger.Logger
	db       txRunner
	outbox   Outbox
	dlq      deadLetters
	registry resolver
	sink     Sink
	metrics  Recorder
	checks   []Check
	settings Settings
	now      func() time.Time
}

func New(p Params) (*Relay, error) {
	var missing []string
	for name, ok := range map[string]bool{
		"db":           p.DB != nil,
		"outbox":       p.Outbox != nil,
		"dead letters": p.DeadLetters != nil,
		"registry":     p.Registry != nil,
		"sink":         p.Sink != nil,
	} {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("relay: missing %v", missing)
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Relay{
		logg:     logg,
		db:       p.DB,
		outbox:   p.Outbox,
		dlq:      p.DeadLetters,
		registry: p.Registry,
		sink:     p.Sink,
		metrics:  p.Metrics,
		checks:   p.Checks,
		settings: p.Settings.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run relays until ctx is cancelled. A full batch is followed straight
// away by the next; failed batches back off.
func (r *Relay) Run(ctx context.Context) error {
	for _, c := range r.checks {
		if err := c.Ping(ctx); err != nil {
			r.logg.Error(ctx, c.Name+" not ready", err)
			return fmt.Errorf("%s not ready: %w", c.Name, err)
		}
	}

	pace := newPacer(r.settings.PollInterval)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Drain(ctx)
		if err != nil {
			r.logg.Error(ctx, "outbox batch failed", err)
		}
		if err == nil && n == r.settings.BatchSize {
			pace.reset()
			continue
		}
		if err := pace.wait(ctx, pace.next(err != nil)); err != nil {
			return err
		}
	}
}

// Drain relays one batch and returns how many rows it handled. An error
// means bookkeeping failed and the whole batch was rolled back.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	var handled int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.outbox.FetchUnpublishedForPublish(tx, r.settings.BatchSize, r.settings.MaxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox rows: %w", err)
		}
		for _, row := range rows {
			if err := r.relayOne(ctx, tx, row); err != nil {
				return err
			}
		}
		handled = len(rows)
		if handled > 0 && r.metrics != nil {
			if pending, err := r.outbox.Pending(tx); err == nil {
				r.metrics.Backlog(pending)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return handled, nil
}

func (r *Relay) relayOne(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	resolved, err := r.registry.Resolve(row)
	if err == nil {
		err = r.send(ctx, row, resolved)
	}
	attempt := row.AttemptCount + 1
	v, reason := judge(err, attempt, r.settings.MaxAttempts)
	if reason == enums.OutboxDLQReasonMaxAttempts {
		err = exhausted(err, attempt)
	}

	logCtx := r.logg.WithFields(ctx, rowFields(row, resolved, attempt))
	r.record(row.EventType, v)

	switch v {
	case delivered:
		if err := r.outbox.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		r.logg.Debug(logCtx, "outbox event relayed")
	case retryLater:
		r.logg.Warn(r.logg.WithField(logCtx, "error", err.Error()), "outbox event will be retried")
		if err := r.outbox.MarkFailedTx(tx, row.ID, err); err != nil {
			return fmt.Errorf("mark %s failed: %w", row.ID, err)
		}
	case deadLetter:
		r.logg.Warn(r.logg.WithFields(logCtx, map[string]any{
			"error":        err.Error(),
			"error_reason": reason,
		}), "outbox event dead-lettered")
		if err := r.park(tx, row, reason, err); err != nil {
			return err
		}
	}
	return nil
}

func (r *Relay) send(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	sendCtx, cancel := context.WithTimeout(ctx, r.settings.PublishTimeout)
	defer cancel()
	return r.sink.Send(sendCtx, resolved.Topic, message(row, resolved))
}

func (r *Relay) park(tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	msg := cause.Error()
	err := r.dlq.InsertTx(tx, models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      r.now(),
	})
	if err != nil {
		return fmt.Errorf("dead-letter %s: %w", row.ID, err)
	}
	if err := r.outbox.MarkTerminalTx(tx, row.ID, cause, r.settings.MaxAttempts); err != nil {
		return fmt.Errorf("park %s: %w", row.ID, err)
	}
	return nil
}

func (r *Relay) record(eventType enums.OutboxEventType, v verdict) {
	if r.metrics != nil {
		r.metrics.EventRelayed(string(eventType), v.String())
	}
}

func message(row models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}

func rowFields(row models.OutboxEvent, resolved *registry.ResolvedEvent, attempt int) map[string]any {
	fields := map[string]any{
		"outbox_id":    row.ID.String(),
		"event_type":   row.EventType,
		"aggregate_id": row.AggregateID.String(),
		"attempt":      attempt,
	}
	if resolved != nil {
		fields["event_id"] = resolved.Envelope.EventID
		fields["topic"] = resolved.Topic
	}
	return fields
}
