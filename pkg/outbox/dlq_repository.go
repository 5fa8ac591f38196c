package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
)

const maxDLQErrorLen = 1024

// ErrNotDeadLettered is returned by Requeue for an unknown event id.
var ErrNotDeadLettered = errors.New("event is not dead-lettered")

// DLQRepository stores outbox events the relay gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx records entry. Long error messages are cut to maxDLQErrorLen bytes.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errNoTx
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.FailedAt.IsZero() {
		entry.FailedAt = time.Now().UTC()
	}
	if msg := entry.ErrorMessage; msg != nil && len(*msg) > maxDLQErrorLen {
		cut := (*msg)[:maxDLQErrorLen]
		entry.ErrorMessage = &cut
	}
	return tx.Create(&entry).Error
}

// Requeue hands dead-lettered events back to the relay with a fresh attempt
// budget and drops their dead letters. It stops at the first id that has no
// dead letter, leaving nothing changed.
func (r *DLQRepository) Requeue(ctx context.Context, eventIDs ...uuid.UUID) (int, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range eventIDs {
			if err := requeueOne(tx, id); err != nil {
				return fmt.Errorf("requeue %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(eventIDs), nil
}

func requeueOne(tx *gorm.DB, eventID uuid.UUID) error {
	var letter models.OutboxDLQ
	err := tx.Where("event_id = ?", eventID).Order("failed_at DESC").Take(&letter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotDeadLettered
	}
	if err != nil {
		return err
	}

	res := tx.Model(&models.OutboxEvent{}).
		Where("id = ? AND published_at IS NULL", eventID).
		Updates(map[string]any{"attempt_count": 0, "last_error": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// The original row is gone; rebuild it from the dead letter.
		if err := tx.Create(&models.OutboxEvent{
			ID:            eventID,
			EventType:     letter.EventType,
			AggregateType: letter.AggregateType,
			AggregateID:   letter.AggregateID,
			Payload:       letter.Payload,
		}).Error; err != nil {
			return err
		}
	}
	return tx.Where("event_id = ?", eventID).Delete(&models.OutboxDLQ{}).Error
}

// DeleteFailedBefore drops dead letters that failed before cutoff.
func (r *DLQRepository) DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		return 0, errNoTx
	}
	res := tx.WithContext(ctx).Where("failed_at < ?", cutoff).Delete(&models.OutboxDLQ{})
	return res.RowsAffected, res.Error
}
