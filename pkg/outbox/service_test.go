package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
)

func TestEmitWritesEnvelope(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	bookingID := uuid.New()
	actor := &ActorRef{UserID: uuid.New(), Role: "admin"}
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventBookingCreated,
			AggregateType: enums.AggregateBooking,
			AggregateID:   bookingID,
			Actor:         actor,
			Data:          map[string]any{"booking_id": bookingID},
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, db.Take(&row).Error)
	assert.Equal(t, bookingID, row.AggregateID)
	assert.Nil(t, row.PublishedAt)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &env))
	assert.Equal(t, row.ID.String(), env.EventID)
	assert.Equal(t, CurrentVersion, env.Version)
	assert.True(t, env.OccurredAt.Equal(fixed))
	require.NotNil(t, env.Actor)
	assert.Equal(t, actor.UserID, env.Actor.UserID)
	assert.Contains(t, string(env.Data), bookingID.String())
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)

	boom := errors.New("booking insert failed")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventBookingCancelled,
			AggregateType: enums.AggregateBooking,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	pending, err := NewRepository(db).Pending(nil)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestEmitRejectsUnknownTypes(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)

	err := svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.OutboxEventType("tour_archived"),
		AggregateType: enums.AggregateBooking,
		AggregateID:   uuid.New(),
	})
	assert.Error(t, err)

	err = svc.Emit(context.Background(), nil, DomainEvent{})
	assert.Error(t, err)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	first := models.OutboxEvent{
		EventType:     enums.EventBookingCreated,
		AggregateType: enums.AggregateBooking,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	second := first
	second.AggregateID = uuid.New()
	require.NoError(t, repo.Insert(db, first))
	require.NoError(t, repo.Insert(db, second))

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, repo.MarkPublishedTx(db, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(db, rows[1].ID, errors.New("pubsub unavailable")))

	rows, err = repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	assert.Equal(t, "pubsub unavailable", *rows[0].LastError)

	require.NoError(t, repo.MarkTerminalTx(db, rows[0].ID, errors.New("bad payload"), 3))
	rows, err = repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)

	pending, err := repo.Pending(nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)
}

func deadLetter(t *testing.T, db *gorm.DB, row models.OutboxEvent, msg string) {
	t.Helper()
	require.NoError(t, NewDLQRepository(db).InsertTx(db, models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
	}))
}

func TestDLQInsertTruncatesMessage(t *testing.T) {
	db := dbtest.Open(t)
	row := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventBookingCreated, AggregateType: enums.AggregateBooking, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	deadLetter(t, db, row, strings.Repeat("x", maxDLQErrorLen+50))

	var letter models.OutboxDLQ
	require.NoError(t, db.Take(&letter).Error)
	require.NotNil(t, letter.ErrorMessage)
	assert.Len(t, *letter.ErrorMessage, maxDLQErrorLen)
	assert.False(t, letter.FailedAt.IsZero())
}

func TestRequeueResetsParkedRow(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	row := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventBookingCreated, AggregateType: enums.AggregateBooking, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	require.NoError(t, repo.Insert(db, row))
	require.NoError(t, repo.MarkTerminalTx(db, row.ID, errors.New("topic missing"), 5))
	deadLetter(t, db, row, "topic missing")

	n, err := NewDLQRepository(db).Requeue(context.Background(), row.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Zero(t, rows[0].AttemptCount)
	assert.Nil(t, rows[0].LastError)

	var letters int64
	require.NoError(t, db.Model(&models.OutboxDLQ{}).Count(&letters).Error)
	assert.Zero(t, letters)
}

func TestRequeueRebuildsMissingRow(t *testing.T) {
	db := dbtest.Open(t)
	row := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventBookingCancelled, AggregateType: enums.AggregateBooking, AggregateID: uuid.New(), Payload: json.RawMessage(`{"version":1}`)}
	deadLetter(t, db, row, "gone")

	_, err := NewDLQRepository(db).Requeue(context.Background(), row.ID)
	require.NoError(t, err)

	var rebuilt models.OutboxEvent
	require.NoError(t, db.Take(&rebuilt, "id = ?", row.ID).Error)
	assert.Equal(t, row.AggregateID, rebuilt.AggregateID)
	assert.JSONEq(t, `{"version":1}`, string(rebuilt.Payload))
}

func TestRequeueUnknownEventChangesNothing(t *testing.T) {
	db := dbtest.Open(t)
	row := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventBookingCreated, AggregateType: enums.AggregateBooking, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	deadLetter(t, db, row, "boom")

	_, err := NewDLQRepository(db).Requeue(context.Background(), row.ID, uuid.New())
	require.ErrorIs(t, err, ErrNotDeadLettered)

	var letters int64
	require.NoError(t, db.Model(&models.OutboxDLQ{}).Count(&letters).Error)
	assert.EqualValues(t, 1, letters)
}

func TestEmitTakesActorFromContext(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)

	userID := uuid.New()
	ctx := WithActor(context.Background(), ActorRef{UserID: userID, Role: "lead-guide"})
	require.NoError(t, svc.Emit(ctx, db, DomainEvent{
		EventType:     enums.EventBookingCancelled,
		AggregateType: enums.AggregateBooking,
		AggregateID:   uuid.New(),
		Data:          struct{}{},
	}))

	var row models.OutboxEvent
	require.NoError(t, db.Take(&row).Error)
	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &env))
	require.NotNil(t, env.Actor)
	assert.Equal(t, userID, env.Actor.UserID)
	assert.Equal(t, "lead-guide", env.Actor.Role)

	assert.Nil(t, ActorFromContext(context.Background()))
}
