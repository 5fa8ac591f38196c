package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/angelmondragon/tourbook-backend/internal/resource"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tourbook-backend/pkg/query"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sources label how a booking came to exist.
const (
	SourceAdmin    = "admin"
	SourceCheckout = "checkout"
)

// Recorder counts created bookings.
type Recorder interface {
	BookingCreated(source string)
}

// EventEmitter queues booking events inside the caller's transaction.
type EventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams bundles the dependencies of the bookings service. Events is
// optional; without it no booking events are queued.
type ServiceParams struct {
	DB        *gorm.DB
	Policy    enums.CancelPolicy
	Checkout  CheckoutClient
	PublicURL string
	Currency  string
	Metrics   Recorder
	Events    EventEmitter
}

// Service manages bookings.
type Service struct {
	db        *gorm.DB
	crud      *resource.Service[models.Booking, *models.Booking]
	policy    enums.CancelPolicy
	checkout  CheckoutClient
	publicURL string
	currency  string
	metrics   Recorder
	events    EventEmitter
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("db is required")
	}
	policy := params.Policy
	if policy == "" {
		policy = enums.CancelPolicyMarker
	}
	if !policy.IsValid() {
		return nil, errors.New("unknown booking cancel policy " + string(policy))
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		db:        params.DB,
		crud:      resource.NewService[models.Booking](params.DB, Descriptor),
		policy:    policy,
		checkout:  params.Checkout,
		publicURL: strings.TrimRight(params.PublicURL, "/"),
		currency:  currency,
		metrics:   params.Metrics,
		events:    params.Events,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return s.crud.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, params query.Params) ([]models.Booking, error) {
	return s.crud.List(ctx, nil, params)
}

// Mine returns the caller's active bookings with their tours.
func (s *Service) Mine(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	return s.crud.Find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("bookings.user_id = ?", userID).Order("bookings.created_at DESC")
	})
}

// Create records a booking on behalf of a customer. The price defaults to
// the tour's price and paid defaults to true.
func (s *Service) Create(ctx context.Context, patch resource.Patch) (*models.Booking, error) {
	rec := &models.Booking{Paid: true}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tourID, err := peekID(patch, "tourId")
		if err != nil {
			return err
		}
		if tourID != uuid.Nil {
			tour, err := loadTour(ctx, tx, tourID)
			if err != nil {
				return err
			}
			rec.Price = tour.Price
		}
		userID, err := peekID(patch, "userId")
		if err != nil {
			return err
		}
		if userID != uuid.Nil {
			if err := requireUser(ctx, tx, userID); err != nil {
				return err
			}
		}
		if _, err = s.crud.Using(tx).CreateFrom(ctx, rec, patch); err != nil {
			return err
		}
		return s.emitCreated(ctx, tx, rec, SourceAdmin, "")
	})
	if err != nil {
		return nil, err
	}
	s.recordCreated(SourceAdmin)
	return s.crud.Get(ctx, rec.ID)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, patch resource.Patch) (*models.Booking, error) {
	return s.crud.Update(ctx, id, patch)
}

// Cancel ends a booking according to the configured policy. When ownerID is
// set only that user's booking matches. Cancelling an already cancelled
// booking under the marker policy succeeds without changing it.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("id = ?", id)
		if ownerID != nil {
			q = q.Where("user_id = ?", *ownerID)
		}
		var booking models.Booking
		if err := q.Take(&booking).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return resource.NotFound(Descriptor.Name)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup booking")
		}

		if s.policy == enums.CancelPolicyDelete {
			if err := tx.Delete(&models.Booking{}, "id = ?", booking.ID).Error; err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete booking")
			}
			if !booking.IsActive() {
				return nil
			}
			return s.emitCancelled(ctx, tx, &booking)
		}

		res := tx.Model(&models.Booking{}).
			Where("id = ?", booking.ID).
			Where(ActiveScope).
			Update("active", enums.BookingCancelledPrefix+uuid.NewString())
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "cancel booking")
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return s.emitCancelled(ctx, tx, &booking)
	})
}

func (s *Service) emitCreated(ctx context.Context, tx *gorm.DB, booking *models.Booking, source, sessionID string) error {
	if s.events == nil {
		return nil
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventBookingCreated,
		AggregateType: enums.AggregateBooking,
		AggregateID:   booking.ID,
		Data: payloads.BookingCreatedEvent{
			BookingID: booking.ID,
			TourID:    booking.TourID,
			UserID:    booking.UserID,
			Price:     booking.Price,
			Currency:  s.currency,
			Paid:      booking.Paid,
			Source:    source,
			SessionID: sessionID,
		},
	})
}

func (s *Service) emitCancelled(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	if s.events == nil {
		return nil
	}
	var cancelledBy *uuid.UUID
	if actor := outbox.ActorFromContext(ctx); actor != nil {
		cancelledBy = &actor.UserID
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventBookingCancelled,
		AggregateType: enums.AggregateBooking,
		AggregateID:   booking.ID,
		Data: payloads.BookingCancelledEvent{
			BookingID:   booking.ID,
			TourID:      booking.TourID,
			UserID:      booking.UserID,
			Price:       booking.Price,
			Policy:      string(s.policy),
			CancelledBy: cancelledBy,
		},
	})
}

func (s *Service) recordCreated(source string) {
	if s.metrics != nil {
		s.metrics.BookingCreated(source)
	}
}

func peekID(patch resource.Patch, key string) (uuid.UUID, error) {
	raw, ok := patch[key]
	if !ok {
		return uuid.Nil, nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(raw, &id); err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid input data").
			WithDetails([]string{key + " must be a valid id"})
	}
	return id, nil
}

func loadTour(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Tour, error) {
	var tour models.Tour
	err := db.WithContext(ctx).
		Where("id = ? AND secret_tour = ?", id, false).
		Take(&tour).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, resource.NotFound("tour")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load tour")
	}
	return &tour, nil
}

func requireUser(ctx context.Context, db *gorm.DB, id uuid.UUID) error {
	var count int64
	err := db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND active = ?", id, true).
		Count(&count).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	if count == 0 {
		return resource.NotFound("user")
	}
	return nil
}
