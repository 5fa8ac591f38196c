package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingCreatedEvent is emitted when a booking row is written, either by
// staff or by checkout fulfilment.
type BookingCreatedEvent struct {
	BookingID uuid.UUID       `json:"booking_id"`
	TourID    uuid.UUID       `json:"tour_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Paid      bool            `json:"paid"`
	Source    string          `json:"source"`
	SessionID string          `json:"checkout_session_id,omitempty"`
}

// BookingCancelledEvent is emitted when a live booking is cancelled.
type BookingCancelledEvent struct {
	BookingID   uuid.UUID       `json:"booking_id"`
	TourID      uuid.UUID       `json:"tour_id"`
	UserID      uuid.UUID       `json:"user_id"`
	Price       decimal.Decimal `json:"price"`
	Policy      string          `json:"policy"`
	CancelledBy *uuid.UUID      `json:"cancelled_by,omitempty"`
}
