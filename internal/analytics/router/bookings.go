package router

import (
	"context"
	"fmt"
	"strings"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/tourbook-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/tourbook-backend/internal/analytics/writer"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/payloads"
)

// rowHandler turns one payload type into a booking_events row.
type rowHandler[T any] struct {
	writer Writer
	logg   *logger.Logger
	fill   func(event *T, row *types.BookingEventRow) map[string]any
}

func (h *rowHandler[T]) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*T)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", envelope.EventType, payload)
	}
	data, err := analyticswriter.JSONColumn(event)
	if err != nil {
		return fmt.Errorf("%s: encode payload column: %w", envelope.EventType, err)
	}
	row := types.BookingEventRow{
		EventID:    envelope.EventID,
		EventType:  string(envelope.EventType),
		OccurredAt: envelope.OccurredAt,
		ActorID:    nullString(envelope.ActorID),
		Payload:    data,
	}
	ctx = h.logg.WithFields(ctx, h.fill(event, &row))

	if err := h.writer.InsertBooking(ctx, row); err != nil {
		return err
	}
	h.logg.Debug(ctx, "booking event recorded")
	return nil
}

func bookingCreated(event *payloads.BookingCreatedEvent, row *types.BookingEventRow) map[string]any {
	row.BookingID = event.BookingID.String()
	row.TourID = event.TourID.String()
	row.UserID = event.UserID.String()
	row.Price = nullString(event.Price.StringFixed(2))
	row.Currency = nullString(event.Currency)
	row.Paid = cbigquery.NullBool{Bool: event.Paid, Valid: true}
	row.Source = nullString(event.Source)
	row.Delta = 1
	return map[string]any{"booking_id": row.BookingID, "source": event.Source}
}

func bookingCancelled(event *payloads.BookingCancelledEvent, row *types.BookingEventRow) map[string]any {
	row.BookingID = event.BookingID.String()
	row.TourID = event.TourID.String()
	row.UserID = event.UserID.String()
	row.Price = nullString(event.Price.StringFixed(2))
	row.Policy = nullString(event.Policy)
	row.Delta = -1
	return map[string]any{"booking_id": row.BookingID, "policy": event.Policy}
}

// nullString maps blank input to NULL.
func nullString(value string) cbigquery.NullString {
	trimmed := strings.TrimSpace(value)
	return cbigquery.NullString{StringVal: trimmed, Valid: trimmed != ""}
}
