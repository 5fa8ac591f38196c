package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourbook-backend/internal/analytics/types"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/payloads"
)

func TestRouterUnsupportedEvent(t *testing.T) {
	router, _ := newTestRouter(t)
	env := types.Envelope{
		EventType: enums.OutboxEventType("tour_archived"),
		Payload:   []byte(`{"foo":"bar"}`),
	}
	err := router.Handle(context.Background(), env)
	if !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestRouterRejectsEmptyPayload(t *testing.T) {
	router, writer := newTestRouter(t)
	err := router.Handle(context.Background(), types.Envelope{EventType: enums.EventBookingCreated})
	if err == nil {
		t.Fatalf("expected error for empty payload")
	}
	if len(writer.inserted) != 0 {
		t.Fatalf("nothing should be written")
	}
}

func TestRouterRoutesToOverride(t *testing.T) {
	handler := &stubHandler{}
	router, _ := newTestRouter(t, WithHandler(enums.EventBookingCancelled, handler))
	data, _ := json.Marshal(payloads.BookingCancelledEvent{BookingID: uuid.New(), Policy: "marker"})
	env := types.Envelope{EventType: enums.EventBookingCancelled, Version: 1, Payload: data}

	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handler.called {
		t.Fatalf("handler not invoked")
	}
	if _, ok := handler.payload.(*payloads.BookingCancelledEvent); !ok {
		t.Fatalf("unexpected payload type %T", handler.payload)
	}
}

func TestBookingCreatedRow(t *testing.T) {
	router, writer := newTestRouter(t)
	event := payloads.BookingCreatedEvent{
		BookingID: uuid.New(),
		TourID:    uuid.New(),
		UserID:    uuid.New(),
		Price:     decimal.RequireFromString("1497.5"),
		Currency:  "usd",
		Paid:      true,
		Source:    "checkout",
	}
	data, _ := json.Marshal(event)
	occurred := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	env := types.Envelope{
		EventID:    "evt-1",
		EventType:  enums.EventBookingCreated,
		OccurredAt: occurred,
		ActorID:    event.UserID.String(),
		Payload:    data,
	}

	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.inserted) != 1 {
		t.Fatalf("expected one row, got %d", len(writer.inserted))
	}
	row := writer.inserted[0]
	if row.EventID != "evt-1" || row.EventType != "booking_created" || !row.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected envelope fields %+v", row)
	}
	if row.BookingID != event.BookingID.String() || row.TourID != event.TourID.String() {
		t.Fatalf("unexpected ids %+v", row)
	}
	if row.Price.StringVal != "1497.50" || row.Currency.StringVal != "usd" {
		t.Fatalf("unexpected price %+v %+v", row.Price, row.Currency)
	}
	if !row.Paid.Valid || !row.Paid.Bool || row.Delta != 1 {
		t.Fatalf("unexpected paid/delta %+v %d", row.Paid, row.Delta)
	}
	if row.Policy.Valid {
		t.Fatalf("created rows carry no cancel policy")
	}
	if !row.Payload.Valid {
		t.Fatalf("payload json missing")
	}
}

func TestBookingCancelledRow(t *testing.T) {
	router, writer := newTestRouter(t)
	event := payloads.BookingCancelledEvent{
		BookingID: uuid.New(),
		TourID:    uuid.New(),
		UserID:    uuid.New(),
		Price:     decimal.NewFromInt(497),
		Policy:    "delete",
	}
	data, _ := json.Marshal(event)

	err := router.Handle(context.Background(), types.Envelope{EventID: "evt-2", EventType: enums.EventBookingCancelled, Payload: data})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := writer.inserted[0]
	if row.Delta != -1 || row.Policy.StringVal != "delete" || row.Paid.Valid {
		t.Fatalf("unexpected cancel row %+v", row)
	}
	if row.ActorID.Valid {
		t.Fatalf("blank actor must be NULL")
	}
}

func TestRouterPropagatesWriterError(t *testing.T) {
	router, writer := newTestRouter(t)
	writer.err = errors.New("bigquery down")
	data, _ := json.Marshal(payloads.BookingCreatedEvent{BookingID: uuid.New()})

	err := router.Handle(context.Background(), types.Envelope{EventType: enums.EventBookingCreated, Payload: data})
	if !errors.Is(err, writer.err) {
		t.Fatalf("expected writer error, got %v", err)
	}
}

func TestNewRejectsUnknownOverride(t *testing.T) {
	_, err := New(&fakeWriter{}, WithHandler("tour_archived", &stubHandler{}))
	if !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
	if _, err := New(&fakeWriter{}, WithHandler(enums.EventBookingCreated, nil)); err == nil {
		t.Fatalf("expected error for nil handler")
	}
	if _, err := New(nil); err == nil {
		t.Fatalf("expected error without writer")
	}
}

func newTestRouter(t *testing.T, opts ...Option) (*Router, *fakeWriter) {
	t.Helper()
	writer := &fakeWriter{}
	opts = append(opts, WithLogger(logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})))
	router, err := New(writer, opts...)
	if err != nil {
		t.Fatalf("construct router: %v", err)
	}
	return router, writer
}

type stubHandler struct {
	called  bool
	payload any
}

func (s *stubHandler) Handle(_ context.Context, _ types.Envelope, payload any) error {
	s.called = true
	s.payload = payload
	return nil
}

type fakeWriter struct {
	inserted []types.BookingEventRow
	err      error
}

func (f *fakeWriter) InsertBooking(_ context.Context, row types.BookingEventRow) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, row)
	return nil
}
