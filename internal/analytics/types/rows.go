package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// BookingEventRow mirrors the booking_events BigQuery schema. Price is a
// NUMERIC column carried as a decimal string. Delta is +1 for a created
// booking and -1 for a cancelled one so SUM gives live bookings.
type BookingEventRow struct {
	EventID    string               `bigquery:"event_id"`
	EventType  string               `bigquery:"event_type"`
	OccurredAt time.Time            `bigquery:"occurred_at"`
	BookingID  string               `bigquery:"booking_id"`
	TourID     string               `bigquery:"tour_id"`
	UserID     string               `bigquery:"user_id"`
	ActorID    cbigquery.NullString `bigquery:"actor_id"`
	Price      cbigquery.NullString `bigquery:"price"`
	Currency   cbigquery.NullString `bigquery:"currency"`
	Paid       cbigquery.NullBool   `bigquery:"paid"`
	Source     cbigquery.NullString `bigquery:"source"`
	Policy     cbigquery.NullString `bigquery:"cancel_policy"`
	Delta      int64                `bigquery:"booking_delta"`
	Payload    cbigquery.NullJSON   `bigquery:"payload"`
	IngestedAt time.Time            `bigquery:"ingested_at"`
}
