package writer

import (
	cbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/tourbook-backend/pkg/bigquery"
)

// BookingEventsTable describes the table types.BookingEventRow is written
// to, partitioned by day on occurred_at.
func BookingEventsTable(name string) bigquery.TableSpec {
	required := func(name string, t cbigquery.FieldType) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: name, Type: t, Required: true}
	}
	nullable := func(name string, t cbigquery.FieldType) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: name, Type: t}
	}
	return bigquery.TableSpec{
		Name: name,
		Schema: cbigquery.Schema{
			required("event_id", cbigquery.StringFieldType),
			required("event_type", cbigquery.StringFieldType),
			required("occurred_at", cbigquery.TimestampFieldType),
			required("booking_id", cbigquery.StringFieldType),
			required("tour_id", cbigquery.StringFieldType),
			required("user_id", cbigquery.StringFieldType),
			nullable("actor_id", cbigquery.StringFieldType),
			nullable("price", cbigquery.NumericFieldType),
			nullable("currency", cbigquery.StringFieldType),
			nullable("paid", cbigquery.BooleanFieldType),
			nullable("source", cbigquery.StringFieldType),
			nullable("cancel_policy", cbigquery.StringFieldType),
			required("booking_delta", cbigquery.IntegerFieldType),
			nullable("payload", cbigquery.JSONFieldType),
			required("ingested_at", cbigquery.TimestampFieldType),
		},
		PartitionField: "occurred_at",
	}
}
