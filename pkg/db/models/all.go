package models

import "github.com/shopspring/decimal"

func init() {
	// Money fields serialize as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// All lists every persisted model in dependency order.
func All() []any {
	return []any{&User{}, &Tour{}, &Review{}, &Booking{}, &OutboxEvent{}, &OutboxDLQ{}}
}
