package enums

import (
	"fmt"
	"strings"
)

// BookingActiveMarker is the value of Booking.Active for a current booking.
const BookingActiveMarker = "yes"

// BookingCancelledPrefix starts every generated cancellation marker.
const BookingCancelledPrefix = "no__"

// CancelPolicy controls what cancelling a booking does to its row.
type CancelPolicy string

const (
	// CancelPolicyMarker keeps the row and swaps the active marker for a
	// unique cancellation token.
	CancelPolicyMarker CancelPolicy = "marker"
	// CancelPolicyDelete removes the row.
	CancelPolicyDelete CancelPolicy = "delete"
)

func (p CancelPolicy) String() string {
	return string(p)
}

func (p CancelPolicy) IsValid() bool {
	return p == CancelPolicyMarker || p == CancelPolicyDelete
}

// ParseCancelPolicy defaults to the marker policy when value is empty.
func ParseCancelPolicy(value string) (CancelPolicy, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return CancelPolicyMarker, nil
	}
	if p := CancelPolicy(value); p.IsValid() {
		return p, nil
	}
	return "", fmt.Errorf("invalid booking cancel policy %q", value)
}
