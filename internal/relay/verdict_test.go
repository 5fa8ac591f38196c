package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/registry"
)

func TestJudge(t *testing.T) {
	transient := errors.New("unavailable")
	cases := []struct {
		name    string
		err     error
		attempt int
		want    verdict
		reason  enums.OutboxDLQErrorReason
	}{
		{"ok", nil, 1, delivered, ""},
		{"transient", transient, 1, retryLater, ""},
		{"transient last attempt", transient, 5, deadLetter, enums.OutboxDLQReasonMaxAttempts},
		{"permanent", registry.NewNonRetryableError(transient), 1, deadLetter, enums.OutboxDLQReasonNonRetryable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, reason := judge(tc.err, tc.attempt, 5)
			assert.Equal(t, tc.want, v)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestPacerBacksOffAndResets(t *testing.T) {
	p := newPacer(time.Second)
	within := func(d, base time.Duration) {
		t.Helper()
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+jitterWindow)
	}
	within(p.next(true), 2*time.Second)
	within(p.next(true), 4*time.Second)
	within(p.next(true), 8*time.Second)
	within(p.next(true), maxBackoff)
	within(p.next(false), time.Second)
	within(p.next(true), 2*time.Second)
}

func TestPacerWaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, newPacer(time.Second).wait(ctx, time.Hour), context.Canceled)
}

func TestSinkWithoutPublisherIsPermanent(t *testing.T) {
	sink := NewPubSubSink(nil)
	err := sink.Send(context.Background(), "bookings", nil)
	var permanent registry.NonRetryableError
	assert.ErrorAs(t, err, &permanent)
	sink.Stop()
}
