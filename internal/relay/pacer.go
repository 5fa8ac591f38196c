package relay

import (
	"context"
	"math/rand"
	"time"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// pacer spaces out polls. Idle polls wait the base interval; consecutive
// failures double the wait up to maxBackoff.
type pacer struct {
	base    time.Duration
	current time.Duration
	rng     *rand.Rand
}

func newPacer(base time.Duration) *pacer {
	return &pacer{base: base, current: base, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (p *pacer) reset() {
	p.current = p.base
}

func (p *pacer) next(failed bool) time.Duration {
	if !failed {
		p.reset()
		return p.jittered(p.base)
	}
	p.current *= 2
	if p.current > maxBackoff || p.current <= 0 {
		p.current = maxBackoff
	}
	return p.jittered(p.current)
}

func (p *pacer) jittered(d time.Duration) time.Duration {
	return d + time.Duration(p.rng.Int63n(int64(jitterWindow)))
}

func (p *pacer) wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
