package replica

import (
	"context"
	"math/rand/v2"
	"time"
)

const jitterScale = 2

// gossipTicker paces gossip rounds. It fires about every base interval,
// spread by ±percent so replicas started together drift apart, and fires
// at once whenever dirty is signalled. Either way the next wait is drawn
// afresh from the firing moment.
type gossipTicker struct {
	C    <-chan time.Time
	stop context.CancelFunc
}

func newGossipTicker(ctx context.Context, base time.Duration, percent float64, dirty <-chan struct{}) *gossipTicker {
	ch := make(chan time.Time)
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(ch)

		wait := time.NewTimer(jitter(base, percent))
		defer wait.Stop()

		fire := func(at time.Time) bool {
			select {
			case <-ctx.Done():
				return false
			case ch <- at:
			}
			wait.Reset(jitter(base, percent))
			return true
		}

		for {
			var at time.Time
			select {
			case <-ctx.Done():
				return
			case <-dirty:
				wait.Stop()
				at = time.Now()
			case at = <-wait.C:
			}
			if !fire(at) {
				return
			}
		}
	}()

	return &gossipTicker{C: ch, stop: cancel}
}

func (t *gossipTicker) Stop() {
	t.stop()
}

// jitter returns d moved by a uniform offset in [-d*percent, +d*percent].
func jitter(d time.Duration, percent float64) time.Duration {
	spread := time.Duration(float64(d) * percent)
	if spread <= 0 {
		return d
	}
	return d - spread + time.Duration(rand.N(int64(spread)*jitterScale+1)) //nolint:gosec
}
