package daemon

import (
	"context"
	"sync"
	"time"

	"ciphera/internal/domain"
)

// Run opens a streaming subscription and dispatches inbound envelopes to
// handler until ctx is cancelled. On any subscription error it reconnects
// with bounded exponential backoff (spec.md §4.7.3). On shutdown it closes
// the subscription normally and waits for in-flight deliveries to drain
// before returning.
func (d *Daemon) Run(ctx context.Context, handler Handler) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	bo := newBackoff()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		sub, err := d.relay.Subscribe(ctx, d.cfg.LocalID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := bo.next()
			d.log.Warn("subscribe failed, backing off", "err", err, "wait", wait)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		bo.reset()

		err = d.runOnce(ctx, sub, handler, &wg)
		_ = sub.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			wait := bo.next()
			d.log.Warn("subscription closed, reconnecting", "err", err, "wait", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// runOnce drives a single subscription until it errors or ctx is cancelled,
// spawning one goroutine per inbound envelope so a slow decrypt never stalls
// the read loop. Each goroutine is tracked in wg so Run can drain them on
// shutdown.
func (d *Daemon) runOnce(ctx context.Context, sub domain.Subscription, handler Handler, wg *sync.WaitGroup) error {
	for {
		from, to, env, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.deliver(ctx, from, to, env, handler)
		}()
	}
}
