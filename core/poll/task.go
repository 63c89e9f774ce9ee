// Package poll runs cancellable fixed-interval loops. Every wait in the SDK
// (funding coins, block inclusion, transient ledger retries) goes through a
// Task so that none of them can spin or outlive its context.
package poll

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/types"
)

// ErrExhausted is returned when a Task runs out of attempts without fn
// reporting completion.
var ErrExhausted = errors.New("polling attempts exhausted")

// Task describes a polling loop. Attempts <= 0 means the loop only ends when
// fn is done, fn fails or the context is cancelled.
type Task struct {
	Interval time.Duration
	Attempts int
}

// Func is one polling attempt. Returning a non-nil error stops the loop.
type Func func(ctx context.Context) (done bool, err error)

// Run calls fn immediately and then once per Interval.
func (t Task) Run(ctx context.Context, fn Func) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	attempt := 0
	for {
		attempt++
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if t.Attempts > 0 && attempt >= t.Attempts {
			return errors.Wrapf(ErrExhausted, "after %d attempts", attempt)
		}

		timer := time.NewTimer(t.Interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Retry calls fn until it succeeds, retrying only errors marked transient.
// Once the attempts are spent the last transient error is returned.
func (t Task) Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	var last error
	err := t.Run(ctx, func(ctx context.Context) (bool, error) {
		err := fn(ctx)
		if err == nil {
			return true, nil
		}
		if !types.IsTransient(err) {
			return false, err
		}
		last = err
		return false, nil
	})
	if errors.Is(err, ErrExhausted) && last != nil {
		return last
	}
	return err
}
