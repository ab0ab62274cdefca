// Package loop runs a task repeatedly until it breaks or the context is done.
package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells Start what to do after a task.
//
// The zero value continues without interval.
type Next struct {
	err      error
	quit     bool
	interval time.Duration
}

func (n Next) String() string {
	switch {
	case n.err != nil:
		return fmt.Sprintf("[break] with error: %v", n.err)
	case n.quit:
		return "[break] without error"
	default:
		return fmt.Sprintf("[continue] interval: %s", n.interval)
	}
}

// Continue runs the task again after interval.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// Break stops the loop. err can be nil.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task is a step of a loop.
//
// It receives the value returned at the last step, and returns the value for the next step.
type Task[T any] func(context.Context, T) (T, Next)

// Start runs task in loop, starting with init.
//
// # Args
//
// - ctx: when it is done, the loop stops with ctx.Err().
//
// - init: the value passed to the first step.
//
// - task: the step.
//
// - options: per step options.
//
// # Returns
//
// - T: the value returned at the last step. It is returned with errors, too.
//
// - error: the error passed to Break, or ctx.Err().
func Start[T any](ctx context.Context, init T, task Task[T], options ...Option) (T, error) {
	if err := ctx.Err(); err != nil {
		return init, err
	}

	value := init
	for {
		v, next := step(ctx, value, task, options)
		value = v
		if next.err != nil {
			return value, next.err
		}
		if next.quit {
			return value, nil
		}

		timer := time.NewTimer(next.interval)
		select {
		case <-ctx.Done():
			// shutting down precedes the next step.
			timer.Stop()
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}

func step[T any](ctx context.Context, value T, task Task[T], options []Option) (T, Next) {
	c := &stepConfig{ctx: ctx}
	for _, opt := range options {
		c = opt(c)
	}
	if c.deferred != nil {
		defer c.deferred()
	}
	return task(c.ctx, value)
}

type stepConfig struct {
	ctx      context.Context
	deferred func()
}

type Option func(*stepConfig) *stepConfig

// WithTimeout sets timeout to the context passed to each step.
func WithTimeout(d time.Duration) Option {
	return func(c *stepConfig) *stepConfig {
		ctx, cancel := context.WithTimeout(c.ctx, d)
		return &stepConfig{
			ctx: ctx,
			deferred: func() {
				cancel()
				if c.deferred != nil {
					c.deferred()
				}
			},
		}
	}
}
