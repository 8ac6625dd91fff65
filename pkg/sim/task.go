package sim

import (
	"context"
	"time"
)

// Task is a cancellable repeating job. After Stop returns and Done is
// closed, fn is never called again.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Repeat calls fn after each delay returned by next, until ctx ends or Stop
// is called. next is consulted before every wait, so delays may vary.
func Repeat(ctx context.Context, next func() time.Duration, fn func()) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		for {
			timer := time.NewTimer(next())
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			if ctx.Err() != nil {
				return
			}
			fn()
		}
	}()
	return t
}

// Every calls fn immediately and then once per interval.
func Every(ctx context.Context, interval time.Duration, fn func()) *Task {
	first := true
	return Repeat(ctx, func() time.Duration {
		if first {
			first = false
			return 0
		}
		return interval
	}, fn)
}

func (t *Task) Stop() {
	t.cancel()
}

// Done is closed once the task goroutine has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Close stops the task and waits for it to exit.
func (t *Task) Close() {
	t.Stop()
	<-t.done
}
