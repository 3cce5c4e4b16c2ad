// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Scheduler runs a task later, on the host's execution context.
//
// Schedule must not run the task synchronously: searches call Schedule from
// inside a task to yield.
type Scheduler interface {
	Schedule(task func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(task func())

// Schedule calls f(task).
func (f SchedulerFunc) Schedule(task func()) {
	f(task)
}

// ErrLoopStopped is returned by Loop.Run after Stop.
var ErrLoopStopped = errors.New("loop stopped")

// -----------------------------------------------------------------------------
// Loop
// -----------------------------------------------------------------------------

// Loop is a single-goroutine FIFO task runner implementing Scheduler.
//
// Description:
//
//	Tasks run one at a time, in the order they were scheduled, on the
//	goroutine that called Run. A search yields by scheduling its next slice,
//	so searches sharing a Loop interleave slice by slice.
//
//	A panicking task is recovered and logged; the loop keeps running.
//
// Thread Safety: Schedule, Stop and Pending are safe for concurrent use. Run
// must be called at most once.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// NewLoop creates an idle loop. Call Run to start draining tasks.
func NewLoop() *Loop {
	return NewLoopWithLogger(nil)
}

// NewLoopWithLogger creates an idle loop that reports recovered panics to
// logger. A nil logger uses slog.Default().
func NewLoopWithLogger(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Schedule enqueues task. Tasks scheduled after Stop are dropped.
func (l *Loop) Schedule(task func()) {
	if task == nil {
		return
	}
	select {
	case <-l.done:
		return
	default:
	}

	l.mu.Lock()
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is done or Stop is called.
//
// Outputs:
//   - error: ctx.Err() when the context ended, ErrLoopStopped after Stop.
func (l *Loop) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		task, ok := l.pop()
		if ok {
			l.run(task)
			select {
			case <-l.done:
				return ErrLoopStopped
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			continue
		}

		select {
		case <-l.wake:
		case <-l.done:
			return ErrLoopStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop ends Run after the task currently executing. It does not block and
// is safe to call more than once, including from inside a task.
func (l *Loop) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}

// Done is closed once Stop has been called.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("scheduled task panicked",
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	task()
}
