/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package duel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a pending scheduled task.
type Timer interface {
	// Stop cancels the task. It reports whether the task was still pending.
	Stop() bool
}

// Scheduler runs f after d on the goroutine that owns the session.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Loop is the single goroutine that owns duel state. Every mutation of a
// Session, every timer callback and every transcript event runs as a task
// on the loop, one at a time.
type Loop struct {
	tasks chan func()
	quit  chan struct{}
	once  sync.Once
}

func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 256),
		quit:  make(chan struct{}),
	}
}

// Run executes tasks until ctx is done or Close is called.
func (l *Loop) Run(ctx context.Context) {
	defer l.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.quit:
			return
		case f := <-l.tasks:
			f()
		}
	}
}

// Post queues f. It returns false once the loop has stopped.
func (l *Loop) Post(f func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}

	select {
	case <-l.quit:
		return false
	case l.tasks <- f:
		return true
	}
}

// Call runs f on the loop and waits for it to finish. Must not be called
// from the loop itself.
func (l *Loop) Call(f func()) bool {
	done := make(chan struct{})

	if !l.Post(func() {
		defer close(done)
		f()
	}) {
		return false
	}

	select {
	case <-done:
		return true
	case <-l.quit:
		return false
	}
}

func (l *Loop) Close() {
	l.once.Do(func() {
		close(l.quit)
	})
}

// AfterFunc schedules f to run on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	lt := &loopTimer{}

	lt.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.done.Swap(true) {
				return
			}
			f()
		})
	})

	return lt
}

type loopTimer struct {
	t    *time.Timer
	done atomic.Bool
}

func (lt *loopTimer) Stop() bool {
	lt.t.Stop()

	return !lt.done.Swap(true)
}
