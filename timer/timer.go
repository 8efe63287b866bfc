/*
 * MIT License
 *
 * Copyright (c) 2026 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package timer implements the loop-local timer pool: a min-heap of
// pending timers ordered by deadline, identified by a monotonically
// increasing sequence number so a TimerId stays unique even across two
// timers that happen to share a deadline. It is not safe for concurrent
// use -- like everything else keyed to one event loop, every method must
// run on the owning loop's goroutine; cross-thread scheduling goes
// through loop.Loop.RunInOwnLoop first.
package timer

import (
	"container/heap"
	"sync/atomic"
	"time"
)

// Callback is invoked when a timer fires.
type Callback func(now time.Time)

// ID identifies a scheduled timer so it can later be cancelled. The zero
// value is not valid; it is returned only alongside a non-nil error.
type ID struct {
	seq int64
}

// IsValid reports whether this ID refers to a real, once-scheduled timer.
func (t ID) IsValid() bool { return t.seq != 0 }

type entry struct {
	when     time.Time
	interval time.Duration // 0 for a one-shot timer
	seq      int64
	cb       Callback
	index    int // heap.Interface bookkeeping
	canceled bool
}

type queue []*entry

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].when.Equal(q[j].when) {
		return q[i].seq < q[j].seq
	}
	return q[i].when.Before(q[j].when)
}
func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *queue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// Timer is a prepared, not-yet-registered timer: Prepare builds one from
// any goroutine, Register inserts it on the owning loop.
type Timer struct {
	e *entry
}

// Pool holds every timer pending on one event loop. Except for Prepare
// (which only allocates), every method must run on the owning loop's
// goroutine.
type Pool struct {
	q       queue
	byID    map[int64]*entry
	nextSeq int64 // atomic: Prepare allocates from any goroutine
}

// New returns an empty timer pool.
func New() *Pool {
	return &Pool{byID: make(map[int64]*entry)}
}

// Prepare allocates a timer and its ID without touching the pool's heap,
// so a caller on another goroutine can hand the Timer over to the owning
// loop for Register while already holding a stable cancellation handle.
func (p *Pool) Prepare(when time.Time, interval time.Duration, cb Callback) (ID, *Timer) {
	e := &entry{when: when, interval: interval, seq: atomic.AddInt64(&p.nextSeq, 1), cb: cb}
	return ID{seq: e.seq}, &Timer{e: e}
}

// Register inserts a prepared timer into the pool.
func (p *Pool) Register(t *Timer) {
	p.byID[t.e.seq] = t.e
	heap.Push(&p.q, t.e)
}

// Add schedules cb to run once at when.
func (p *Pool) Add(when time.Time, cb Callback) ID {
	return p.schedule(when, 0, cb)
}

// AddAfter schedules cb to run once after delay elapses.
func (p *Pool) AddAfter(delay time.Duration, cb Callback) ID {
	return p.schedule(time.Now().Add(delay), 0, cb)
}

// AddEvery schedules cb to run every interval, starting one interval from
// now. interval must be positive.
func (p *Pool) AddEvery(interval time.Duration, cb Callback) ID {
	return p.schedule(time.Now().Add(interval), interval, cb)
}

func (p *Pool) schedule(when time.Time, interval time.Duration, cb Callback) ID {
	id, t := p.Prepare(when, interval, cb)
	p.Register(t)
	return id
}

// Cancel removes a pending timer. Cancelling a timer that is mid-fire (a
// repeating timer cancelling itself from within its own callback, or
// cancelled by another expired timer in the same batch) is handled by
// Expire checking the canceled flag after the callback runs, instead of
// re-arming it.
func (p *Pool) Cancel(id ID) bool {
	e, ok := p.byID[id.seq]
	if !ok {
		return false
	}
	e.canceled = true
	delete(p.byID, id.seq)
	if e.index >= 0 {
		heap.Remove(&p.q, e.index)
	}
	return true
}

// NextDeadline returns the time the earliest pending timer fires, and
// false if the pool is empty -- the caller (loop.Loop) uses this to
// compute the poller's wait timeout.
func (p *Pool) NextDeadline() (time.Time, bool) {
	if len(p.q) == 0 {
		return time.Time{}, false
	}
	return p.q[0].when, true
}

// Expire pops and runs every timer whose deadline is at or before now,
// re-arming repeating timers that were not cancelled during their own
// callback. It returns the number of callbacks invoked.
func (p *Pool) Expire(now time.Time) int {
	fired := 0
	for len(p.q) > 0 && !p.q[0].when.After(now) {
		e := heap.Pop(&p.q).(*entry)
		if e.canceled {
			continue
		}

		// e stays in byID during the callback so a timer can cancel
		// itself (Cancel looks it up by seq) and stop its own re-arm.
		// The seq is stable across re-arms: an ID handed out by
		// AddEvery keeps cancelling the same timer on any later fire.
		e.cb(now)
		fired++

		if e.interval > 0 && !e.canceled {
			e.when = now.Add(e.interval)
			heap.Push(&p.q, e)
		} else {
			delete(p.byID, e.seq)
		}
	}
	return fired
}

// Len reports the number of timers currently pending.
func (p *Pool) Len() int { return len(p.q) }
