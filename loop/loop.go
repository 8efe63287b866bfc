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

// Package loop implements the reactor's event dispatcher: one loop per
// goroutine, each owning a poller, a timer pool and a wake-up notifier.
// Channels register their interest through it; everything that isn't
// already running on the loop's own goroutine must hop over via
// RunInOwnLoop/QueueInOwnLoop instead of touching loop state directly.
package loop

import (
	"sync/atomic"
	"time"

	"github.com/nabbar/reactor/channel"
	"github.com/nabbar/reactor/poller"
	"github.com/nabbar/reactor/timer"
	"github.com/nabbar/reactor/wakeup"

	jww "github.com/spf13/jwalterweatherman"
)

// DefaultPollTimeout bounds how long a single poller wait can block when
// no timer is pending, so a Quit() or a cross-loop task queued between
// two waits is never stuck behind an indefinite epoll_wait(2).
const DefaultPollTimeout = 10 * time.Second

// Loop is a single-threaded event dispatcher. Loop, CancelTimer,
// UpdateChannel, RemoveChannel and HasChannel must be called from the
// loop's own goroutine; CheckInOwnLoop panics otherwise. Quit, Terminate,
// RunInOwnLoop, QueueInOwnLoop, RunAt, RunAfter, RunEvery, IsInOwnLoop,
// IsRunning and LoopingTimes are safe to call from any goroutine.
type Loop struct {
	quit     int32
	looping  int32
	loopingN uint64
	ownerGID int64

	pollTimeout time.Duration

	poller poller.Poller
	timers *timer.Pool
	wake   *wakeup.Notifier
	wakeCh *channel.Channel

	active  []*channel.Channel
	current *channel.Channel

	handling bool
}

// New creates a Loop bound to the calling goroutine, demultiplexing
// through the platform's default poller backend (epoll). The loop does
// not start polling until Loop() is called, which must happen from the
// same goroutine that constructed it.
func New() (*Loop, error) {
	p, err := poller.New()
	if err != nil {
		return nil, ErrorPollerCreate.Error(err)
	}
	return NewWithPoller(p)
}

// NewWithPoller is New with a caller-chosen poller backend (e.g.
// poller.NewPoll()). The backend is fixed for the loop's lifetime; there
// is no runtime switching.
func NewWithPoller(p poller.Poller) (*Loop, error) {
	w, err := wakeup.New()
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	l := &Loop{
		ownerGID:    currentGoroutineID(),
		pollTimeout: DefaultPollTimeout,
		poller:      p,
		timers:      timer.New(),
		wake:        w,
	}

	l.wakeCh = channel.New(l, w.Fd())
	l.wakeCh.SetReadCallback(func(time.Time) { l.handleWake() })
	l.wakeCh.EnableRead()

	return l, nil
}

// SetPollTimeout overrides the poller wait ceiling used when no timer is
// pending.
func (l *Loop) SetPollTimeout(d time.Duration) { l.pollTimeout = d }

// IsInOwnLoop reports whether the calling goroutine is this loop's owner.
func (l *Loop) IsInOwnLoop() bool { return currentGoroutineID() == l.ownerGID }

// CheckInOwnLoop panics if the calling goroutine is not the loop's owner.
func (l *Loop) CheckInOwnLoop() {
	if !l.IsInOwnLoop() {
		panic(ErrorWrongThread.Error())
	}
}

// LoopingTimes returns the number of iterations of the poll/dispatch
// cycle completed so far, for diagnostics.
func (l *Loop) LoopingTimes() uint64 { return atomic.LoadUint64(&l.loopingN) }

// IsRunning reports whether Loop() is currently executing.
func (l *Loop) IsRunning() bool { return atomic.LoadInt32(&l.looping) != 0 }

// IsEventHandling reports whether the loop is currently inside its
// channel-dispatch phase -- Channel.Remove uses this indirectly via
// RemoveChannel's current-channel guard, and it's useful for callers
// deciding whether it's safe to synchronously tear something down.
func (l *Loop) IsEventHandling() bool { return l.handling }

// Loop runs the poll/dispatch cycle until Quit is called. It must be
// called from the loop's owning goroutine and must not be called twice
// concurrently (nor re-entered).
func (l *Loop) Loop() error {
	l.CheckInOwnLoop()
	if !atomic.CompareAndSwapInt32(&l.looping, 0, 1) {
		return ErrorAlreadyLooping.Error()
	}
	defer atomic.StoreInt32(&l.looping, 0)

	jww.TRACE.Printf("loop: begin looping (gid=%d)", l.ownerGID)

	for atomic.LoadInt32(&l.quit) == 0 {
		timeout := l.nextTimeout()

		l.active = l.active[:0]
		active, now, err := l.poller.Poll(timeout, l.active)
		if err != nil {
			jww.ERROR.Printf("loop: poll error: %v", err)
			continue
		}
		l.active = active

		l.handling = true
		for _, ch := range l.active {
			l.current = ch
			ch.HandleEvent(now)
		}
		l.current = nil
		l.handling = false

		l.timers.Expire(now)

		atomic.AddUint64(&l.loopingN, 1)
	}

	jww.TRACE.Printf("loop: finish looping (gid=%d)", l.ownerGID)

	// Tasks queued between the final poll and the quit check still run,
	// including any they queue in turn, so teardown steps handed over by
	// other threads are not silently dropped on shutdown.
	for tasks := l.wake.Drain(); len(tasks) > 0; tasks = l.wake.Drain() {
		for _, fn := range tasks {
			fn()
		}
	}

	// The loop's own fds are released here, on the owning goroutine,
	// never by whichever thread asked it to quit -- closing the epoll or
	// wake-up fd out from under a concurrent Poll would be a race.
	return l.release()
}

func (l *Loop) nextTimeout() time.Duration {
	when, ok := l.timers.NextDeadline()
	if !ok {
		return l.pollTimeout
	}
	d := time.Until(when)
	if d < 0 {
		return 0
	}
	if d > l.pollTimeout {
		return l.pollTimeout
	}
	return d
}

// Quit requests the loop to stop after its current iteration. Safe to
// call from any goroutine; it wakes the loop if it's blocked in Poll.
func (l *Loop) Quit() {
	atomic.StoreInt32(&l.quit, 1)
	if !l.IsInOwnLoop() {
		l.wake.Wake()
	}
}

// Terminate is Quit plus releasing the loop's own fds (poller, wake-up
// eventfd). While Loop() is still running, Terminate only requests the
// stop: the owning goroutine performs its own fd teardown when Loop()
// returns. Only a loop that never ran (or has already returned) has its
// fds closed inline here; release is idempotent either way.
func (l *Loop) Terminate() error {
	l.Quit()
	if atomic.LoadInt32(&l.looping) != 0 {
		return nil
	}
	return l.release()
}

func (l *Loop) release() error {
	if err := l.wake.Close(); err != nil {
		return err
	}
	return l.poller.Close()
}

// RunInOwnLoop runs fn immediately if called from the loop's own
// goroutine, otherwise queues it and wakes the loop to run it
// asynchronously. Safe to call from any goroutine.
func (l *Loop) RunInOwnLoop(fn func()) {
	if l.IsInOwnLoop() {
		fn()
		return
	}
	l.QueueInOwnLoop(fn)
}

// QueueInOwnLoop always queues fn to run on the loop's own goroutine on
// its next pass, even when called from that same goroutine (useful to
// defer work past the current dispatch cycle).
func (l *Loop) QueueInOwnLoop(fn func()) {
	l.wake.Queue(fn)
}

func (l *Loop) handleWake() {
	for _, fn := range l.wake.Drain() {
		fn()
	}
}

// RunAt schedules fn to run once at when. Safe to call from any
// goroutine: the timer is prepared here and registered on the loop.
func (l *Loop) RunAt(when time.Time, fn func(time.Time)) timer.ID {
	return l.scheduleTimer(when, 0, fn)
}

// RunAfter schedules fn to run once after delay elapses. Safe to call
// from any goroutine.
func (l *Loop) RunAfter(delay time.Duration, fn func(time.Time)) timer.ID {
	return l.scheduleTimer(time.Now().Add(delay), 0, fn)
}

// RunEvery schedules fn to run every interval, starting one interval from
// now. Safe to call from any goroutine.
func (l *Loop) RunEvery(interval time.Duration, fn func(time.Time)) timer.ID {
	return l.scheduleTimer(time.Now().Add(interval), interval, fn)
}

func (l *Loop) scheduleTimer(when time.Time, interval time.Duration, fn timer.Callback) timer.ID {
	id, t := l.timers.Prepare(when, interval, fn)
	l.RunInOwnLoop(func() { l.timers.Register(t) })
	return id
}

// CancelTimer cancels a timer previously scheduled on this loop. Must be
// called from the loop's own goroutine -- callers from elsewhere should
// wrap the call in RunInOwnLoop.
func (l *Loop) CancelTimer(id timer.ID) bool {
	l.CheckInOwnLoop()
	return l.timers.Cancel(id)
}

// UpdateChannel registers or updates a channel's interest set with the
// poller. Implements channel.Registrar.
func (l *Loop) UpdateChannel(c *channel.Channel) {
	l.CheckInOwnLoop()
	if err := l.poller.UpdateChannel(c); err != nil {
		jww.ERROR.Printf("loop: update channel fd=%d: %v", c.Fd(), err)
	}
}

// RemoveChannel forgets a channel. Implements channel.Registrar. A channel
// may remove itself from inside its own event handler (the connector and
// connection teardown paths do), but removing a different channel that is
// still pending in the current dispatch batch would leave a dangling entry
// in the active list.
func (l *Loop) RemoveChannel(c *channel.Channel) {
	l.CheckInOwnLoop()
	if l.handling && l.current != c {
		for _, a := range l.active {
			if a == c {
				panic("loop: RemoveChannel called on a channel pending in the current dispatch batch")
			}
		}
	}
	if err := l.poller.RemoveChannel(c); err != nil {
		jww.ERROR.Printf("loop: remove channel fd=%d: %v", c.Fd(), err)
	}
}

// HasChannel reports whether c is registered with this loop's poller.
func (l *Loop) HasChannel(c *channel.Channel) bool {
	l.CheckInOwnLoop()
	return l.poller.HasChannel(c)
}
