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

// Package wakeup lets any goroutine hand a function to a specific event
// loop and be sure it runs on that loop's own goroutine: the function is
// queued under a mutex, then the loop is kicked out of its blocking
// poller wait via an eventfd write. The loop drains the queue by swapping
// it for a fresh empty slice under the same lock, so callbacks queued
// while draining don't get executed twice and don't block the producer.
package wakeup

import (
	"encoding/binary"
	"sync"

	"github.com/nabbar/reactor/descriptor"

	"golang.org/x/sys/unix"
)

// Functor is a task queued to run on the owning loop.
type Functor func()

// Notifier pairs an eventfd with a mutex-guarded task queue.
type Notifier struct {
	fd *descriptor.FD

	mu    sync.Mutex
	tasks []Functor
}

// New creates a Notifier backed by a fresh eventfd.
func New() (*Notifier, error) {
	fd, err := descriptor.NewEventFd()
	if err != nil {
		return nil, ErrorCreate.Error(err)
	}
	return &Notifier{fd: fd}, nil
}

// Fd returns the eventfd, for registering with a channel.Channel.
func (n *Notifier) Fd() int { return n.fd.Int() }

// Queue appends fn to the task queue and wakes the loop. Safe to call
// from any goroutine, including the owning loop's own.
func (n *Notifier) Queue(fn Functor) {
	n.mu.Lock()
	n.tasks = append(n.tasks, fn)
	n.mu.Unlock()
	n.Wake()
}

// Wake writes to the eventfd, unblocking a poller wait in progress. It is
// idempotent from the reader's perspective: the poller only needs to
// observe "at least one wake since last drain", not count them, so a
// write failing with EAGAIN (the counter would exceed its maximum,
// extremely rare given the 64-bit counter width) is not an error worth
// surfacing.
func (n *Notifier) Wake() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(n.fd.Int(), buf[:])
	if err != nil && err != unix.EAGAIN {
		_ = err // best effort; the loop will still observe a queued task on its next scheduled pass
	}
}

// Drain consumes the eventfd's counter (required after every readable
// notification, or epoll will keep reporting the fd as ready) and returns
// every task queued since the last Drain, without holding the lock while
// the caller runs them.
func (n *Notifier) Drain() []Functor {
	var buf [8]byte
	for {
		_, err := unix.Read(n.fd.Int(), buf[:])
		if err == unix.EINTR {
			continue
		}
		break
	}

	n.mu.Lock()
	tasks := n.tasks
	n.tasks = nil
	n.mu.Unlock()
	return tasks
}

// Close releases the eventfd.
func (n *Notifier) Close() error {
	return n.fd.Close()
}
