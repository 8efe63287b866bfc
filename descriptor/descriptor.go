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

// Package descriptor owns a raw, non-blocking file descriptor for exactly
// one purpose at a time -- a connected socket, a listening socket, an
// eventfd wake-up handle, a timerfd or a signalfd -- and closes it exactly
// once regardless of how many times Close is called.
package descriptor

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// FD is a selectable, owning handle on a raw file descriptor. The zero
// value is not usable; construct one with one of the New* functions.
type FD struct {
	fd     int32
	closed int32
}

// New wraps an already-open fd. Ownership transfers to the FD: the caller
// must not close fd directly afterwards.
func New(fd int) *FD {
	return &FD{fd: int32(fd)}
}

// NewSocket opens a non-blocking, close-on-exec socket for the given
// address family (AF_INET/AF_INET6) and socket type (SOCK_STREAM).
func NewSocket(family, sockType int) (*FD, error) {
	fd, err := unix.Socket(family, sockType|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, ErrorCreate.Error(err)
	}
	return &FD{fd: int32(fd)}, nil
}

// NewEventFd opens a non-blocking eventfd(2), used by wakeup.Notifier to
// break a poller out of its wait with no associated socket traffic.
func NewEventFd() (*FD, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, ErrorCreate.Error(err)
	}
	return &FD{fd: int32(fd)}, nil
}

// NewTimerFd opens a non-blocking timerfd(2) on the monotonic clock. The
// timer pool does not use it: loop.Loop bounds each poller wait by the
// earliest pending timer deadline instead.
func NewTimerFd() (*FD, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, ErrorCreate.Error(err)
	}
	return &FD{fd: int32(fd)}, nil
}

// NewSignalFd opens a signalfd(2) that will receive the given signals
// instead of invoking a C-style signal handler, so delivery is observed
// through the same poller as every other event source.
func NewSignalFd(mask *unix.Sigset_t) (*FD, error) {
	fd, err := unix.Signalfd(-1, mask, unix.SFD_NONBLOCK|unix.SFD_CLOEXEC)
	if err != nil {
		return nil, ErrorCreate.Error(err)
	}
	return &FD{fd: int32(fd)}, nil
}

// Int returns the raw fd value, e.g. to pass to unix.EpollCtl.
func (f *FD) Int() int { return int(atomic.LoadInt32(&f.fd)) }

// Closed reports whether Close has already run.
func (f *FD) Closed() bool { return atomic.LoadInt32(&f.closed) != 0 }

// Close closes the underlying fd exactly once, ignoring EINTR (on Linux
// the fd is released even when close(2) reports it, so retrying would race
// a concurrent open of the same number). Calling Close again is a safe
// no-op that returns nil.
func (f *FD) Close() error {
	if !atomic.CompareAndSwapInt32(&f.closed, 0, 1) {
		return nil
	}
	err := unix.Close(int(atomic.LoadInt32(&f.fd)))
	if err == nil || err == unix.EINTR || err == unix.EBADF {
		return nil
	}
	return ErrorClose.Error(err)
}

// SetNonblock toggles O_NONBLOCK; NewSocket/NewEventFd/... already create
// non-blocking descriptors, this exists for fds handed in via New (e.g. an
// accepted connection fd from Acceptor).
func (f *FD) SetNonblock(nonblocking bool) error {
	return unix.SetNonblock(f.Int(), nonblocking)
}

// SetCloexec sets or clears FD_CLOEXEC.
func (f *FD) SetCloexec(set bool) error {
	flags, err := unix.FcntlInt(uintptr(f.Int()), unix.F_GETFD, 0)
	if err != nil {
		return err
	}
	if set {
		flags |= unix.FD_CLOEXEC
	} else {
		flags &^= unix.FD_CLOEXEC
	}
	_, err = unix.FcntlInt(uintptr(f.Int()), unix.F_SETFD, flags)
	return err
}
