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

// Package signal delivers selected POSIX signals into an event loop as
// ordinary channel events instead of through an async-signal-unsafe
// handler: every signal this Server watches is first blocked on the owning
// loop's OS thread with pthread_sigmask(2), then read back through a
// signalfd(2) Channel on the owning loop. The signal masks of other threads
// are left unchanged.
package signal

import (
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/nabbar/reactor/channel"
	"github.com/nabbar/reactor/descriptor"
	"github.com/nabbar/reactor/loop"

	jww "github.com/spf13/jwalterweatherman"
	"golang.org/x/sys/unix"
)

// Callback is invoked when signo is delivered.
type Callback func(signo int)

// Server owns a signalfd Channel and a signal-number-to-callback map.
// New must be called from the process's single top-level loop; worker
// loops must not construct one.
type Server struct {
	own *loop.Loop

	fd *descriptor.FD
	ch *channel.Channel

	mu      sync.Mutex
	mask    unix.Sigset_t
	signals map[int]Callback
}

// New builds a Server bound to loop. The caller must already be on loop's
// own goroutine, and loop must be the process's main-thread loop: signalfd
// semantics in the presence of more than one blocking thread are
// unspecified on Linux. The owning goroutine is pinned to its OS thread,
// since the mask sigprocmask(2) installs is per-thread and must stay on
// the thread the loop keeps running on.
func New(own *loop.Loop) (*Server, error) {
	own.CheckInOwnLoop()
	runtime.LockOSThread()

	s := &Server{
		own:     own,
		signals: make(map[int]Callback),
	}

	fd, err := descriptor.NewSignalFd(&s.mask)
	if err != nil {
		return nil, err
	}
	s.fd = fd
	s.ch = channel.New(own, fd.Int())
	s.ch.SetReadCallback(func(_ time.Time) { s.handleRead() })
	s.ch.EnableRead()
	return s, nil
}

func (s *Server) handleRead() {
	s.own.CheckInOwnLoop()

	var info unix.SignalfdSiginfo
	n, err := unix.Read(s.fd.Int(), (*[unsafe.Sizeof(unix.SignalfdSiginfo{})]byte)(unsafe.Pointer(&info))[:])
	if err != nil || n != int(unsafe.Sizeof(info)) {
		if err != unix.EAGAIN {
			jww.WARN.Printf("signal: short or failed signalfd read: n=%d err=%v", n, err)
		}
		return
	}

	signo := int(info.Signo)
	s.mu.Lock()
	cb := s.signals[signo]
	s.mu.Unlock()

	if cb != nil {
		cb(signo)
	} else {
		jww.WARN.Printf("signal: received signal %d with no registered callback", signo)
	}
}

// AddSignal registers cb for signo, blocking it on the owning loop's
// thread, and rebuilds the signalfd's mask. Safe to call from any
// goroutine.
func (s *Server) AddSignal(signo int, cb Callback) {
	s.own.RunInOwnLoop(func() { s.addSignalInOwnLoop(signo, cb) })
}

func (s *Server) addSignalInOwnLoop(signo int, cb Callback) {
	s.own.CheckInOwnLoop()

	s.mu.Lock()
	s.signals[signo] = cb
	s.mu.Unlock()

	addToSigset(&s.mask, signo)
	s.applyMask()
}

// DeleteSignal unregisters signo and unblocks it, restoring its default
// disposition. Safe to call from any goroutine.
func (s *Server) DeleteSignal(signo int) {
	s.own.RunInOwnLoop(func() { s.deleteSignalInOwnLoop(signo) })
}

func (s *Server) deleteSignalInOwnLoop(signo int) {
	s.own.CheckInOwnLoop()

	s.mu.Lock()
	delete(s.signals, signo)
	s.mu.Unlock()

	removeFromSigset(&s.mask, signo)
	s.applyMask()
}

// ResetSignals unregisters every signal and restores default disposition
// for all of them. Safe to call from any goroutine.
func (s *Server) ResetSignals() {
	s.own.RunInOwnLoop(func() {
		s.own.CheckInOwnLoop()
		s.mu.Lock()
		s.signals = make(map[int]Callback)
		s.mu.Unlock()
		s.mask = unix.Sigset_t{}
		s.applyMask()
	})
}

// IsMemberSignal reports whether signo currently has a registered
// callback. Must be called on the owning loop.
func (s *Server) IsMemberSignal(signo int) bool {
	s.own.CheckInOwnLoop()
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.signals[signo]
	return ok
}

// applyMask rewrites the signalfd's watched set -- signalfd(2) accepts an
// already-open fd as its first argument precisely to let the mask be
// updated in place -- and sets the calling (loop) thread's signal mask to
// the same set. Other threads' masks are not changed.
func (s *Server) applyMask() {
	if _, err := unix.Signalfd(s.fd.Int(), &s.mask, unix.SFD_NONBLOCK|unix.SFD_CLOEXEC); err != nil {
		jww.ERROR.Printf("signal: could not update signalfd mask: %v", err)
		return
	}
	if err := unix.PthreadSigmask(unix.SIG_SETMASK, &s.mask, nil); err != nil {
		jww.ERROR.Printf("signal: could not update thread signal mask: %v", err)
	}
}

// addToSigset and removeFromSigset manipulate unix.Sigset_t directly since
// x/sys/unix exposes it as a bare 16-word array with no sigaddset-style
// helper on Linux.
func addToSigset(set *unix.Sigset_t, signo int) {
	if signo <= 0 {
		return
	}
	bit := uint(signo - 1)
	set.Val[bit/64] |= 1 << (bit % 64)
}

func removeFromSigset(set *unix.Sigset_t, signo int) {
	if signo <= 0 {
		return
	}
	bit := uint(signo - 1)
	set.Val[bit/64] &^= 1 << (bit % 64)
}

// Close stops watching every signal and releases the signalfd.
func (s *Server) Close() error {
	s.own.CheckInOwnLoop()
	s.ch.DisableAll()
	s.ch.Remove()
	runtime.UnlockOSThread()
	return s.fd.Close()
}
