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

// Package connector drives a non-blocking connect(2) to completion, retrying
// with exponential backoff on transient failures and reporting a fatal error
// for anything that can't succeed by retrying. It never blocks the owning
// loop: every connect attempt, retry and teardown step runs as a callback on
// the loop that owns it.
package connector

import (
	"sync/atomic"
	"time"

	"github.com/nabbar/reactor/channel"
	"github.com/nabbar/reactor/descriptor"
	"github.com/nabbar/reactor/endpoint"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/timer"

	"github.com/cenkalti/backoff"
	jww "github.com/spf13/jwalterweatherman"
	"golang.org/x/sys/unix"
)

// NewConnectCallback receives an established connection's descriptor and the
// server endpoint it connected to. The callback owns sockfd from that point
// on.
type NewConnectCallback func(sockfd *descriptor.FD, server endpoint.Endpoint)

// ErrorCallback is invoked when the connect attempt fails with an error that
// retrying cannot fix (e.g. connection refused after the channel reports
// readable instead of writable).
type ErrorCallback func(err error)

type state int

const (
	stateDisconnected state = iota
	stateConnecting
	stateConnected
)

// initialRetryInterval and maxRetryInterval bound the exponential backoff
// applied between failed connect attempts: 500ms doubling up to a 30s
// ceiling.
const (
	initialRetryInterval = 500 * time.Millisecond
	maxRetryInterval     = 30 * time.Second
)

// Connector drives one outbound connection attempt at a time against a
// fixed server address. Start/Stop are safe to call from any goroutine;
// every other method must run on the owning loop.
type Connector struct {
	own *loop.Loop

	serverAddr endpoint.Endpoint

	connect int32 // atomic: desired state requested by Start/Stop
	st      state

	backoff backoff.BackOff

	sock *descriptor.FD
	ch   *channel.Channel

	retryTimer timer.ID

	onConnect NewConnectCallback
	onError   ErrorCallback
}

// New builds a Connector targeting addr. It does nothing until Start is
// called.
func New(own *loop.Loop, addr endpoint.Endpoint) *Connector {
	return &Connector{
		own:        own,
		serverAddr: addr,
		backoff:    newBackOff(),
	}
}

func newBackOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     initialRetryInterval,
		RandomizationFactor: 0.2,
		Multiplier:          2,
		MaxInterval:         maxRetryInterval,
		MaxElapsedTime:      0, // never gives up on its own; Stop cancels explicitly
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// SetNewConnectCallback wires the handler invoked once a connection
// succeeds.
func (c *Connector) SetNewConnectCallback(cb NewConnectCallback) { c.onConnect = cb }

// SetErrorCallback wires the handler invoked when a connect attempt fails in
// a way retrying cannot fix.
func (c *Connector) SetErrorCallback(cb ErrorCallback) { c.onError = cb }

// ServerAddr returns the address this connector targets.
func (c *Connector) ServerAddr() endpoint.Endpoint { return c.serverAddr }

// Start requests a connection attempt. Safe to call from any goroutine.
func (c *Connector) Start() {
	atomicStoreConnect(&c.connect, true)
	c.own.RunInOwnLoop(c.startInOwnLoop)
}

// Stop requests that any in-flight attempt or pending retry be abandoned.
// Safe to call from any goroutine.
func (c *Connector) Stop() {
	atomicStoreConnect(&c.connect, false)
	c.own.QueueInOwnLoop(c.stopInOwnLoop)
}

// Restart resets backoff state and retries immediately. Must be called on
// the owning loop.
func (c *Connector) Restart() {
	c.own.CheckInOwnLoop()
	c.st = stateDisconnected
	c.backoff = newBackOff()
	atomicStoreConnect(&c.connect, true)
	c.startInOwnLoop()
}

func (c *Connector) startInOwnLoop() {
	c.own.CheckInOwnLoop()
	if c.st != stateDisconnected {
		jww.WARN.Printf("connector: start requested while state=%d", c.st)
		return
	}
	if atomicLoadConnect(&c.connect) {
		c.dial()
	} else {
		jww.TRACE.Printf("connector: start skipped, not requested to connect")
	}
}

func (c *Connector) stopInOwnLoop() {
	c.own.CheckInOwnLoop()
	if c.retryTimer.IsValid() {
		c.own.CancelTimer(c.retryTimer)
		c.retryTimer = timer.ID{}
	}
	if c.st == stateConnecting {
		c.st = stateDisconnected
		c.removeAndResetChannel()
		_ = c.sock.Close()
		c.sock = nil
	}
}

func (c *Connector) dial() {
	c.own.CheckInOwnLoop()

	sock, err := descriptor.NewSocket(c.serverAddr.Family(), unix.SOCK_STREAM)
	if err != nil {
		if c.onError != nil {
			c.onError(ErrorSocket.Error(err))
		}
		return
	}
	c.sock = sock

	err = unix.Connect(sock.Int(), c.serverAddr.SockAddr())
	switch err {
	case nil, unix.EINPROGRESS, unix.EINTR, unix.EISCONN:
		c.connecting()

	case unix.EAGAIN, unix.EADDRINUSE, unix.EADDRNOTAVAIL, unix.ECONNREFUSED, unix.ENETUNREACH:
		_ = c.sock.Close()
		c.sock = nil
		c.retry()

	default:
		jww.ERROR.Printf("connector: connect to %s failed: %v", c.serverAddr, err)
		_ = c.sock.Close()
		c.sock = nil
		if c.onError != nil {
			c.onError(ErrorConnect.Error(err))
		}
	}
}

func (c *Connector) connecting() {
	c.st = stateConnecting
	c.ch = channel.New(c.own, c.sock.Int())
	c.ch.SetWriteCallback(c.handleWrite)
	c.ch.SetReadCallback(func(time.Time) { c.handleRead() })
	c.ch.SetErrorCallback(func() { c.handleError() })
	c.ch.EnableRead()
	c.ch.EnableWrite()
}

// retry schedules another dial after the next backoff interval, unless Stop
// was requested meanwhile.
func (c *Connector) retry() {
	c.st = stateDisconnected
	if !atomicLoadConnect(&c.connect) {
		jww.TRACE.Printf("connector: retry skipped, stop requested")
		return
	}
	d := c.backoff.NextBackOff()
	jww.INFO.Printf("connector: retrying %s in %s", c.serverAddr, d)
	c.retryTimer = c.own.RunAfter(d, func(time.Time) { c.startInOwnLoop() })
}

func (c *Connector) handleWrite() {
	c.own.CheckInOwnLoop()
	if c.st != stateConnecting {
		return
	}
	sock := c.sock
	c.removeAndResetChannel()

	if sockErr := socketError(sock.Int()); sockErr != nil {
		jww.WARN.Printf("connector: connect to %s failed: %v", c.serverAddr, sockErr)
		_ = sock.Close()
		c.retry()
		return
	}
	if isSelfConnect(sock.Int()) {
		jww.WARN.Printf("connector: connect to %s hit self-connect", c.serverAddr)
		_ = sock.Close()
		c.retry()
		return
	}

	c.st = stateConnected
	if atomicLoadConnect(&c.connect) && c.onConnect != nil {
		c.onConnect(sock, c.serverAddr)
	} else {
		_ = sock.Close()
	}
}

func (c *Connector) handleRead() {
	c.own.CheckInOwnLoop()
	if c.st != stateConnecting {
		return
	}
	sockErr := socketError(c.sock.Int())
	jww.ERROR.Printf("connector: connect to %s became readable before writable: %v", c.serverAddr, sockErr)

	sock := c.sock
	c.removeAndResetChannel()
	_ = sock.Close()
	c.sock = nil

	if sockErr == unix.ECONNREFUSED {
		// Refused is reported, not retried: the peer is there and said no.
		c.st = stateDisconnected
		if c.onError != nil {
			c.onError(ErrorConnect.Error(unix.ECONNREFUSED))
		}
		return
	}
	c.retry()
}

func (c *Connector) handleError() {
	c.own.CheckInOwnLoop()
	if c.st != stateConnecting {
		return
	}
	jww.ERROR.Printf("connector: connect to %s reported an error event: %v", c.serverAddr, socketError(c.sock.Int()))

	sock := c.sock
	c.removeAndResetChannel()
	_ = sock.Close()
	c.sock = nil
	c.retry()
}

func (c *Connector) removeAndResetChannel() {
	c.ch.DisableAll()
	c.ch.Remove()
	c.ch = nil
}

func atomicStoreConnect(p *int32, v bool) {
	var n int32
	if v {
		n = 1
	}
	atomic.StoreInt32(p, n)
}

func atomicLoadConnect(p *int32) bool {
	return atomic.LoadInt32(p) != 0
}

func socketError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}

func isSelfConnect(fd int) bool {
	local, err := unix.Getsockname(fd)
	if err != nil {
		return false
	}
	peer, err := unix.Getpeername(fd)
	if err != nil {
		return false
	}
	le, ok1 := endpoint.FromSockAddr(local)
	pe, ok2 := endpoint.FromSockAddr(peer)
	if !ok1 || !ok2 {
		return false
	}
	return le.ToPort() == pe.ToPort() && le.IP() == pe.IP()
}
