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

// Package tcp implements the connection state machine: the owner of one
// connected socket's Channel and its two buffers, and the producer of the
// public send/shutdown/force-close/read-control surface. A Connection is
// jointly owned by its constructing server or client (which keeps it in a
// name-keyed map) and by whatever user callback is currently running --
// every method that isn't explicitly "thread safe" below must run on the
// connection's owning loop.
package tcp

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nabbar/reactor/buffer"
	"github.com/nabbar/reactor/channel"
	"github.com/nabbar/reactor/descriptor"
	"github.com/nabbar/reactor/endpoint"
	"github.com/nabbar/reactor/loop"

	jww "github.com/spf13/jwalterweatherman"
	"golang.org/x/sys/unix"
)

// DefaultHighWaterMark is the outbound-buffer threshold (64 MiB) past which
// the high-water-mark callback fires, matching the reactor's default.
const DefaultHighWaterMark = 64 * 1024 * 1024

// State is the connection's position in its four-state lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

// String renders the state for diagnostics logging.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ConnectCallback fires once on connect_established and again on the
// transition into close (at which point Connected() already reports
// false) -- callers distinguish the two by checking c.Connected().
type ConnectCallback func(c *Connection)

// MessageCallback fires once per readable event that yielded data; the
// handler consumes whatever it wants out of in and leaves the remainder for
// the next call (or for a codec wrapping the connection).
type MessageCallback func(c *Connection, in *buffer.Buffer, received time.Time)

// WriteCompleteCallback fires after the output buffer has fully drained to
// the kernel, whether that happened inline inside Send or later from
// handleWrite.
type WriteCompleteCallback func(c *Connection)

// HighWaterMarkCallback fires at most once per crossing of the configured
// threshold from below.
type HighWaterMarkCallback func(c *Connection, outstanding int)

// CloseCallback is the server/client-owned hook that removes the
// connection from its owning container; it runs after the user's
// ConnectCallback has already observed Connected()==false.
type CloseCallback func(c *Connection)

// Connection is the reactor's full-duplex, framed, buffered TCP stream. Its
// exported Send/Shutdown/ForceClose/ForceCloseWithDelay/StartRead/StopRead
// methods are safe to call from any goroutine; everything else must run on
// the owning loop.
type Connection struct {
	own   *loop.Loop
	name  string
	local endpoint.Endpoint
	peer  endpoint.Endpoint

	sock *descriptor.FD
	ch   *channel.Channel

	in  *buffer.Buffer
	out *buffer.Buffer

	state   int32 // atomic State
	reading bool

	highWaterMark int

	ctxMu sync.RWMutex
	ctx   any

	onConnect       ConnectCallback
	onMessage       MessageCallback
	onWriteComplete WriteCompleteCallback
	onHighWaterMark HighWaterMarkCallback
	onClose         CloseCallback

	destroyed int32 // atomic: set by ConnectDestroyed, guards delayed force-close
}

// New constructs a Connection over sockfd, initially in StateConnecting.
// The caller must invoke ConnectEstablished on the owning loop once before
// any data can flow.
func New(own *loop.Loop, name string, sockfd *descriptor.FD, local, peer endpoint.Endpoint) *Connection {
	c := &Connection{
		own:           own,
		name:          name,
		local:         local,
		peer:          peer,
		sock:          sockfd,
		in:            buffer.New(),
		out:           buffer.New(),
		state:         int32(StateConnecting),
		reading:       true,
		highWaterMark: DefaultHighWaterMark,
	}
	c.ch = channel.New(own, sockfd.Int())
	c.ch.SetReadCallback(c.handleRead)
	c.ch.SetWriteCallback(c.handleWrite)
	c.ch.SetCloseCallback(c.handleClose)
	c.ch.SetErrorCallback(c.handleError)
	return c
}

// Loop returns the owning event loop.
func (c *Connection) Loop() *loop.Loop { return c.own }

// Name returns the connection's server/client-assigned identifier.
func (c *Connection) Name() string { return c.name }

// LocalAddr/PeerAddr return the two endpoints of the connection.
func (c *Connection) LocalAddr() endpoint.Endpoint { return c.local }
func (c *Connection) PeerAddr() endpoint.Endpoint  { return c.peer }

// State returns the current lifecycle state.
func (c *Connection) State() State { return State(atomic.LoadInt32(&c.state)) }

// Connected reports whether the connection is in StateConnected.
func (c *Connection) Connected() bool { return c.State() == StateConnected }

// Disconnected reports whether the connection is in StateDisconnected.
func (c *Connection) Disconnected() bool { return c.State() == StateDisconnected }

func (c *Connection) setState(s State) { atomic.StoreInt32(&c.state, int32(s)) }

// InputBuffer/OutputBuffer expose the read and write buffers directly, for
// codecs layered on top of the connection.
func (c *Connection) InputBuffer() *buffer.Buffer  { return c.in }
func (c *Connection) OutputBuffer() *buffer.Buffer { return c.out }

// SetContext/Context round-trip an arbitrary, caller-chosen value alongside
// the connection (e.g. a codec's per-connection decode state). Safe for
// concurrent use.
func (c *Connection) SetContext(v any) {
	c.ctxMu.Lock()
	c.ctx = v
	c.ctxMu.Unlock()
}

func (c *Connection) Context() any {
	c.ctxMu.RLock()
	defer c.ctxMu.RUnlock()
	return c.ctx
}

// SetConnectCallback/SetMessageCallback/SetWriteCompleteCallback/
// SetCloseCallback wire the user-visible handlers. Must be set before
// ConnectEstablished fires the first event.
func (c *Connection) SetConnectCallback(cb ConnectCallback)             { c.onConnect = cb }
func (c *Connection) SetMessageCallback(cb MessageCallback)             { c.onMessage = cb }
func (c *Connection) SetWriteCompleteCallback(cb WriteCompleteCallback) { c.onWriteComplete = cb }
func (c *Connection) SetCloseCallback(cb CloseCallback)                 { c.onClose = cb }

// SetHighWaterMarkCallback wires the backpressure hook and its threshold in
// bytes.
func (c *Connection) SetHighWaterMarkCallback(cb HighWaterMarkCallback, mark int) {
	c.onHighWaterMark = cb
	c.highWaterMark = mark
}

// SetTCPNoDelay toggles Nagle's algorithm on the underlying socket.
func (c *Connection) SetTCPNoDelay(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return unix.SetsockoptInt(c.sock.Int(), unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
}

// IsReading reports whether read events are currently enabled.
func (c *Connection) IsReading() bool { return c.reading }

// StartRead/StopRead flip the reading flag and the channel's read interest.
// Safe to call from any goroutine.
func (c *Connection) StartRead() { c.own.RunInOwnLoop(c.startReadInLoop) }
func (c *Connection) StopRead()  { c.own.RunInOwnLoop(c.stopReadInLoop) }

func (c *Connection) startReadInLoop() {
	c.own.CheckInOwnLoop()
	if !c.reading || !c.ch.IsReadEvent() {
		c.ch.EnableRead()
		c.reading = true
	}
}

func (c *Connection) stopReadInLoop() {
	c.own.CheckInOwnLoop()
	if c.reading || c.ch.IsReadEvent() {
		c.ch.DisableRead()
		c.reading = false
	}
}

// ConnectEstablished must be called exactly once, on the owning loop, after
// construction: it transitions Connecting -> Connected, arms read
// notifications and invokes the user's connect callback.
func (c *Connection) ConnectEstablished() {
	c.own.CheckInOwnLoop()
	if c.State() != StateConnecting {
		panic(ErrorWrongState.Error())
	}
	c.setState(StateConnected)
	c.ch.EnableRead()
	if c.onConnect != nil {
		c.onConnect(c)
	}
}

// ConnectDestroyed releases the channel from the loop's poller. It must run
// on the owning loop, after the close callback chain has finished; it is
// the last step in a connection's life and marks it as destroyed so a
// pending ForceCloseWithDelay timer becomes a no-op.
func (c *Connection) ConnectDestroyed() {
	c.own.CheckInOwnLoop()
	if c.State() == StateConnected {
		c.setState(StateDisconnected)
		c.ch.DisableAll()
	}
	c.ch.Remove()
	atomic.StoreInt32(&c.destroyed, 1)
}

// Send queues data for delivery, attempting a direct write first if
// nothing is already buffered. Safe to call from any goroutine; data is
// copied before crossing to the owning loop so the caller may reuse its
// slice immediately after this call returns.
func (c *Connection) Send(data []byte) {
	cp := append([]byte(nil), data...)
	c.own.RunInOwnLoop(func() { c.sendInLoop(cp) })
}

// SendString is Send for a string.
func (c *Connection) SendString(s string) { c.Send([]byte(s)) }

func (c *Connection) sendInLoop(data []byte) {
	c.own.CheckInOwnLoop()

	if c.State() == StateDisconnected {
		jww.WARN.Printf("tcp: %s send called after disconnect, dropping %d bytes", c.name, len(data))
		return
	}

	fault := false
	if !c.ch.IsWriteEvent() && c.out.ReadableBytes() == 0 {
		n, err := unix.Write(c.sock.Int(), data)
		switch {
		case err == nil:
			data = data[n:]
			if len(data) == 0 && c.onWriteComplete != nil {
				c.own.QueueInOwnLoop(func() { c.onWriteComplete(c) })
			}
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			// nothing written; fall through to buffering
		default:
			jww.ERROR.Printf("tcp: %s direct write failed: %v", c.name, err)
			if err == unix.EPIPE || err == unix.ECONNRESET {
				fault = true
			}
		}
	}

	if fault || len(data) == 0 {
		return
	}

	oldLen := c.out.ReadableBytes()
	newLen := oldLen + len(data)
	if newLen >= c.highWaterMark && oldLen < c.highWaterMark && c.onHighWaterMark != nil {
		c.own.QueueInOwnLoop(func() { c.onHighWaterMark(c, newLen) })
	}
	c.out.Append(data)
	if !c.ch.IsWriteEvent() {
		c.ch.EnableWrite()
	}
}

// Shutdown half-closes the connection for writes once any buffered output
// has drained. Safe to call from any goroutine; not safe to call twice
// concurrently with another Shutdown.
func (c *Connection) Shutdown() { c.own.RunInOwnLoop(c.shutdownInLoop) }

func (c *Connection) shutdownInLoop() {
	c.own.CheckInOwnLoop()
	if c.State() == StateConnected {
		c.setState(StateDisconnecting)
	}
	// With writes still armed the output buffer has not drained yet;
	// handleWrite re-enters here once it has.
	if c.State() == StateDisconnecting && !c.ch.IsWriteEvent() {
		_ = unix.Shutdown(c.sock.Int(), unix.SHUT_WR)
	}
}

// ForceClose tears the connection down immediately, dropping any buffered
// writes. Safe to call from any goroutine.
func (c *Connection) ForceClose() {
	if s := c.State(); s == StateConnected || s == StateDisconnecting {
		c.setState(StateDisconnecting)
		c.own.QueueInOwnLoop(c.forceCloseInLoop)
	}
}

// ForceCloseWithDelay is ForceClose after d elapses. The scheduled task
// checks the destroyed flag rather than holding a reference that would
// keep the connection's close path alive artificially: a connection that
// has already run its full close sequence by the time the timer fires is
// left alone, not revived. Safe to call from any goroutine.
func (c *Connection) ForceCloseWithDelay(d time.Duration) {
	c.own.RunAfter(d, func(time.Time) {
		if atomic.LoadInt32(&c.destroyed) == 0 {
			c.ForceClose()
		}
	})
}

func (c *Connection) forceCloseInLoop() {
	c.own.CheckInOwnLoop()
	if s := c.State(); s == StateConnected || s == StateDisconnecting {
		c.handleClose()
	}
}

func (c *Connection) handleRead(received time.Time) {
	c.own.CheckInOwnLoop()
	n, err := c.in.ReadFd(c.sock.Int())
	switch {
	case n > 0:
		if c.onMessage != nil {
			c.onMessage(c, c.in, received)
		}
	case n == 0:
		c.handleClose()
	default:
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return
		}
		jww.ERROR.Printf("tcp: %s read failed: %v", c.name, err)
		c.handleError()
	}
}

func (c *Connection) handleWrite() {
	c.own.CheckInOwnLoop()
	if !c.ch.IsWriteEvent() {
		jww.TRACE.Printf("tcp: %s is down, no more writing", c.name)
		return
	}

	n, err := unix.Write(c.sock.Int(), c.out.BeginRead())
	if n > 0 {
		c.out.HasRead(n)
		if c.out.ReadableBytes() == 0 {
			c.ch.DisableWrite()
			if c.onWriteComplete != nil {
				c.own.QueueInOwnLoop(func() { c.onWriteComplete(c) })
			}
			if c.State() == StateDisconnecting {
				c.shutdownInLoop()
			}
		}
		return
	}
	if err != nil && err != unix.EAGAIN && err != unix.EWOULDBLOCK {
		jww.ERROR.Printf("tcp: %s write failed: %v", c.name, err)
	}
}

func (c *Connection) handleClose() {
	c.own.CheckInOwnLoop()
	if s := c.State(); s != StateConnected && s != StateDisconnecting {
		return
	}
	c.setState(StateDisconnected)
	c.ch.DisableAll()

	if c.onConnect != nil {
		c.onConnect(c) // Connected() now reports false
	}
	if c.onClose != nil {
		c.onClose(c) // server/client removes from its map, schedules ConnectDestroyed
	}
}

func (c *Connection) handleError() {
	errno := socketError(c.sock.Int())
	jww.ERROR.Printf("tcp: %s socket error: %v", c.name, errno)
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
