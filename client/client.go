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

// Package client wires a connector.Connector to tcp.Connection, adding
// reconnect-on-drop semantics on top of a bare Connector: a successful
// connect installs a Connection, and losing it restarts the connector's
// backoff from its initial delay when retry is enabled.
package client

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/nabbar/reactor/connector"
	"github.com/nabbar/reactor/descriptor"
	"github.com/nabbar/reactor/endpoint"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/tcp"

	"golang.org/x/sys/unix"
)

// Client dials one server address, optionally reconnecting after the
// connection drops. Connect/Disconnect/Stop are safe from any goroutine;
// the Set* callback wiring must happen before Connect.
type Client struct {
	own  *loop.Loop
	name string
	addr endpoint.Endpoint

	conn *connector.Connector

	retry  int32 // atomic bool
	intent int32 // atomic bool: connect_intent_
	nextID int64

	onConnect       tcp.ConnectCallback
	onMessage       tcp.MessageCallback
	onWriteComplete tcp.WriteCompleteCallback
	onClose         tcp.CloseCallback

	mu      sync.Mutex
	current *tcp.Connection
}

// New prepares (but does not start) a client targeting addr.
func New(own *loop.Loop, addr endpoint.Endpoint, name string) *Client {
	c := &Client{
		own:  own,
		name: name,
		addr: addr,
	}
	c.conn = connector.New(own, addr)
	c.conn.SetNewConnectCallback(c.newConnection)
	c.conn.SetErrorCallback(func(error) {})
	return c
}

// Name returns the client's identifier.
func (c *Client) Name() string { return c.name }

// Loop returns the owning event loop.
func (c *Client) Loop() *loop.Loop { return c.own }

// EnableRetry turns on reconnection after the current connection drops.
func (c *Client) EnableRetry() { atomic.StoreInt32(&c.retry, 1) }

// Retry reports whether reconnection is enabled.
func (c *Client) Retry() bool { return atomic.LoadInt32(&c.retry) != 0 }

// SetConnectCallback/SetMessageCallback/SetWriteCompleteCallback wire the
// handlers propagated to every connection this client establishes. Must be
// called before Connect.
func (c *Client) SetConnectCallback(cb tcp.ConnectCallback)             { c.onConnect = cb }
func (c *Client) SetMessageCallback(cb tcp.MessageCallback)             { c.onMessage = cb }
func (c *Client) SetWriteCompleteCallback(cb tcp.WriteCompleteCallback) { c.onWriteComplete = cb }

// SetCloseCallback wires a user hook observed right before the dropped
// connection is released (and before any reconnect attempt).
func (c *Client) SetCloseCallback(cb tcp.CloseCallback) { c.onClose = cb }

// Connection returns the currently established connection, or nil.
func (c *Client) Connection() *tcp.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Connect marks the client as wanting a connection and starts the
// connector. Safe to call from any goroutine.
func (c *Client) Connect() {
	atomic.StoreInt32(&c.intent, 1)
	c.conn.Start()
}

// Disconnect leaves the retry flag untouched but stops wanting a new
// connection and shuts down the current one, if any. Safe to call from any
// goroutine.
func (c *Client) Disconnect() {
	atomic.StoreInt32(&c.intent, 0)
	if cc := c.Connection(); cc != nil {
		cc.Shutdown()
	}
}

// Stop is Disconnect plus cancelling the connector outright (no further
// retry attempts, in-flight connect abandoned). Safe to call from any
// goroutine.
func (c *Client) Stop() {
	atomic.StoreInt32(&c.intent, 0)
	c.conn.Stop()
	if cc := c.Connection(); cc != nil {
		cc.Shutdown()
	}
}

func (c *Client) newConnection(sockfd *descriptor.FD, server endpoint.Endpoint) {
	c.own.CheckInOwnLoop()

	id := atomic.AddInt64(&c.nextID, 1)
	name := c.name + "#" + server.ToIPPort() + "#" + strconv.FormatInt(id, 10)

	local, _ := localAddrOf(sockfd)

	conn := tcp.New(c.own, name, sockfd, local, server)
	conn.SetConnectCallback(c.onConnect)
	conn.SetMessageCallback(c.onMessage)
	conn.SetWriteCompleteCallback(c.onWriteComplete)
	conn.SetCloseCallback(c.removeConnection)

	c.mu.Lock()
	c.current = conn
	c.mu.Unlock()

	conn.ConnectEstablished()
}

// removeConnection runs on the owning loop (it's a tcp.CloseCallback,
// dispatched from Connection.handleClose which already asserts that).
func (c *Client) removeConnection(conn *tcp.Connection) {
	c.own.CheckInOwnLoop()

	if c.onClose != nil {
		c.onClose(conn)
	}

	c.mu.Lock()
	if c.current == conn {
		c.current = nil
	}
	c.mu.Unlock()

	conn.Loop().QueueInOwnLoop(conn.ConnectDestroyed)

	if c.Retry() && atomic.LoadInt32(&c.intent) != 0 {
		c.conn.Restart()
	}
}

func localAddrOf(fd *descriptor.FD) (endpoint.Endpoint, bool) {
	sa, err := unix.Getsockname(fd.Int())
	if err != nil {
		return endpoint.Endpoint{}, false
	}
	return endpoint.FromSockAddr(sa)
}
