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

// Package server wires an Acceptor and an optional worker loop.Pool to
// tcp.Connection, supporting both a single-threaded model (all connections
// run on the owning loop) and a thread-pool model (each accepted connection
// is handed to one worker loop, round-robin or by hash).
package server

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/nabbar/reactor/acceptor"
	"github.com/nabbar/reactor/descriptor"
	"github.com/nabbar/reactor/endpoint"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/loop/pool"
	"github.com/nabbar/reactor/tcp"

	jww "github.com/spf13/jwalterweatherman"
)

// ThreadInitCallback runs once per worker loop, right after it is created.
type ThreadInitCallback func(workerID string, l *loop.Loop)

// Server listens on one address and hands every accepted connection to a
// tcp.Connection, optionally spread across a pool of worker loops. Start
// must run on the owning loop; the user-facing Set* callbacks must be
// called before Start.
type Server struct {
	own  *loop.Loop
	name string
	addr endpoint.Endpoint

	acc  *acceptor.Acceptor
	pool *pool.Pool

	threadNum  int
	threadInit ThreadInitCallback

	started int32 // atomic test-and-set so Start is idempotent

	onConnect       tcp.ConnectCallback
	onMessage       tcp.MessageCallback
	onWriteComplete tcp.WriteCompleteCallback
	onHighWaterMark tcp.HighWaterMarkCallback
	onClose         tcp.CloseCallback

	nextConnID int64

	mu    sync.Mutex
	conns map[string]*tcp.Connection
}

// New prepares (but does not start) a server bound to addr. reusePort
// sets SO_REUSEPORT on the listening socket at bind time.
func New(own *loop.Loop, addr endpoint.Endpoint, name string, reusePort bool) (*Server, error) {
	s := &Server{
		own:   own,
		name:  name,
		addr:  addr,
		conns: make(map[string]*tcp.Connection),
	}
	s.pool = pool.New(own)

	a, err := acceptor.New(own, addr, reusePort)
	if err != nil {
		return nil, err
	}
	a.SetNewConnectionCallback(s.newConnection)
	s.acc = a
	return s, nil
}

// Name returns the server's identifier.
func (s *Server) Name() string { return s.name }

// IPPort returns the bound "ip:port".
func (s *Server) IPPort() string { return s.addr.ToIPPort() }

// Loop returns the owning event loop.
func (s *Server) Loop() *loop.Loop { return s.own }

// SetThreadNum sets the worker-pool size; 0 (the default) keeps every
// connection on the owning loop. Must be called before Start.
func (s *Server) SetThreadNum(n int) { s.threadNum = n }

// SetThreadInitCallback wires a hook that runs once per worker loop, before
// it processes any channel. Must be called before Start.
func (s *Server) SetThreadInitCallback(cb ThreadInitCallback) { s.threadInit = cb }

// SetConnectCallback/SetMessageCallback/SetWriteCompleteCallback/
// SetHighWaterMarkCallback/SetCloseCallback wire the handlers propagated to
// every connection the server accepts. Must be called before Start.
func (s *Server) SetConnectCallback(cb tcp.ConnectCallback)             { s.onConnect = cb }
func (s *Server) SetMessageCallback(cb tcp.MessageCallback)             { s.onMessage = cb }
func (s *Server) SetWriteCompleteCallback(cb tcp.WriteCompleteCallback) { s.onWriteComplete = cb }
func (s *Server) SetHighWaterMarkCallback(cb tcp.HighWaterMarkCallback) { s.onHighWaterMark = cb }
func (s *Server) SetCloseCallback(cb tcp.CloseCallback)                 { s.onClose = cb }

// Start is idempotent: the first caller spins up the worker pool (if
// SetThreadNum was given a positive count) and arms the acceptor. Must run
// on the owning loop.
func (s *Server) Start() error {
	s.own.CheckInOwnLoop()
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return nil
	}

	if err := s.pool.Start(s.threadNum, func(id string, l *loop.Loop) {
		if s.threadInit != nil {
			s.threadInit(id, l)
		}
	}); err != nil {
		return err
	}

	jww.INFO.Printf("server: %s listening on %s (workers=%d)", s.name, s.addr, s.pool.Size())
	return s.acc.Listen()
}

// newConnection is the Acceptor's callback: runs on the owning loop.
func (s *Server) newConnection(sockfd *descriptor.FD, peer endpoint.Endpoint) {
	s.own.CheckInOwnLoop()

	workerLoop := s.pool.GetNextLoop()

	id := atomic.AddInt64(&s.nextConnID, 1)
	name := s.name + "#" + s.addr.ToIPPort() + "#" + strconv.FormatInt(id, 10)

	local, err := localAddr(sockfd, peer.Family())
	if err != nil {
		jww.WARN.Printf("server: %s could not resolve local addr for %s: %v", s.name, name, err)
		local = s.addr
	}

	workerLoop.RunInOwnLoop(func() {
		conn := tcp.New(workerLoop, name, sockfd, local, peer)
		conn.SetConnectCallback(s.onConnect)
		conn.SetMessageCallback(s.onMessage)
		conn.SetWriteCompleteCallback(s.onWriteComplete)
		if s.onHighWaterMark != nil {
			conn.SetHighWaterMarkCallback(s.onHighWaterMark, tcp.DefaultHighWaterMark)
		}
		conn.SetCloseCallback(s.removeConnection)

		s.mu.Lock()
		s.conns[name] = conn
		s.mu.Unlock()

		conn.ConnectEstablished()
	})
}

// removeConnection is the connection's close callback: it always runs on
// the connection's own worker loop, but the map mutation itself is
// dispatched back onto the server's owning loop so s.conns removal is
// serialised with the accept path that inserts into it.
func (s *Server) removeConnection(conn *tcp.Connection) {
	if s.onClose != nil {
		s.onClose(conn)
	}
	s.own.RunInOwnLoop(func() {
		s.mu.Lock()
		delete(s.conns, conn.Name())
		s.mu.Unlock()

		conn.Loop().QueueInOwnLoop(conn.ConnectDestroyed)
	})
}

// Connections returns a snapshot of every currently tracked connection.
func (s *Server) Connections() []*tcp.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*tcp.Connection, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

// Close forces every still-open connection through its close path on its
// own worker loop, then tears down the acceptor and the worker pool.
func (s *Server) Close() error {
	for _, c := range s.Connections() {
		c.ForceClose()
	}

	accDone := make(chan error, 1)
	s.own.RunInOwnLoop(func() { accDone <- s.acc.Close() })
	accErr := <-accDone

	if err := s.pool.Close(); err != nil {
		return err
	}
	return accErr
}
