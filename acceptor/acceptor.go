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

// Package acceptor owns a listening socket and turns its readability into
// accepted connections, handed to a callback as a raw descriptor.FD plus
// the peer's endpoint. It also carries the classic libev "idle fd" trick
// for surviving a process-wide file descriptor exhaustion (EMFILE)
// without spinning the loop in a tight accept-fail cycle.
package acceptor

import (
	"time"

	"github.com/nabbar/reactor/channel"
	"github.com/nabbar/reactor/descriptor"
	"github.com/nabbar/reactor/endpoint"

	jww "github.com/spf13/jwalterweatherman"
	"golang.org/x/sys/unix"
)

// NewConnectionCallback receives an accepted connection's descriptor and
// the peer's resolved endpoint. The callback owns sockfd from that point
// on: if it doesn't take ownership it must close it itself.
type NewConnectionCallback func(sockfd *descriptor.FD, peer endpoint.Endpoint)

// Acceptor listens on one address and dispatches accepted connections.
// Like every loop-bound type, its methods must run on the owning loop's
// goroutine.
type Acceptor struct {
	reg channel.Registrar

	listenFD *descriptor.FD
	ch       *channel.Channel

	idleFD *descriptor.FD

	listening bool
	onConn    NewConnectionCallback
}

// New binds and (optionally SO_REUSEPORT) prepares a listening socket on
// addr. Listen must be called separately to actually start accept(2)ing,
// matching the reactor's construct-then-listen split so the caller can
// wire SetNewConnectionCallback first.
func New(reg channel.Registrar, addr endpoint.Endpoint, reusePort bool) (*Acceptor, error) {
	sock, err := descriptor.NewSocket(addr.Family(), unix.SOCK_STREAM)
	if err != nil {
		return nil, ErrorSocket.Error(err)
	}

	if err := unix.SetsockoptInt(sock.Int(), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = sock.Close()
		return nil, ErrorSocket.Error(err)
	}
	if reusePort {
		if err := unix.SetsockoptInt(sock.Int(), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			_ = sock.Close()
			return nil, ErrorSocket.Error(err)
		}
	}

	if err := unix.Bind(sock.Int(), addr.SockAddr()); err != nil {
		_ = sock.Close()
		return nil, ErrorBind.Error(err)
	}

	idle, err := idleFd()
	if err != nil {
		_ = sock.Close()
		return nil, err
	}

	a := &Acceptor{
		reg:      reg,
		listenFD: sock,
		idleFD:   idle,
	}
	a.ch = channel.New(reg, sock.Int())
	a.ch.SetReadCallback(a.handleRead)
	return a, nil
}

// SetNewConnectionCallback wires the handler invoked for each accepted
// connection. Must be set before Listen.
func (a *Acceptor) SetNewConnectionCallback(cb NewConnectionCallback) { a.onConn = cb }

// Listening reports whether Listen has been called.
func (a *Acceptor) Listening() bool { return a.listening }

// Listen starts listen(2)ing and enables read notifications.
func (a *Acceptor) Listen() error {
	a.reg.CheckInOwnLoop()
	if err := unix.Listen(a.listenFD.Int(), unix.SOMAXCONN); err != nil {
		return ErrorListen.Error(err)
	}
	a.listening = true
	a.ch.EnableRead()
	return nil
}

// Close stops accepting and releases the listening socket.
func (a *Acceptor) Close() error {
	a.reg.CheckInOwnLoop()
	a.ch.DisableAll()
	a.ch.Remove()
	_ = a.idleFD.Close()
	return a.listenFD.Close()
}

func (a *Acceptor) handleRead(time.Time) {
	for {
		connfd, sa, err := unix.Accept4(a.listenFD.Int(), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EMFILE || err == unix.ENFILE {
				a.recoverFromDescriptorExhaustion()
				return
			}
			jww.ERROR.Printf("acceptor: accept4 failed: %v", err)
			return
		}

		peer, ok := endpoint.FromSockAddr(sa)
		if !ok {
			jww.WARN.Printf("acceptor: accepted fd=%d with unrecognized sockaddr family", connfd)
		}

		fd := descriptor.New(connfd)
		if a.onConn != nil {
			a.onConn(fd, peer)
		} else {
			_ = fd.Close()
		}
	}
}

// recoverFromDescriptorExhaustion implements the idle-fd trick described
// in libev's documentation (Marc Lehmann): give up one spare fd to accept
// and immediately drop the connection, freeing a slot so the listening
// socket stops reporting readable on every loop pass.
func (a *Acceptor) recoverFromDescriptorExhaustion() {
	_ = a.idleFD.Close()

	connfd, _, err := unix.Accept(a.listenFD.Int())
	if err == nil {
		unix.Close(connfd)
	}

	idle, err := idleFd()
	if err != nil {
		jww.ERROR.Printf("acceptor: could not reopen idle fd after EMFILE: %v", err)
		return
	}
	a.idleFD = idle
}

func idleFd() (*descriptor.FD, error) {
	fd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, ErrorSocket.Error(err)
	}
	return descriptor.New(fd), nil
}
