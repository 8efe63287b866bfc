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

package tcp_test

import (
	"fmt"
	"time"

	"github.com/nabbar/reactor/buffer"
	"github.com/nabbar/reactor/descriptor"
	"github.com/nabbar/reactor/endpoint"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/tcp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/sys/unix"
)

// spawnLoop starts a loop.Loop on a fresh goroutine, since New and Loop
// must share a goroutine, and hands the loop back once it is constructed.
func spawnLoop() (*loop.Loop, <-chan error) {
	ready := make(chan *loop.Loop, 1)
	done := make(chan error, 1)
	go func() {
		l, err := loop.New()
		if err != nil {
			ready <- nil
			done <- err
			return
		}
		l.SetPollTimeout(10 * time.Millisecond)
		ready <- l
		done <- l.Loop()
	}()
	l := <-ready
	return l, done
}

// socketpair returns a connected pair of non-blocking stream sockets: one
// wrapped as a descriptor.FD for the Connection under test, the other as a
// raw fd the test drives directly.
func socketpair() (*descriptor.FD, int) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	Expect(err).NotTo(HaveOccurred())
	Expect(unix.SetNonblock(fds[0], true)).To(Succeed())
	Expect(unix.SetNonblock(fds[1], true)).To(Succeed())
	return descriptor.New(fds[0]), fds[1]
}

var loopback = endpoint.EndpointPort(0, true, false)

var _ = Describe("Connection", func() {
	It("starts Connecting and moves to Connected on ConnectEstablished", func() {
		l, done := spawnLoop()
		Eventually(l.IsRunning).Should(BeTrue())

		own, peer := socketpair()
		defer unix.Close(peer)

		stateCh := make(chan tcp.State, 2)
		l.RunInOwnLoop(func() {
			c := tcp.New(l, "test#1", own, loopback, loopback)
			stateCh <- c.State()
			c.SetConnectCallback(func(c *tcp.Connection) { stateCh <- c.State() })
			c.ConnectEstablished()
		})
		Expect(<-stateCh).To(Equal(tcp.StateConnecting))
		Expect(<-stateCh).To(Equal(tcp.StateConnected))

		l.Quit()
		Eventually(done, time.Second).Should(Receive(BeNil()))
	})

	It("delivers a sent message to the raw peer fd", func() {
		l, done := spawnLoop()
		Eventually(l.IsRunning).Should(BeTrue())

		own, peer := socketpair()
		defer unix.Close(peer)

		connCh := make(chan *tcp.Connection, 1)
		l.RunInOwnLoop(func() {
			c := tcp.New(l, "test#2", own, loopback, loopback)
			c.ConnectEstablished()
			connCh <- c
		})
		c := <-connCh
		c.Send([]byte("hello"))

		Eventually(func() ([]byte, error) {
			buf := make([]byte, 16)
			n, err := unix.Read(peer, buf)
			if err == unix.EAGAIN {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			return buf[:n], nil
		}, time.Second).Should(Equal([]byte("hello")))

		l.Quit()
		Eventually(done, time.Second).Should(Receive(BeNil()))
	})

	It("invokes the message callback when the peer writes", func() {
		l, done := spawnLoop()
		Eventually(l.IsRunning).Should(BeTrue())

		own, peer := socketpair()
		defer unix.Close(peer)

		gotCh := make(chan string, 1)
		l.RunInOwnLoop(func() {
			c := tcp.New(l, "test#3", own, loopback, loopback)
			c.SetMessageCallback(func(c *tcp.Connection, in *buffer.Buffer, ts time.Time) {
				gotCh <- in.TakenAsString(-1)
			})
			c.ConnectEstablished()
		})

		_, err := unix.Write(peer, []byte("ping"))
		Expect(err).NotTo(HaveOccurred())

		Eventually(gotCh, time.Second).Should(Receive(Equal("ping")))

		l.Quit()
		Eventually(done, time.Second).Should(Receive(BeNil()))
	})

	It("serialises cross-thread sends in call order with no interleaving", func() {
		l, done := spawnLoop()
		Eventually(l.IsRunning).Should(BeTrue())

		own, peer := socketpair()
		defer unix.Close(peer)

		connCh := make(chan *tcp.Connection, 1)
		l.RunInOwnLoop(func() {
			c := tcp.New(l, "test#xthread", own, loopback, loopback)
			c.ConnectEstablished()
			connCh <- c
		})
		c := <-connCh

		const rounds = 100
		var want []byte
		for i := 0; i < rounds; i++ {
			msg := []byte(fmt.Sprintf("ping%03d", i))
			c.Send(msg)
			want = append(want, msg...)
		}

		var got []byte
		Eventually(func() int {
			buf := make([]byte, 4096)
			n, err := unix.Read(peer, buf)
			if n > 0 && err == nil {
				got = append(got, buf[:n]...)
			}
			return len(got)
		}, time.Second).Should(Equal(len(want)))
		Expect(got).To(Equal(want))

		l.Quit()
		Eventually(done, time.Second).Should(Receive(BeNil()))
	})

	It("fires the high-water-mark callback once when buffered output crosses the threshold", func() {
		l, done := spawnLoop()
		Eventually(l.IsRunning).Should(BeTrue())

		own, peer := socketpair()
		defer unix.Close(peer)

		markCh := make(chan int, 4)
		l.RunInOwnLoop(func() {
			c := tcp.New(l, "test#hwm", own, loopback, loopback)
			c.SetHighWaterMarkCallback(func(_ *tcp.Connection, outstanding int) {
				markCh <- outstanding
			}, 64*1024)
			c.ConnectEstablished()

			// The peer never reads, so the direct write fills the kernel
			// buffer and the rest lands in the output buffer, crossing the
			// 64 KiB mark on this single send.
			c.Send(make([]byte, 4*1024*1024))
		})

		var outstanding int
		Eventually(markCh, time.Second).Should(Receive(&outstanding))
		Expect(outstanding).To(BeNumerically(">=", 64*1024))
		Consistently(markCh, 100*time.Millisecond).ShouldNot(Receive())

		l.Quit()
		Eventually(done, time.Second).Should(Receive(BeNil()))
	})

	It("fires the close callback after the peer hangs up, and ConnectDestroyed removes the channel", func() {
		l, done := spawnLoop()
		Eventually(l.IsRunning).Should(BeTrue())

		own, peer := socketpair()

		closedCh := make(chan bool, 1)
		l.RunInOwnLoop(func() {
			c := tcp.New(l, "test#4", own, loopback, loopback)
			c.SetCloseCallback(func(c *tcp.Connection) {
				closedCh <- c.Connected()
				l.RunInOwnLoop(c.ConnectDestroyed)
			})
			c.ConnectEstablished()
		})

		unix.Close(peer)

		Eventually(closedCh, time.Second).Should(Receive(BeFalse()))

		l.Quit()
		Eventually(done, time.Second).Should(Receive(BeNil()))
	})
})
