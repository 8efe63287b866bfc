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

package client_test

import (
	"net"
	"time"

	"github.com/nabbar/reactor/buffer"
	"github.com/nabbar/reactor/client"
	"github.com/nabbar/reactor/endpoint"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/tcp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// spawnLoop starts a loop.Loop on a fresh goroutine and hands it back once
// constructed, since New and Loop must share a goroutine.
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

var _ = Describe("Client", func() {
	It("connects, receives a message, and clears Connection() after Disconnect", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:18140")
		Expect(err).NotTo(HaveOccurred())
		defer ln.Close()

		l, done := spawnLoop()
		Eventually(l.IsRunning).Should(BeTrue())

		ep, err := endpoint.Parse("127.0.0.1", 18140)
		Expect(err).NotTo(HaveOccurred())

		cli := client.New(l, ep, "cli")
		connectCh := make(chan string, 1)
		msgCh := make(chan string, 1)
		cli.SetConnectCallback(func(c *tcp.Connection) { connectCh <- c.Name() })
		cli.SetMessageCallback(func(c *tcp.Connection, in *buffer.Buffer, _ time.Time) {
			msgCh <- in.TakenAsString(-1)
		})
		cli.Connect()

		accepted, err := ln.Accept()
		Expect(err).NotTo(HaveOccurred())

		var name string
		Eventually(connectCh, time.Second).Should(Receive(&name))
		Expect(name).To(ContainSubstring("cli#"))
		Expect(cli.Connection()).NotTo(BeNil())

		_, err = accepted.Write([]byte("hi"))
		Expect(err).NotTo(HaveOccurred())
		Eventually(msgCh, time.Second).Should(Receive(Equal("hi")))

		cli.Disconnect()
		// Shutdown only half-closes; the close path completes once the
		// peer closes its side in response.
		Expect(accepted.Close()).To(Succeed())
		Eventually(cli.Connection, time.Second).Should(BeNil())
		l.Quit()
		Eventually(done, time.Second).Should(Receive(BeNil()))
	})

	It("reconnects on drop when EnableRetry is set", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:18141")
		Expect(err).NotTo(HaveOccurred())
		defer ln.Close()

		l, done := spawnLoop()
		Eventually(l.IsRunning).Should(BeTrue())

		ep, err := endpoint.Parse("127.0.0.1", 18141)
		Expect(err).NotTo(HaveOccurred())

		cli := client.New(l, ep, "cli")
		connectCh := make(chan string, 2)
		cli.SetConnectCallback(func(c *tcp.Connection) {
			if c.Connected() {
				connectCh <- c.Name()
			}
		})
		cli.EnableRetry()
		Expect(cli.Retry()).To(BeTrue())
		cli.Connect()

		first, err := ln.Accept()
		Expect(err).NotTo(HaveOccurred())

		var firstName string
		Eventually(connectCh, time.Second).Should(Receive(&firstName))

		Expect(first.Close()).To(Succeed())

		second, err := ln.Accept()
		Expect(err).NotTo(HaveOccurred())
		defer second.Close()

		var secondName string
		Eventually(connectCh, time.Second).Should(Receive(&secondName))
		Expect(secondName).NotTo(Equal(firstName))

		cli.Stop()
		l.Quit()
		Eventually(done, time.Second).Should(Receive(BeNil()))
	})
})
