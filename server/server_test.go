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

package server_test

import (
	"net"
	"time"

	"github.com/nabbar/reactor/buffer"
	"github.com/nabbar/reactor/endpoint"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/server"
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

var _ = Describe("Server", func() {
	It("accepts a connection, echoes what it receives, and tracks it in Connections", func() {
		l, done := spawnLoop()
		Eventually(l.IsRunning).Should(BeTrue())

		ep, err := endpoint.Parse("127.0.0.1", 18120)
		Expect(err).NotTo(HaveOccurred())

		srv, err := server.New(l, ep, "echo", false)
		Expect(err).NotTo(HaveOccurred())

		connectedCh := make(chan string, 1)
		srv.SetConnectCallback(func(c *tcp.Connection) { connectedCh <- c.Name() })
		srv.SetMessageCallback(func(c *tcp.Connection, in *buffer.Buffer, _ time.Time) {
			c.Send([]byte(in.TakenAsString(-1)))
		})

		l.RunInOwnLoop(func() {
			Expect(srv.Start()).To(Succeed())
		})

		// Start is queued onto the loop; dial with a retry so the test
		// doesn't race the listen call.
		var client net.Conn
		Eventually(func() error {
			var derr error
			client, derr = net.Dial("tcp", "127.0.0.1:18120")
			return derr
		}, time.Second).Should(Succeed())
		defer client.Close()

		var name string
		Eventually(connectedCh, time.Second).Should(Receive(&name))
		Expect(name).To(ContainSubstring("echo#"))
		Eventually(srv.Connections, time.Second).Should(HaveLen(1))

		_, err = client.Write([]byte("ping"))
		Expect(err).NotTo(HaveOccurred())

		reply := make([]byte, 4)
		Expect(client.SetReadDeadline(time.Now().Add(time.Second))).To(Succeed())
		_, err = client.Read(reply)
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal([]byte("ping")))

		Expect(client.Close()).To(Succeed())
		Eventually(srv.Connections, time.Second).Should(BeEmpty())

		Expect(srv.Close()).To(Succeed())
		l.Quit()
		Eventually(done, time.Second).Should(Receive(BeNil()))
	})
})
