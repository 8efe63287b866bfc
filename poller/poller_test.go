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

package poller_test

import (
	"time"

	"github.com/nabbar/reactor/channel"
	"github.com/nabbar/reactor/poller"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"golang.org/x/sys/unix"
)

// adapter satisfies channel.Registrar by forwarding to a poller.Poller and
// swallowing the error the way loop.Loop does (logging it in production).
type adapter struct {
	p poller.Poller
}

func (a *adapter) UpdateChannel(c *channel.Channel) { _ = a.p.UpdateChannel(c) }
func (a *adapter) RemoveChannel(c *channel.Channel) { _ = a.p.RemoveChannel(c) }
func (a *adapter) CheckInOwnLoop()                  {}

var _ = Describe("Epoll poller", func() {
	var (
		p   *poller.Epoll
		reg *adapter
		r0  int
		w0  int
	)

	BeforeEach(func() {
		var err error
		p, err = poller.New()
		Expect(err).NotTo(HaveOccurred())
		reg = &adapter{p: p}

		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		Expect(err).NotTo(HaveOccurred())
		r0, w0 = fds[0], fds[1]
	})

	AfterEach(func() {
		unix.Close(r0)
		unix.Close(w0)
		p.Close()
	})

	It("reports a registered channel as ready once data arrives", func() {
		ch := channel.New(reg, r0)
		ch.EnableRead()
		Expect(p.HasChannel(ch)).To(BeTrue())

		_, err := unix.Write(w0, []byte("x"))
		Expect(err).NotTo(HaveOccurred())

		active, _, err := p.Poll(time.Second, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(active).To(ContainElement(ch))
	})

	It("stops reporting a channel once its interest is disabled and removed", func() {
		ch := channel.New(reg, r0)
		ch.EnableRead()
		ch.DisableAll()
		ch.Remove()
		Expect(p.HasChannel(ch)).To(BeFalse())
	})

	It("returns promptly with no ready channels when nothing fires", func() {
		ch := channel.New(reg, r0)
		ch.EnableRead()

		active, _, err := p.Poll(10*time.Millisecond, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(active).To(BeEmpty())
		_ = ch
	})
})

var _ = Describe("Poll poller", func() {
	var (
		p   *poller.Poll
		reg *adapter
		r0  int
		w0  int
	)

	BeforeEach(func() {
		var err error
		p, err = poller.NewPoll()
		Expect(err).NotTo(HaveOccurred())
		reg = &adapter{p: p}

		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		Expect(err).NotTo(HaveOccurred())
		r0, w0 = fds[0], fds[1]
	})

	AfterEach(func() {
		unix.Close(r0)
		unix.Close(w0)
		p.Close()
	})

	It("reports a registered channel as ready once data arrives", func() {
		ch := channel.New(reg, r0)
		ch.EnableRead()
		Expect(p.HasChannel(ch)).To(BeTrue())

		_, err := unix.Write(w0, []byte("x"))
		Expect(err).NotTo(HaveOccurred())

		active, _, err := p.Poll(time.Second, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(active).To(ContainElement(ch))
	})

	It("keeps its dense pollfd array consistent across removals", func() {
		other := channel.New(reg, w0)
		other.EnableRead()
		ch := channel.New(reg, r0)
		ch.EnableRead()

		other.DisableAll()
		other.Remove()
		Expect(p.HasChannel(other)).To(BeFalse())
		Expect(p.HasChannel(ch)).To(BeTrue())

		_, err := unix.Write(w0, []byte("x"))
		Expect(err).NotTo(HaveOccurred())

		active, _, err := p.Poll(time.Second, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(active).To(ContainElement(ch))
	})
})
