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

package channel_test

import (
	"time"

	. "github.com/nabbar/reactor/channel"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"golang.org/x/sys/unix"
)

type fakeRegistrar struct {
	updated int
	removed int
}

func (f *fakeRegistrar) UpdateChannel(c *Channel) { f.updated++ }
func (f *fakeRegistrar) RemoveChannel(c *Channel) { f.removed++ }
func (f *fakeRegistrar) CheckInOwnLoop()          {}

var _ = Describe("Channel interest set", func() {
	var (
		reg *fakeRegistrar
		ch  *Channel
	)

	BeforeEach(func() {
		reg = &fakeRegistrar{}
		ch = New(reg, 42)
	})

	It("starts with no interest registered", func() {
		Expect(ch.IsNoneEvent()).To(BeTrue())
		Expect(ch.Fd()).To(Equal(42))
	})

	It("pushes an update to the registrar on EnableRead/EnableWrite", func() {
		ch.EnableRead()
		Expect(ch.IsReadEvent()).To(BeTrue())
		Expect(reg.updated).To(Equal(1))

		ch.EnableWrite()
		Expect(ch.IsWriteEvent()).To(BeTrue())
		Expect(reg.updated).To(Equal(2))

		ch.DisableWrite()
		Expect(ch.IsWriteEvent()).To(BeFalse())
		Expect(ch.IsReadEvent()).To(BeTrue())
	})

	It("removes itself once the interest set is empty", func() {
		ch.EnableRead()
		ch.DisableAll()
		Expect(ch.IsNoneEvent()).To(BeTrue())
		ch.Remove()
		Expect(reg.removed).To(Equal(1))
	})

	It("panics if Remove is called while interest is non-empty", func() {
		ch.EnableRead()
		Expect(func() { ch.Remove() }).To(Panic())
	})

	It("dispatches read callback on EPOLLIN and write callback on EPOLLOUT", func() {
		var readFired, writeFired bool
		ch.SetReadCallback(func(t time.Time) { readFired = true })
		ch.SetWriteCallback(func() { writeFired = true })

		ch.SetReady(Event(unix.EPOLLIN))
		ch.HandleEvent(time.Now())
		Expect(readFired).To(BeTrue())
		Expect(writeFired).To(BeFalse())

		readFired = false
		ch.SetReady(Event(unix.EPOLLOUT))
		ch.HandleEvent(time.Now())
		Expect(readFired).To(BeFalse())
		Expect(writeFired).To(BeTrue())
	})

	It("dispatches close callback on a bare EPOLLHUP and also fires read on HUP", func() {
		var closed, read bool
		ch.SetCloseCallback(func() { closed = true })
		ch.SetReadCallback(func(t time.Time) { read = true })

		ch.SetReady(Event(unix.EPOLLHUP))
		ch.HandleEvent(time.Now())
		Expect(closed).To(BeTrue())
		Expect(read).To(BeTrue())
	})

	It("does not treat HUP as close when EPOLLIN is also set", func() {
		var closed bool
		ch.SetCloseCallback(func() { closed = true })

		ch.SetReady(Event(unix.EPOLLHUP) | Event(unix.EPOLLIN))
		ch.HandleEvent(time.Now())
		Expect(closed).To(BeFalse())
	})

	It("dispatches the error callback on EPOLLERR", func() {
		var errored bool
		ch.SetErrorCallback(func() { errored = true })
		ch.SetReady(Event(unix.EPOLLERR))
		ch.HandleEvent(time.Now())
		Expect(errored).To(BeTrue())
	})

	It("renders a human readable interest set", func() {
		ch.EnableRead()
		Expect(ch.Interest().String()).To(Equal("IN|PRI"))
	})
})
