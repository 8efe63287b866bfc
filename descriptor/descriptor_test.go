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

package descriptor_test

import (
	. "github.com/nabbar/reactor/descriptor"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"golang.org/x/sys/unix"
)

var _ = Describe("FD lifecycle", func() {
	It("creates and closes an eventfd exactly once", func() {
		fd, err := NewEventFd()
		Expect(err).NotTo(HaveOccurred())
		Expect(fd.Int()).To(BeNumerically(">=", 0))
		Expect(fd.Closed()).To(BeFalse())

		Expect(fd.Close()).To(Succeed())
		Expect(fd.Closed()).To(BeTrue())

		// second close is a safe no-op, never double-closes the fd number
		Expect(fd.Close()).To(Succeed())
	})

	It("creates and closes a timerfd", func() {
		fd, err := NewTimerFd()
		Expect(err).NotTo(HaveOccurred())
		defer fd.Close()
		Expect(fd.Int()).To(BeNumerically(">=", 0))
	})

	It("creates a non-blocking, close-on-exec stream socket", func() {
		fd, err := NewSocket(unix.AF_INET, unix.SOCK_STREAM)
		Expect(err).NotTo(HaveOccurred())
		defer fd.Close()

		flags, err := unix.FcntlInt(uintptr(fd.Int()), unix.F_GETFL, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(flags & unix.O_NONBLOCK).NotTo(BeZero())
	})

	It("wraps an externally obtained fd via New without creating one", func() {
		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		Expect(err).NotTo(HaveOccurred())

		a := New(fds[0])
		b := New(fds[1])
		defer b.Close()

		Expect(a.Int()).To(Equal(fds[0]))
		Expect(a.Close()).To(Succeed())
	})
})
