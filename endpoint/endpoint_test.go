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

package endpoint_test

import (
	"net/netip"

	. "github.com/nabbar/reactor/endpoint"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"golang.org/x/sys/unix"
)

var _ = Describe("Endpoint parsing and formatting", func() {
	It("parses an IPv4 literal and renders ip/port/ip:port", func() {
		e, err := Parse("192.168.1.10", 8080)
		Expect(err).NotTo(HaveOccurred())
		Expect(e.ToIP()).To(Equal("192.168.1.10"))
		Expect(e.ToPort()).To(Equal(uint16(8080)))
		Expect(e.ToIPPort()).To(Equal("192.168.1.10:8080"))
		Expect(e.IsIPv6()).To(BeFalse())
		Expect(e.Family()).To(Equal(unix.AF_INET))
	})

	It("parses an IPv6 literal and brackets it in ip:port", func() {
		e, err := Parse("::1", 9090)
		Expect(err).NotTo(HaveOccurred())
		Expect(e.IsIPv6()).To(BeTrue())
		Expect(e.Family()).To(Equal(unix.AF_INET6))
		Expect(e.ToIPPort()).To(Equal("[::1]:9090"))
	})

	It("rejects an empty node or service in Resolve", func() {
		_, err := Resolve("", "80")
		Expect(err).To(HaveOccurred())
	})

	It("round-trips through SockAddr/FromSockAddr", func() {
		e, err := Parse("10.0.0.5", 1234)
		Expect(err).NotTo(HaveOccurred())

		sa := e.SockAddr()
		back, ok := FromSockAddr(sa)
		Expect(ok).To(BeTrue())
		Expect(back.ToIP()).To(Equal(e.ToIP()))
		Expect(back.ToPort()).To(Equal(e.ToPort()))
	})

	It("builds a wildcard listening endpoint via EndpointPort", func() {
		e := EndpointPort(7000, false, false)
		Expect(e.ToIP()).To(Equal("0.0.0.0"))
		Expect(e.ToPort()).To(Equal(uint16(7000)))

		loop := EndpointPort(7000, true, false)
		Expect(loop.ToIP()).To(Equal("127.0.0.1"))
	})

	It("reports IsValid false for the zero value", func() {
		var e Endpoint
		Expect(e.IsValid()).To(BeFalse())
	})

	It("constructs directly from a parsed netip.Addr via New", func() {
		a := netip.MustParseAddr("172.16.0.1")
		e := New(a, 443)
		Expect(e.ToIPPort()).To(Equal("172.16.0.1:443"))
		Expect(e.String()).To(Equal(e.ToIPPort()))
	})
})
