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

// Package endpoint wraps a resolved IPv4/IPv6 socket address, exposing the
// sockaddr-ish accessors the rest of the reactor needs (ip, port, family)
// without leaking net.Addr's allocation-heavy interface into hot paths.
package endpoint

import (
	"context"
	"net"
	"net/netip"
	"strconv"

	"golang.org/x/sys/unix"
)

// Endpoint is a value type wrapping a resolved IP + port. It is safe to
// copy, compare and pass by value; Resolve is the only part that touches
// shared state (the system resolver) and is safe for concurrent use.
type Endpoint struct {
	addr netip.Addr
	port uint16
}

// New builds an Endpoint directly from an already-parsed address and port,
// with no name resolution or loopback-defaulting magic (see EndpointPort).
func New(addr netip.Addr, port uint16) Endpoint {
	return Endpoint{addr: addr, port: port}
}

// EndpointPort builds an Endpoint listening on every interface ("0.0.0.0" or
// "::") on the given port, optionally restricted to loopback only.
func EndpointPort(port uint16, loopbackOnly bool, ipv6 bool) Endpoint {
	var a netip.Addr
	switch {
	case ipv6 && loopbackOnly:
		a = netip.IPv6Loopback()
	case ipv6:
		a = netip.IPv6Unspecified()
	case loopbackOnly:
		a = netip.MustParseAddr("127.0.0.1")
	default:
		a = netip.IPv4Unspecified()
	}
	return Endpoint{addr: a, port: port}
}

// Parse builds an Endpoint from a literal IP string and a port.
func Parse(ip string, port uint16) (Endpoint, error) {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return Endpoint{}, err
	}
	return Endpoint{addr: a, port: port}, nil
}

// Resolve resolves node (hostname or literal IP) and service (port name or
// numeral) into an Endpoint, preferring the first address the system
// resolver returns. It is thread safe: net.DefaultResolver serializes its
// own access to system resolution state.
func Resolve(node, service string) (Endpoint, error) {
	if node == "" || service == "" {
		return Endpoint{}, ErrorParamEmpty.Error()
	}

	ctx := context.Background()

	port, err := net.DefaultResolver.LookupPort(ctx, "tcp", service)
	if err != nil {
		if p, perr := strconv.Atoi(service); perr == nil {
			port = p
		} else {
			return Endpoint{}, ErrorResolve.Error(err)
		}
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", node)
	if err != nil {
		return Endpoint{}, ErrorResolve.Error(err)
	}
	if len(ips) == 0 {
		return Endpoint{}, ErrorResolve.Error(&net.AddrError{Err: "no addresses found", Addr: node})
	}

	a, ok := netip.AddrFromSlice(ips[0])
	if !ok {
		return Endpoint{}, ErrorResolve.Error(&net.AddrError{Err: "unparsable address", Addr: ips[0].String()})
	}
	return Endpoint{addr: a.Unmap(), port: uint16(port)}, nil
}

// IP returns the wrapped address.
func (e Endpoint) IP() netip.Addr { return e.addr }

// Port returns the wrapped port.
func (e Endpoint) Port() uint16 { return e.port }

// ToIP renders the address part only, e.g. "192.168.1.1".
func (e Endpoint) ToIP() string { return e.addr.String() }

// ToPort renders the numeric port.
func (e Endpoint) ToPort() uint16 { return e.port }

// ToIPPort renders "ip:port", bracketing IPv6 addresses.
func (e Endpoint) ToIPPort() string {
	return net.JoinHostPort(e.addr.String(), strconv.Itoa(int(e.port)))
}

// IsIPv6 reports whether the endpoint holds an IPv6 address.
func (e Endpoint) IsIPv6() bool { return e.addr.Is6() && !e.addr.Is4In6() }

// Family returns AF_INET or AF_INET6, for socket(2)/bind(2) calls.
func (e Endpoint) Family() int {
	if e.IsIPv6() {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

// IsValid reports whether the endpoint wraps a parsed address.
func (e Endpoint) IsValid() bool { return e.addr.IsValid() }

// SockAddr converts the endpoint to a unix.Sockaddr suitable for bind(2),
// connect(2) and the acceptor's listen(2) call.
func (e Endpoint) SockAddr() unix.Sockaddr {
	if e.IsIPv6() {
		sa := &unix.SockaddrInet6{Port: int(e.port)}
		sa.Addr = e.addr.As16()
		return sa
	}
	sa := &unix.SockaddrInet4{Port: int(e.port)}
	sa.Addr = e.addr.As4()
	return sa
}

// FromSockAddr converts a unix.Sockaddr (as returned by accept(2) or
// getpeername(2)) back into an Endpoint.
func FromSockAddr(sa unix.Sockaddr) (Endpoint, bool) {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return Endpoint{addr: netip.AddrFrom4(v.Addr), port: uint16(v.Port)}, true
	case *unix.SockaddrInet6:
		return Endpoint{addr: netip.AddrFrom16(v.Addr), port: uint16(v.Port)}, true
	default:
		return Endpoint{}, false
	}
}

// String implements fmt.Stringer as "ip:port", for logging.
func (e Endpoint) String() string { return e.ToIPPort() }
