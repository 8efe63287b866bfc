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

package server

import (
	"github.com/nabbar/reactor/descriptor"
	"github.com/nabbar/reactor/endpoint"

	"golang.org/x/sys/unix"
)

// localAddr resolves the local side of an accepted socket via
// getsockname(2), used to populate tcp.Connection's LocalAddr.
func localAddr(fd *descriptor.FD, _ int) (endpoint.Endpoint, error) {
	sa, err := unix.Getsockname(fd.Int())
	if err != nil {
		return endpoint.Endpoint{}, ErrorGetsockname.Error(err)
	}
	ep, ok := endpoint.FromSockAddr(sa)
	if !ok {
		return endpoint.Endpoint{}, ErrorGetsockname.Error()
	}
	return ep, nil
}
