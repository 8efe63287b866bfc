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

package buffer

import (
	"golang.org/x/sys/unix"
)

// ReadFd absorbs a burst of bytes from fd in a single readv(2) syscall,
// using the writable region plus a stack-allocated extension as a second
// iovec entry so large reads don't require pre-growing buf. It returns the
// number of bytes read (0 meaning EOF) and the syscall error, if any.
func (b *Buffer) ReadFd(fd int) (int, error) {
	var extension [extensionSize]byte

	writable := b.BeginWrite()
	iov := make([][]byte, 0, 2)
	iov = append(iov, writable)
	if len(writable) < extensionSize {
		iov = append(iov, extension[:])
	}

	n, err := unix.Readv(fd, iov)
	if n <= 0 {
		return n, err
	}

	if n <= len(writable) {
		b.HasWritten(n)
	} else {
		b.HasWritten(len(writable))
		b.Append(extension[:n-len(writable)])
	}
	return n, err
}
