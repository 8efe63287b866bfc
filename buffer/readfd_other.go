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

//go:build !linux

package buffer

import (
	"golang.org/x/sys/unix"
)

// ReadFd is the portable fallback for non-Linux Unix targets: a single
// read(2) into the writable region, grown first if it's small. Platforms
// with readv (BSD, darwin) could use the two-iovec trick too, but the
// reactor's primary target is Linux; this keeps the package building
// elsewhere without duplicating the epoll-era fast path.
func (b *Buffer) ReadFd(fd int) (int, error) {
	if b.WritableBytes() < extensionSize {
		b.ensureWritable(extensionSize)
	}
	n, err := unix.Read(fd, b.BeginWrite())
	if n > 0 {
		b.HasWritten(n)
	}
	return n, err
}
