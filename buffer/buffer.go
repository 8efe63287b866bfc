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

// Package buffer implements the growable ring-of-bytes used on both sides
// of a TCP connection: a prependable | readable | writable region tracked
// by two monotonic offsets, with typed network-byte-order accessors and a
// scatter-read helper for draining a socket in one syscall.
package buffer

import (
	"encoding/binary"
)

// UnlimitSize disables the max-size cap.
const UnlimitSize = -1

// InitialSize is the capacity a zero-value Buffer grows to on first use.
const InitialSize = 1024

// extensionSize is the size of the stack-allocated second iovec used by
// ReadFd so a single large burst doesn't require pre-growing buf.
const extensionSize = 65536

// Buffer is a growable byte buffer with a prependable/readable/writable
// layout: 0 <= readerIndex <= writerIndex <= len(buf). It is not safe for
// concurrent use; each TCP connection owns two private instances (input
// and output) and only ever touches them from its owning loop.
type Buffer struct {
	maxSize     int
	readerIndex int
	writerIndex int
	buf         []byte
}

// New returns an empty Buffer with no cap on growth.
func New() *Buffer {
	return NewSize(UnlimitSize, InitialSize)
}

// NewSize returns an empty Buffer capped at maxSize bytes of readable+
// writable content (UnlimitSize for no cap), pre-allocated to initSize.
func NewSize(maxSize, initSize int) *Buffer {
	if initSize <= 0 {
		initSize = InitialSize
	}
	if maxSize > 0 && initSize > maxSize {
		initSize = maxSize
	}
	return &Buffer{
		maxSize: maxSize,
		buf:     make([]byte, initSize),
	}
}

// ReadableBytes returns the number of bytes available to read.
func (b *Buffer) ReadableBytes() int { return b.writerIndex - b.readerIndex }

// WritableBytes returns the number of bytes that can be appended before a
// grow/compaction is required.
func (b *Buffer) WritableBytes() int { return len(b.buf) - b.writerIndex }

// ReaderIndex returns the current read offset, for codecs that must
// recompute a cursor after a compaction (see codec/delimiter).
func (b *Buffer) ReaderIndex() int { return b.readerIndex }

// WriterIndex returns the current write offset.
func (b *Buffer) WriterIndex() int { return b.writerIndex }

// MaxSize returns the configured cap, or UnlimitSize.
func (b *Buffer) MaxSize() int { return b.maxSize }

// Reset rewinds both indices to zero without releasing the backing array.
func (b *Buffer) Reset() {
	b.readerIndex = 0
	b.writerIndex = 0
}

// BeginRead returns the readable region. The returned slice aliases the
// buffer's storage and is invalidated by any mutating call.
func (b *Buffer) BeginRead() []byte {
	return b.buf[b.readerIndex:b.writerIndex]
}

// BeginWrite returns the writable region. The returned slice aliases the
// buffer's storage and is invalidated by any mutating call.
func (b *Buffer) BeginWrite() []byte {
	return b.buf[b.writerIndex:len(b.buf)]
}

// HasWritten advances the writer index by n, as if n bytes had just been
// written directly into the slice returned by BeginWrite.
func (b *Buffer) HasWritten(n int) {
	if n > b.WritableBytes() {
		n = b.WritableBytes()
	}
	b.writerIndex += n
}

// HasRead advances the reader index by n, or resets both indices to zero
// once every readable byte has been consumed.
func (b *Buffer) HasRead(n int) {
	if n < b.ReadableBytes() {
		b.readerIndex += n
	} else {
		b.Reset()
	}
}

// HasReadAll consumes every readable byte.
func (b *Buffer) HasReadAll() {
	b.Reset()
}

// ToString returns a copy of the readable region.
func (b *Buffer) ToString() string {
	return string(b.BeginRead())
}

// TakenAsString copies the first n readable bytes (or everything, if n<0)
// and consumes them.
func (b *Buffer) TakenAsString(n int) string {
	if n < 0 {
		n = b.ReadableBytes()
	}
	if n > b.ReadableBytes() {
		n = b.ReadableBytes()
	}
	s := string(b.buf[b.readerIndex : b.readerIndex+n])
	b.HasRead(n)
	return s
}

// Append copies data into the writable region, growing or compacting as
// needed. It returns false, without copying any bytes, if MaxSize would
// be exceeded; an over-cap append is dropped whole rather than truncated,
// and callers that must know may check the return value.
func (b *Buffer) Append(data []byte) bool {
	n := len(data)
	if n == 0 {
		return true
	}
	if b.maxSize > 0 && b.ReadableBytes()+n > b.maxSize {
		return false
	}
	b.ensureWritable(n)
	if b.WritableBytes() < n {
		return false
	}
	copy(b.BeginWrite(), data)
	b.HasWritten(n)
	return true
}

// AppendString is Append for a string.
func (b *Buffer) AppendString(s string) bool {
	return b.Append([]byte(s))
}

// ensureWritable guarantees WritableBytes() >= n, compacting the existing
// readable region to offset 0 first if that alone is sufficient, else
// growing the backing array (respecting maxSize).
func (b *Buffer) ensureWritable(n int) {
	if b.WritableBytes() >= n {
		return
	}
	if b.readerIndex > 0 && b.readerIndex+b.WritableBytes() >= n {
		readable := b.ReadableBytes()
		copy(b.buf, b.buf[b.readerIndex:b.writerIndex])
		b.readerIndex = 0
		b.writerIndex = readable
		return
	}
	need := b.writerIndex + n
	newCap := len(b.buf)
	if newCap == 0 {
		newCap = InitialSize
	}
	for newCap < need {
		newCap *= 2
	}
	if b.maxSize > 0 && newCap > b.maxSize {
		newCap = b.maxSize
	}
	grown := make([]byte, newCap)
	copy(grown, b.buf[b.readerIndex:b.writerIndex])
	readable := b.ReadableBytes()
	b.buf = grown
	b.readerIndex = 0
	b.writerIndex = readable
}

// --- typed network-byte-order accessors ---

func (b *Buffer) requireReadable(n int) bool {
	return b.ReadableBytes() >= n
}

// PeekInt8 returns the next byte without consuming it.
func (b *Buffer) PeekInt8() int8 {
	mustReadable(b, 1)
	return int8(b.buf[b.readerIndex])
}

// PeekInt16 returns the next 2 bytes, big-endian, without consuming them.
func (b *Buffer) PeekInt16() int16 {
	mustReadable(b, 2)
	return int16(binary.BigEndian.Uint16(b.buf[b.readerIndex:]))
}

// PeekInt32 returns the next 4 bytes, big-endian, without consuming them.
func (b *Buffer) PeekInt32() int32 {
	mustReadable(b, 4)
	return int32(binary.BigEndian.Uint32(b.buf[b.readerIndex:]))
}

// PeekInt64 returns the next 8 bytes, big-endian, without consuming them.
func (b *Buffer) PeekInt64() int64 {
	mustReadable(b, 8)
	return int64(binary.BigEndian.Uint64(b.buf[b.readerIndex:]))
}

func mustReadable(b *Buffer, n int) {
	if !b.requireReadable(n) {
		panic(ErrorShortRead.Error())
	}
}

// AppendInt8 appends a 1-byte integer.
func (b *Buffer) AppendInt8(v int8) bool {
	return b.Append([]byte{byte(v)})
}

// AppendInt16 appends a 2-byte big-endian integer.
func (b *Buffer) AppendInt16(v int16) bool {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(v))
	return b.Append(tmp[:])
}

// AppendInt32 appends a 4-byte big-endian integer.
func (b *Buffer) AppendInt32(v int32) bool {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	return b.Append(tmp[:])
}

// AppendInt64 appends an 8-byte big-endian integer.
func (b *Buffer) AppendInt64(v int64) bool {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	return b.Append(tmp[:])
}

// ReadInt8 consumes and returns the next byte.
func (b *Buffer) ReadInt8() int8 {
	v := b.PeekInt8()
	b.HasRead(1)
	return v
}

// ReadInt16 consumes and returns the next 2 bytes, big-endian.
func (b *Buffer) ReadInt16() int16 {
	v := b.PeekInt16()
	b.HasRead(2)
	return v
}

// ReadInt32 consumes and returns the next 4 bytes, big-endian.
func (b *Buffer) ReadInt32() int32 {
	v := b.PeekInt32()
	b.HasRead(4)
	return v
}

// ReadInt64 consumes and returns the next 8 bytes, big-endian.
func (b *Buffer) ReadInt64() int64 {
	v := b.PeekInt64()
	b.HasRead(8)
	return v
}
