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

package buffer_test

import (
	"math"
	"math/rand"

	. "github.com/nabbar/reactor/buffer"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Buffer append/read integrity", func() {
	It("concatenates successive reads back into the appended stream", func() {
		b := New()
		var want []byte

		for i := 0; i < 200; i++ {
			chunk := make([]byte, rand.Intn(37))
			_, _ = rand.Read(chunk)
			Expect(b.Append(chunk)).To(BeTrue())
			want = append(want, chunk...)

			if i%3 == 0 && b.ReadableBytes() > 0 {
				n := rand.Intn(b.ReadableBytes() + 1)
				got := append([]byte(nil), b.BeginRead()[:n]...)
				Expect(got).To(Equal(want[:n]))
				b.HasRead(n)
				want = want[n:]
			}
		}

		Expect(b.TakenAsString(-1)).To(Equal(string(want)))
		Expect(b.ReadableBytes()).To(Equal(0))
	})

	It("resets both indices to zero after consuming everything", func() {
		b := New()
		Expect(b.Append([]byte("hello"))).To(BeTrue())
		b.HasReadAll()
		Expect(b.ReaderIndex()).To(Equal(0))
		Expect(b.WriterIndex()).To(Equal(0))
	})

	It("compacts in place before growing when the prefix would satisfy the request", func() {
		b := NewSize(UnlimitSize, 16)
		Expect(b.Append([]byte("0123456789"))).To(BeTrue())
		b.HasRead(8)
		capBefore := b.WriterIndex() + b.WritableBytes()
		Expect(b.Append([]byte("ABCDEFGH"))).To(BeTrue())
		Expect(b.ReaderIndex()).To(Equal(0), "compaction should have rebased the reader index to 0")
		Expect(b.WriterIndex() + b.WritableBytes()).To(Equal(capBefore), "compaction alone satisfied the request, no grow expected")
		Expect(b.ToString()).To(Equal("89ABCDEFGH"))
	})

	It("silently drops an append that would exceed max size", func() {
		b := NewSize(4, 4)
		Expect(b.Append([]byte("12345"))).To(BeFalse())
		Expect(b.ReadableBytes()).To(Equal(0))
	})
})

var _ = Describe("Network-order round trip", func() {
	It("round-trips every representable int8", func() {
		for v := -128; v <= 127; v++ {
			b := New()
			b.AppendInt8(int8(v))
			Expect(b.PeekInt8()).To(Equal(int8(v)))
		}
	})

	It("round-trips a sample of int16/int32/int64 values", func() {
		b := New()
		vals16 := []int16{math.MinInt16, -1, 0, 1, math.MaxInt16}
		for _, v := range vals16 {
			b.Reset()
			b.AppendInt16(v)
			Expect(b.PeekInt16()).To(Equal(v))
			Expect(b.ReadInt16()).To(Equal(v))
		}

		vals32 := []int32{math.MinInt32, -1, 0, 1, math.MaxInt32}
		for _, v := range vals32 {
			b.Reset()
			b.AppendInt32(v)
			Expect(b.PeekInt32()).To(Equal(v))
			Expect(b.ReadInt32()).To(Equal(v))
		}

		vals64 := []int64{math.MinInt64, -1, 0, 1, math.MaxInt64}
		for _, v := range vals64 {
			b.Reset()
			b.AppendInt64(v)
			Expect(b.PeekInt64()).To(Equal(v))
			Expect(b.ReadInt64()).To(Equal(v))
		}
	})

	It("reads values in network (big-endian) byte order", func() {
		b := New()
		b.AppendInt32(0x01020304)
		raw := b.BeginRead()
		Expect(raw[:4]).To(Equal([]byte{0x01, 0x02, 0x03, 0x04}))
	})
})
