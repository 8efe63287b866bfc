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

package typed_test

import (
	"time"

	"github.com/nabbar/reactor/buffer"
	"github.com/nabbar/reactor/codec/typed"
	"github.com/nabbar/reactor/tcp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var _ = Describe("Codec", func() {
	It("round-trips a well-known message without a checksum", func() {
		c := typed.New(false)

		var gotName string
		var gotMsg proto.Message
		c.SetMessageCallback(func(_ *tcp.Connection, name string, msg proto.Message, _ time.Time) {
			gotName = name
			gotMsg = msg
		})

		wire, err := c.Encode(wrapperspb.String("hello reactor"))
		Expect(err).NotTo(HaveOccurred())

		in := buffer.New()
		Expect(in.Append(wire)).To(BeTrue())
		c.OnMessage(nil, in, time.Now())

		Expect(gotName).To(Equal("google.protobuf.StringValue"))
		Expect(gotMsg).To(BeAssignableToTypeOf(&wrapperspb.StringValue{}))
		Expect(gotMsg.(*wrapperspb.StringValue).GetValue()).To(Equal("hello reactor"))
	})

	It("round-trips with a trailing CRC32 enabled", func() {
		c := typed.New(true)

		var got string
		c.SetMessageCallback(func(_ *tcp.Connection, _ string, msg proto.Message, _ time.Time) {
			got = msg.(*wrapperspb.StringValue).GetValue()
		})

		wire, err := c.Encode(wrapperspb.String("checked"))
		Expect(err).NotTo(HaveOccurred())

		in := buffer.New()
		Expect(in.Append(wire)).To(BeTrue())
		c.OnMessage(nil, in, time.Now())

		Expect(got).To(Equal("checked"))
	})

	It("waits for the rest of the frame when only a partial frame is buffered", func() {
		c := typed.New(false)
		calls := 0
		c.SetMessageCallback(func(*tcp.Connection, string, proto.Message, time.Time) { calls++ })

		wire, err := c.Encode(wrapperspb.String("partial"))
		Expect(err).NotTo(HaveOccurred())

		in := buffer.New()
		Expect(in.Append(wire[:len(wire)-3])).To(BeTrue())
		c.OnMessage(nil, in, time.Now())
		Expect(calls).To(Equal(0))

		Expect(in.Append(wire[len(wire)-3:])).To(BeTrue())
		c.OnMessage(nil, in, time.Now())
		Expect(calls).To(Equal(1))
	})
})
