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

package dispatch_test

import (
	"time"

	"github.com/nabbar/reactor/codec/dispatch"
	"github.com/nabbar/reactor/tcp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var _ = Describe("Table", func() {
	It("routes a message to the handler registered for its descriptor", func() {
		table := dispatch.New()

		var got string
		table.Register(&wrapperspb.StringValue{}, func(_ *tcp.Connection, msg proto.Message, _ time.Time) {
			got = msg.(*wrapperspb.StringValue).GetValue()
		})

		table.OnMessage(nil, "google.protobuf.StringValue", wrapperspb.String("routed"), time.Now())
		Expect(got).To(Equal("routed"))
	})

	It("falls back when no handler is registered for the descriptor", func() {
		table := dispatch.New()

		var fbName string
		table.SetFallbackHandler(func(_ *tcp.Connection, name string, _ proto.Message, _ time.Time) {
			fbName = name
		})

		table.OnMessage(nil, "google.protobuf.Int32Value", wrapperspb.Int32(7), time.Now())
		Expect(fbName).To(Equal("google.protobuf.Int32Value"))
	})

	It("stops routing to a handler after Unregister", func() {
		table := dispatch.New()

		calls := 0
		table.Register(&wrapperspb.StringValue{}, func(*tcp.Connection, proto.Message, time.Time) { calls++ })
		table.Unregister("google.protobuf.StringValue")

		fbCalls := 0
		table.SetFallbackHandler(func(*tcp.Connection, string, proto.Message, time.Time) { fbCalls++ })

		table.OnMessage(nil, "google.protobuf.StringValue", wrapperspb.String("x"), time.Now())
		Expect(calls).To(Equal(0))
		Expect(fbCalls).To(Equal(1))
	})
})
