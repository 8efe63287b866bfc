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

// Package length implements the length-prefixed framing codec: a fixed-width
// big-endian byte count followed by that many payload bytes. The prefix
// carries the payload length only -- never a length that also covers
// itself or a trailing checksum.
package length

import (
	"encoding/binary"
	"time"

	"github.com/nabbar/reactor/buffer"
	"github.com/nabbar/reactor/tcp"

	jww "github.com/spf13/jwalterweatherman"
)

// Width is a prefix width in bytes. Only the four listed values are valid.
type Width int

const (
	Width1 Width = 1
	Width2 Width = 2
	Width4 Width = 4
	Width8 Width = 8
)

// MessageCallback fires once per fully-framed payload. The slice is only
// valid for the duration of the call -- copy it to retain it.
type MessageCallback func(conn *tcp.Connection, payload []byte, received time.Time)

// Codec frames payloads on a tcp.Connection with a fixed-width length
// prefix. A zero Codec is not usable; build one with New.
type Codec struct {
	width      Width
	minPayload int
	maxPayload int
	onMessage  MessageCallback
}

// New builds a Codec using the given prefix width and payload bounds
// (inclusive). A minPayload/maxPayload of 0 disables that bound.
func New(width Width, minPayload, maxPayload int) *Codec {
	switch width {
	case Width1, Width2, Width4, Width8:
	default:
		panic("length: invalid prefix width")
	}
	return &Codec{width: width, minPayload: minPayload, maxPayload: maxPayload}
}

// SetMessageCallback installs the handler invoked for every decoded frame.
func (c *Codec) SetMessageCallback(cb MessageCallback) { c.onMessage = cb }

// OnMessage is a tcp.MessageCallback: wire it via
// conn.SetMessageCallback(codec.OnMessage) so every readable event drains
// as many complete frames as the input buffer currently holds.
func (c *Codec) OnMessage(conn *tcp.Connection, in *buffer.Buffer, received time.Time) {
	for {
		payload, ok, err := c.decode(in)
		if err != nil {
			jww.WARN.Printf("length codec: framing error on %q: %v", conn.Name(), err)
			conn.Shutdown()
			return
		}
		if !ok {
			return
		}
		if c.onMessage != nil {
			c.onMessage(conn, payload, received)
		}
	}
}

// decode attempts to strip one frame from the front of in. ok is false
// when more bytes are needed; err is non-nil when the declared length
// violates the configured bounds, which the caller treats as fatal framing
// corruption.
func (c *Codec) decode(in *buffer.Buffer) (payload []byte, ok bool, err error) {
	if in.ReadableBytes() < int(c.width) {
		return nil, false, nil
	}

	head := in.BeginRead()
	n := readPrefix(head, c.width)

	if (c.minPayload > 0 && n < c.minPayload) || (c.maxPayload > 0 && n > c.maxPayload) {
		return nil, false, ErrorInvalidLength.Error()
	}

	total := int(c.width) + n
	if in.ReadableBytes() < total {
		return nil, false, nil
	}

	in.HasRead(int(c.width))
	out := make([]byte, n)
	copy(out, in.BeginRead()[:n])
	in.HasRead(n)
	return out, true, nil
}

// Send frames payload with the configured prefix and writes it to conn.
// Safe to call from any goroutine, per tcp.Connection.Send's contract.
func (c *Codec) Send(conn *tcp.Connection, payload []byte) {
	conn.Send(c.Encode(payload))
}

// Encode returns the wire representation of payload: prefix followed by
// the payload bytes, with no copy of payload retained afterward.
func (c *Codec) Encode(payload []byte) []byte {
	out := make([]byte, int(c.width)+len(payload))
	writePrefix(out, c.width, len(payload))
	copy(out[c.width:], payload)
	return out
}

func readPrefix(b []byte, w Width) int {
	switch w {
	case Width1:
		return int(b[0])
	case Width2:
		return int(binary.BigEndian.Uint16(b))
	case Width4:
		return int(binary.BigEndian.Uint32(b))
	default:
		return int(binary.BigEndian.Uint64(b))
	}
}

func writePrefix(b []byte, w Width, n int) {
	switch w {
	case Width1:
		b[0] = byte(n)
	case Width2:
		binary.BigEndian.PutUint16(b, uint16(n))
	case Width4:
		binary.BigEndian.PutUint32(b, uint32(n))
	default:
		binary.BigEndian.PutUint64(b, uint64(n))
	}
}
