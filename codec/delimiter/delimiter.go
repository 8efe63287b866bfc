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

// Package delimiter implements a terminator-delimited framing codec (the
// default terminator is "\r\n", as in telnet-style line protocols). Decode
// keeps a search cursor across calls so a connection that dribbles in one
// byte at a time never rescans bytes it already searched.
package delimiter

import (
	"bytes"
	"time"

	"github.com/nabbar/reactor/buffer"
	"github.com/nabbar/reactor/tcp"

	jww "github.com/spf13/jwalterweatherman"
)

// MaxPayloadCeiling is the hard upper bound on max payload (1 GiB).
const MaxPayloadCeiling = 1 << 30

const defaultTerminator = "\r\n"

// MessageCallback fires once per delimited payload (terminator excluded).
// The slice is only valid for the duration of the call.
type MessageCallback func(conn *tcp.Connection, payload []byte, received time.Time)

// Codec frames payloads on a tcp.Connection with a trailing terminator.
type Codec struct {
	terminator string
	maxPayload int
	onMessage  MessageCallback

	// cursor is how many leading bytes of the CURRENT readable region
	// (buffer.BeginRead(), i.e. relative to ReaderIndex, never a raw index
	// into the backing array) have already been searched without finding
	// the terminator. Buffer.ensureWritable may compact -- sliding the
	// readable region to offset 0 in the backing array -- between two
	// decode calls, but BeginRead always returns that same logical
	// content starting at index 0 regardless, so a cursor expressed this
	// way survives compaction with no adjustment. A cursor cached as a raw
	// backing-array index would not: the bytes it pointed at may have
	// moved, or ceased to exist, after a compaction.
	cursor     int
	haveCursor bool
}

// New builds a Codec. An empty terminator defaults to "\r\n"; maxPayload is
// clamped to MaxPayloadCeiling and a non-positive value means "no bound
// except the ceiling".
func New(terminator string, maxPayload int) *Codec {
	if terminator == "" {
		terminator = defaultTerminator
	}
	if maxPayload <= 0 || maxPayload > MaxPayloadCeiling {
		maxPayload = MaxPayloadCeiling
	}
	return &Codec{terminator: terminator, maxPayload: maxPayload}
}

// SetMessageCallback installs the handler invoked for every decoded frame.
func (c *Codec) SetMessageCallback(cb MessageCallback) { c.onMessage = cb }

// OnMessage is a tcp.MessageCallback: wire it via
// conn.SetMessageCallback(codec.OnMessage).
func (c *Codec) OnMessage(conn *tcp.Connection, in *buffer.Buffer, received time.Time) {
	for {
		payload, ok, err := c.decode(in)
		if err != nil {
			jww.WARN.Printf("delimiter codec: framing error on %q: %v", conn.Name(), err)
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

func (c *Codec) decode(in *buffer.Buffer) (payload []byte, ok bool, err error) {
	readable := in.BeginRead()

	start := 0
	if c.haveCursor && c.cursor <= len(readable) {
		start = c.cursor
	}

	idx := bytes.Index(readable[start:], []byte(c.terminator))
	if idx < 0 {
		if len(readable) > c.maxPayload+len(c.terminator) {
			return nil, false, ErrorInvalidLength.Error()
		}
		// Back off by len(terminator)-1 so a terminator split across two
		// reads (e.g. "\r" at the tail of this call, "\n" arriving next)
		// still gets found once the rest arrives.
		c.cursor = len(readable) - (len(c.terminator) - 1)
		if c.cursor < 0 {
			c.cursor = 0
		}
		c.haveCursor = true
		return nil, false, nil
	}

	n := start + idx
	out := make([]byte, n)
	copy(out, readable[:n])

	in.HasRead(n + len(c.terminator))
	c.haveCursor = false
	return out, true, nil
}

// Send frames payload with the configured terminator and writes it to
// conn. Safe to call from any goroutine.
func (c *Codec) Send(conn *tcp.Connection, payload []byte) {
	conn.Send(c.Encode(payload))
}

// Encode appends the terminator to payload, returning a new wire buffer.
func (c *Codec) Encode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+len(c.terminator))
	out = append(out, payload...)
	out = append(out, c.terminator...)
	return out
}
