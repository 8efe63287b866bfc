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

// Package typed implements the length+name+payload[+crc32] framing codec:
// a fixed 4-byte big-endian length prefix wrapping (int32 nameLen, name,
// payload[, crc32 of everything since the prefix]). The name resolves a
// registered protobuf message type via the global type registry.
package typed

import (
	"encoding/binary"
	"hash/crc32"
	"time"

	"github.com/nabbar/reactor/buffer"
	"github.com/nabbar/reactor/tcp"

	jww "github.com/spf13/jwalterweatherman"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

const (
	// HeaderLength is the outer length prefix's width in bytes.
	HeaderLength = 4
	// crcLength is the trailing checksum's width, when enabled.
	crcLength = 4
	// nameLenFieldLength is the width of the name-length field inside the
	// framed body.
	nameLenFieldLength = 4
	// minNameLength is the shortest legal type name.
	minNameLength = 2
	// MaxPayload is the hard ceiling on the framed body.
	MaxPayload = 64 << 20
)

// MessageCallback fires once per successfully decoded message.
type MessageCallback func(conn *tcp.Connection, name string, msg proto.Message, received time.Time)

// Codec frames protobuf messages on a tcp.Connection, resolving type names
// against protoregistry.GlobalTypes.
type Codec struct {
	crc       bool
	onMessage MessageCallback
}

// New builds a Codec. When crc is true, encode appends (and decode
// verifies) a trailing CRC32 covering the name-length field, name and
// payload.
func New(crc bool) *Codec {
	return &Codec{crc: crc}
}

// SetMessageCallback installs the handler invoked for every decoded
// message.
func (c *Codec) SetMessageCallback(cb MessageCallback) { c.onMessage = cb }

func (c *Codec) crcLen() int {
	if c.crc {
		return crcLength
	}
	return 0
}

func (c *Codec) minPayload() int {
	return nameLenFieldLength + minNameLength + c.crcLen()
}

// OnMessage is a tcp.MessageCallback: wire it via
// conn.SetMessageCallback(codec.OnMessage).
func (c *Codec) OnMessage(conn *tcp.Connection, in *buffer.Buffer, received time.Time) {
	for {
		name, payload, ok, err := c.decodeFrame(in)
		if err != nil {
			jww.WARN.Printf("typed codec: framing error on %q: %v", conn.Name(), err)
			conn.Shutdown()
			return
		}
		if !ok {
			return
		}

		msg, err := c.parse(name, payload)
		if err != nil {
			jww.WARN.Printf("typed codec: %q on %q: %v", name, conn.Name(), err)
			conn.Shutdown()
			return
		}

		if c.onMessage != nil {
			c.onMessage(conn, name, msg, received)
		}
	}
}

// decodeFrame strips the outer length-prefixed frame and splits it into
// (name, payload), verifying the CRC if enabled. It does not interpret or
// validate the name beyond its length.
func (c *Codec) decodeFrame(in *buffer.Buffer) (name string, payload []byte, ok bool, err error) {
	if in.ReadableBytes() < HeaderLength {
		return "", nil, false, nil
	}

	head := in.BeginRead()
	length := int(binary.BigEndian.Uint32(head[:HeaderLength]))

	if length < c.minPayload() || length > MaxPayload {
		return "", nil, false, ErrorInvalidLength.Error()
	}

	total := HeaderLength + length
	if in.ReadableBytes() < total {
		return "", nil, false, nil
	}

	body := head[HeaderLength:total]
	if c.crc {
		boundary := len(body) - crcLength
		expect := binary.BigEndian.Uint32(body[boundary:])
		got := crc32.ChecksumIEEE(body[:boundary])
		if got != expect {
			in.HasRead(total)
			return "", nil, false, ErrorCheckSum.Error()
		}
		body = body[:boundary]
	}

	if len(body) < nameLenFieldLength {
		in.HasRead(total)
		return "", nil, false, ErrorInvalidNameLen.Error()
	}
	nameLen := int(binary.BigEndian.Uint32(body[:nameLenFieldLength]))
	if nameLen < minNameLength || nameLen > len(body)-nameLenFieldLength {
		in.HasRead(total)
		return "", nil, false, ErrorInvalidNameLen.Error()
	}

	// The name region carries a trailing NUL, counted by nameLen.
	rawName := body[nameLenFieldLength : nameLenFieldLength+nameLen]
	if rawName[nameLen-1] != 0 {
		in.HasRead(total)
		return "", nil, false, ErrorInvalidNameLen.Error()
	}
	name = string(rawName[:nameLen-1])
	payload = make([]byte, len(body)-nameLenFieldLength-nameLen)
	copy(payload, body[nameLenFieldLength+nameLen:])

	in.HasRead(total)
	return name, payload, true, nil
}

func (c *Codec) parse(name string, payload []byte) (proto.Message, error) {
	mt, err := protoregistry.GlobalTypes.FindMessageByName(protoreflect.FullName(name))
	if err != nil {
		return nil, ErrorUnknownMessageType.Error(err)
	}
	msg := mt.New().Interface()
	if err := proto.Unmarshal(payload, msg); err != nil {
		return nil, ErrorParse.Error(err)
	}
	return msg, nil
}

// Send frames msg and writes it to conn. Safe to call from any goroutine.
func (c *Codec) Send(conn *tcp.Connection, msg proto.Message) error {
	wire, err := c.Encode(msg)
	if err != nil {
		return err
	}
	conn.Send(wire)
	return nil
}

// Encode returns the wire representation of msg: a 4-byte length prefix,
// the message's NUL-terminated full type name, its serialized bytes, and
// an optional trailing CRC32.
func (c *Codec) Encode(msg proto.Message) ([]byte, error) {
	name := string(msg.ProtoReflect().Descriptor().FullName())
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, ErrorParse.Error(err)
	}

	nameLen := len(name) + 1 // trailing NUL is part of the name region
	body := make([]byte, nameLenFieldLength+nameLen+len(data), nameLenFieldLength+nameLen+len(data)+crcLength)
	binary.BigEndian.PutUint32(body[:nameLenFieldLength], uint32(nameLen))
	copy(body[nameLenFieldLength:], name)
	copy(body[nameLenFieldLength+nameLen:], data)

	if c.crc {
		sum := crc32.ChecksumIEEE(body)
		sumBytes := make([]byte, crcLength)
		binary.BigEndian.PutUint32(sumBytes, sum)
		body = append(body, sumBytes...)
	}

	out := make([]byte, HeaderLength+len(body))
	binary.BigEndian.PutUint32(out[:HeaderLength], uint32(len(body)))
	copy(out[HeaderLength:], body)
	return out, nil
}
