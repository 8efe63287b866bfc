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

// Package dispatch routes a decoded typed message to the handler
// registered for its descriptor. It is kept separate from codec/typed so
// framing and routing stay independently composable.
package dispatch

import (
	"sync"
	"time"

	"github.com/nabbar/reactor/tcp"

	jww "github.com/spf13/jwalterweatherman"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Handler processes one decoded message of a known type.
type Handler func(conn *tcp.Connection, msg proto.Message, received time.Time)

// FallbackHandler processes a message whose descriptor has no registered
// Handler. The default fallback logs and drops it.
type FallbackHandler func(conn *tcp.Connection, name string, msg proto.Message, received time.Time)

// Table maps a protobuf full type name to the Handler responsible for
// messages of that type.
type Table struct {
	mu       sync.RWMutex
	handlers map[protoreflect.FullName]Handler
	fallback FallbackHandler
}

// New builds an empty Table with the default log-and-drop fallback.
func New() *Table {
	return &Table{
		handlers: make(map[protoreflect.FullName]Handler),
		fallback: defaultFallback,
	}
}

// Register binds h to msg's own descriptor name.
func (t *Table) Register(msg proto.Message, h Handler) {
	t.RegisterName(msg.ProtoReflect().Descriptor().FullName(), h)
}

// RegisterName binds h to the given full type name directly, for callers
// that don't have a prototype message handy.
func (t *Table) RegisterName(name protoreflect.FullName, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[name] = h
}

// Unregister removes the handler for name, if any.
func (t *Table) Unregister(name protoreflect.FullName) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handlers, name)
}

// SetFallbackHandler overrides the log-and-drop default for messages
// whose descriptor has no registered Handler.
func (t *Table) SetFallbackHandler(h FallbackHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fallback = h
}

// OnMessage is a codec/typed.MessageCallback: wire it via
// typedCodec.SetMessageCallback(table.OnMessage). It looks up the
// handler by the message's full type name and invokes either the matched
// Handler or the fallback with msg as a proto.Message; it does not
// convert msg to its concrete Go type.
func (t *Table) OnMessage(conn *tcp.Connection, name string, msg proto.Message, received time.Time) {
	t.mu.RLock()
	h, ok := t.handlers[protoreflect.FullName(name)]
	fb := t.fallback
	t.mu.RUnlock()

	if ok {
		h(conn, msg, received)
		return
	}
	if fb != nil {
		fb(conn, name, msg, received)
	}
}

func defaultFallback(conn *tcp.Connection, name string, _ proto.Message, _ time.Time) {
	jww.WARN.Printf("dispatch: no handler registered for %q on %q, dropping", name, conn.Name())
}
