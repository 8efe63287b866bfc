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

// Package errors provides the error-code classification used across every
// reactor subsystem: a numeric CodeError per package offset, a registered
// message table, and constructors that wrap parent errors while capturing
// the call site.
package errors

import (
	"strconv"
)

// CodeError is a numeric error classification, similar in spirit to HTTP
// status codes. Each package that raises domain errors defines its own
// block of codes offset from one of the MinPkg* constants below.
type CodeError uint16

const (
	// UnknownError is the fallback code when none was set.
	UnknownError CodeError = 0

	UnknownMessage = "unknown error"
)

// Per-package code offsets. Each offset reserves up to 100 codes for its
// package; widen the gaps if a package ever needs more.
const (
	MinPkgBuffer     = 100
	MinPkgEndpoint   = 200
	MinPkgDescriptor = 300
	MinPkgChannel    = 400
	MinPkgPoller     = 500
	MinPkgTimer      = 600
	MinPkgWakeup     = 700
	MinPkgLoop       = 800
	MinPkgLoopPool   = 900
	MinPkgAcceptor   = 1000
	MinPkgConnector  = 1100
	MinPkgTCP        = 1200
	MinPkgServer     = 1300
	MinPkgClient     = 1400
	MinPkgSignal     = 1500
	MinPkgCodec      = 1600
	MinPkgConfig     = 1700

	MinAvailable = 2000
)

var idMsgFct = make(map[CodeError]Message)

// Message generates the human-readable text for a registered CodeError.
type Message func(code CodeError) string

// RegisterIdFctMessage registers the message function for every code at or
// above minCode, keyed by the package's lowest registered code so later
// lookups can find the right block without a full table per code.
func RegisterIdFctMessage(minCode CodeError, fct Message) {
	idMsgFct[minCode] = fct
}

// ExistInMapMessage reports whether a message function has already been
// registered for the given code's package block.
func ExistInMapMessage(code CodeError) bool {
	_, ok := idMsgFct[findBlock(code)]
	return ok
}

func findBlock(code CodeError) CodeError {
	var best CodeError
	var found bool
	for k := range idMsgFct {
		if k <= code && (!found || k > best) {
			best = k
			found = true
		}
	}
	if !found {
		return 0
	}
	return best
}

// Message returns the registered message for c, or UnknownMessage.
func (c CodeError) Message() string {
	if c == UnknownError {
		return UnknownMessage
	}
	if f, ok := idMsgFct[findBlock(c)]; ok {
		if m := f(c); m != "" {
			return m
		}
	}
	return UnknownMessage
}

// Error builds an Error value with this code, wrapping any parent errors.
func (c CodeError) Error(parent ...error) Error {
	return New(c, c.Message(), parent...)
}

// Uint16 returns the numeric value of the code.
func (c CodeError) Uint16() uint16 {
	return uint16(c)
}

// String implements fmt.Stringer.
func (c CodeError) String() string {
	return strconv.Itoa(int(c))
}
