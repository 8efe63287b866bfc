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

package errors

import (
	"fmt"
	"runtime"
)

// Error extends the standard error interface with a numeric code, an
// optional parent chain, and the call site that raised it.
type Error interface {
	error

	Code() CodeError
	IsCode(code CodeError) bool
	Parent() []error
	Add(parent ...error)
	File() string
	Line() int
	Unwrap() error
}

type erro struct {
	code CodeError
	msg  string
	file string
	line int
	pare []error
}

// New builds an Error with the given code and message, capturing the
// caller's file and line. Nil parents are dropped.
func New(code CodeError, message string, parent ...error) Error {
	e := &erro{
		code: code,
		msg:  message,
	}
	_, e.file, e.line, _ = runtime.Caller(1)
	e.Add(parent...)
	return e
}

// Newf is New with fmt.Sprintf-style formatting of message.
func Newf(code CodeError, pattern string, args ...any) Error {
	e := &erro{
		code: code,
		msg:  fmt.Sprintf(pattern, args...),
	}
	_, e.file, e.line, _ = runtime.Caller(1)
	return e
}

// IfError returns an Error only if at least one non-nil parent is given;
// otherwise it returns nil, making it convenient to wrap the result of a
// fallible call without an explicit nil check at every call site.
func IfError(code CodeError, message string, parent ...error) Error {
	has := false
	for _, p := range parent {
		if p != nil {
			has = true
			break
		}
	}
	if !has {
		return nil
	}
	e := &erro{code: code, msg: message}
	_, e.file, e.line, _ = runtime.Caller(1)
	e.Add(parent...)
	return e
}

func (e *erro) Error() string {
	if e.msg == "" {
		return e.code.Message()
	}
	return e.msg
}

func (e *erro) Code() CodeError { return e.code }

func (e *erro) IsCode(code CodeError) bool { return e.code == code }

func (e *erro) Parent() []error { return e.pare }

func (e *erro) Add(parent ...error) {
	for _, p := range parent {
		if p != nil {
			e.pare = append(e.pare, p)
		}
	}
}

func (e *erro) File() string { return e.file }
func (e *erro) Line() int    { return e.line }

func (e *erro) Unwrap() error {
	if len(e.pare) == 0 {
		return nil
	}
	return e.pare[0]
}
