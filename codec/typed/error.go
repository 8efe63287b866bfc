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

package typed

import "github.com/nabbar/reactor/errors"

const (
	ErrorInvalidLength errors.CodeError = iota + errors.MinPkgCodec + 20
	ErrorCheckSum
	ErrorInvalidNameLen
	ErrorUnknownMessageType
	ErrorParse
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorInvalidLength)
	errors.RegisterIdFctMessage(ErrorInvalidLength, getMessage)
}

func getMessage(code errors.CodeError) string {
	switch code {
	case ErrorInvalidLength:
		return "declared frame length outside configured bounds"
	case ErrorCheckSum:
		return "crc32 checksum mismatch"
	case ErrorInvalidNameLen:
		return "invalid type name length"
	case ErrorUnknownMessageType:
		return "unknown message type name"
	case ErrorParse:
		return "failed to parse message payload"
	}
	return ""
}
