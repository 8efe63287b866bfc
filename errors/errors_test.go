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

package errors_test

import (
	stderrors "errors"

	. "github.com/nabbar/reactor/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const testCode CodeError = MinAvailable + 1

var _ = Describe("CodeError registration", func() {
	BeforeEach(func() {
		if !ExistInMapMessage(testCode) {
			RegisterIdFctMessage(testCode, func(code CodeError) string {
				if code == testCode {
					return "test message"
				}
				return ""
			})
		}
	})

	It("resolves a registered message", func() {
		Expect(testCode.Message()).To(Equal("test message"))
	})

	It("falls back to unknown for unregistered codes", func() {
		Expect(CodeError(0xFFFE).Message()).To(Equal(UnknownMessage))
	})

	It("builds an Error carrying the code and message", func() {
		err := testCode.Error(nil)
		Expect(err.Code()).To(Equal(testCode))
		Expect(err.Error()).To(Equal("test message"))
	})

	It("chains parent errors", func() {
		parent := stderrors.New("boom")
		err := testCode.Error(parent)
		Expect(err.Parent()).To(HaveLen(1))
		Expect(err.Unwrap()).To(Equal(parent))
	})

	It("IfError returns nil when every parent is nil", func() {
		Expect(IfError(testCode, "msg", nil, nil)).To(BeNil())
	})

	It("IfError returns an Error when at least one parent is set", func() {
		Expect(IfError(testCode, "msg", nil, stderrors.New("x"))).ToNot(BeNil())
	})

	It("captures the call site", func() {
		err := New(testCode, "msg")
		Expect(err.File()).To(ContainSubstring("errors_test.go"))
		Expect(err.Line()).To(BeNumerically(">", 0))
	})
})
