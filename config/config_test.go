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

package config_test

import (
	"time"

	"github.com/nabbar/reactor/config"

	"github.com/spf13/viper"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server", func() {
	It("rejects an empty address", func() {
		Expect(config.Server{}.Validate()).To(HaveOccurred())
	})

	It("rejects a negative thread count", func() {
		s := config.Server{Address: "127.0.0.1:0", ThreadNum: -1}
		Expect(s.Validate()).To(HaveOccurred())
	})

	It("accepts a well-formed server config", func() {
		s := config.Server{Address: "127.0.0.1:0", ThreadNum: 4}
		Expect(s.Validate()).NotTo(HaveOccurred())
	})
})

var _ = Describe("Client", func() {
	It("rejects an empty address", func() {
		Expect(config.Client{}.Validate()).To(HaveOccurred())
	})

	It("accepts a well-formed client config", func() {
		c := config.Client{Address: "127.0.0.1:7862"}
		Expect(c.Validate()).NotTo(HaveOccurred())
	})
})

var _ = Describe("Load", func() {
	It("returns package defaults when given a nil viper", func() {
		t := config.Load(nil)
		Expect(t.PollTimeout).To(Equal(config.DefaultPollTimeout))
		Expect(t.HighWaterMark).To(Equal(config.DefaultHighWaterMark))
		Expect(t.TypedMaxPayload).To(Equal(config.DefaultTypedMaxPayload))
		Expect(t.DelimiterMaxPayload).To(Equal(config.DefaultDelimiterMaxPayload))
	})

	It("overrides defaults with values present in viper", func() {
		v := viper.New()
		v.Set("poll_timeout", "5s")
		v.Set("high_water_mark", 1024)

		t := config.Load(v)
		Expect(t.PollTimeout).To(Equal(5 * time.Second))
		Expect(t.HighWaterMark).To(Equal(1024))
		// untouched keys still fall back to the package default
		Expect(t.RetryMaxInterval).To(Equal(config.DefaultRetryMaxInterval))
	})
})
