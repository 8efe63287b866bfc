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

// Package config loads the reactor's environment-dependent knobs: poll
// timeout, retry backoff bounds, high-water mark, and codec payload caps.
// Values are sourced through viper so a process embedding
// the reactor can override any of them from a config file, environment
// variables, or flags without touching code.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Server describes where to listen: an address plus the knobs that only
// make sense on the accept side.
type Server struct {
	Address   string `mapstructure:"address"`
	ReusePort bool   `mapstructure:"reuse_port"`
	ThreadNum int    `mapstructure:"thread_num"`
}

// Validate checks that Address is non-empty; endpoint.Resolve is left to
// the caller, which already surfaces a more specific resolve error.
func (s Server) Validate() error {
	if s.Address == "" {
		return ErrorInvalidAddress.Error()
	}
	if s.ThreadNum < 0 {
		return ErrorInvalidThreadNum.Error()
	}
	return nil
}

// Client mirrors Server for the dial side.
type Client struct {
	Address string `mapstructure:"address"`
	Retry   bool   `mapstructure:"retry"`
}

// Validate checks that Address is non-empty.
func (c Client) Validate() error {
	if c.Address == "" {
		return ErrorInvalidAddress.Error()
	}
	return nil
}

// Tunables collects every reactor knob that is meant to be
// environment-dependent rather than hardcoded. Zero values are replaced
// by the package defaults in Load.
type Tunables struct {
	PollTimeout          time.Duration `mapstructure:"poll_timeout"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `mapstructure:"retry_max_interval"`
	HighWaterMark        int           `mapstructure:"high_water_mark"`
	TypedMaxPayload      int           `mapstructure:"typed_max_payload"`
	DelimiterMaxPayload  int           `mapstructure:"delimiter_max_payload"`
}

// Default values Load falls back to when viper finds nothing configured.
const (
	DefaultPollTimeout          = 30 * time.Second
	DefaultRetryInitialInterval = 500 * time.Millisecond
	DefaultRetryMaxInterval     = 30 * time.Second
	DefaultHighWaterMark        = 64 * 1024 * 1024
	DefaultTypedMaxPayload      = 64 * 1024 * 1024
	DefaultDelimiterMaxPayload  = 512 * 1024
)

// Load reads Tunables out of v, falling back to the package defaults for
// any key v does not have set. v may be nil, in which case Load returns
// the defaults outright -- this is the common case for a caller that
// never wired a config file.
func Load(v *viper.Viper) Tunables {
	t := Tunables{
		PollTimeout:          DefaultPollTimeout,
		RetryInitialInterval: DefaultRetryInitialInterval,
		RetryMaxInterval:     DefaultRetryMaxInterval,
		HighWaterMark:        DefaultHighWaterMark,
		TypedMaxPayload:      DefaultTypedMaxPayload,
		DelimiterMaxPayload:  DefaultDelimiterMaxPayload,
	}
	if v == nil {
		return t
	}

	if d := v.GetDuration("poll_timeout"); d > 0 {
		t.PollTimeout = d
	}
	if d := v.GetDuration("retry_initial_interval"); d > 0 {
		t.RetryInitialInterval = d
	}
	if d := v.GetDuration("retry_max_interval"); d > 0 {
		t.RetryMaxInterval = d
	}
	if n := v.GetInt("high_water_mark"); n > 0 {
		t.HighWaterMark = n
	}
	if n := v.GetInt("typed_max_payload"); n > 0 {
		t.TypedMaxPayload = n
	}
	if n := v.GetInt("delimiter_max_payload"); n > 0 {
		t.DelimiterMaxPayload = n
	}
	return t
}
