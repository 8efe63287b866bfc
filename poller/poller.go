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

// Package poller wraps the OS-level I/O multiplexer (epoll, with a poll(2)
// fallback for non-Linux targets) behind one small interface: register a
// channel's interest set, wait for activity, get back the channels that
// became ready. It holds a channel map, not channels themselves -- it has
// no idea what a fd means, only that something wants to know about it.
package poller

import (
	"time"

	"github.com/nabbar/reactor/channel"
)

// channel index states shared by both backends, mirrored from the
// reactor's poll-era Poller: a channel new to this poller, one already
// added, or one that has been removed and could be re-added later.
const (
	stateNew     = -1
	stateAdded   = 1
	stateDeleted = 2
)

// Poller multiplexes I/O readiness over a set of channels. All methods
// must run on the owning loop's goroutine.
type Poller interface {
	// Poll blocks up to timeout for at least one ready channel, appending
	// the ready ones to activeChannels (which it may grow) and returning
	// the possibly-extended slice along with the time the wait returned.
	Poll(timeout time.Duration, activeChannels []*channel.Channel) ([]*channel.Channel, time.Time, error)

	// UpdateChannel registers a new channel or applies a changed interest
	// set for one already known to the poller.
	UpdateChannel(c *channel.Channel) error

	// RemoveChannel forgets a channel entirely; its interest set must
	// already be empty.
	RemoveChannel(c *channel.Channel) error

	// HasChannel reports whether fd is currently tracked.
	HasChannel(c *channel.Channel) bool

	// Close releases the poller's own fd (epoll instance), if any.
	Close() error
}
