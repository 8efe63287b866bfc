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

package poller

import (
	"time"

	"github.com/nabbar/reactor/channel"

	"golang.org/x/sys/unix"
)

// Poll is the poll(2)-backed Poller, selectable at configuration time for
// callers that prefer it over the default epoll backend. It is O(n) in
// the number of registered channels per wait call.
type Poll struct {
	channels map[int]*channel.Channel
	fds      []unix.PollFd
	index    map[int]int // fd -> index in fds
}

// NewPoll creates a poll(2)-backed Poller.
func NewPoll() (*Poll, error) {
	return &Poll{
		channels: make(map[int]*channel.Channel),
		index:    make(map[int]int),
	}, nil
}

// Poll waits up to timeout for ready channels.
func (p *Poll) Poll(timeout time.Duration, activeChannels []*channel.Channel) ([]*channel.Channel, time.Time, error) {
	ms := int(timeout / time.Millisecond)
	if timeout > 0 && ms == 0 {
		ms = 1
	}
	if timeout < 0 {
		ms = -1
	}

	n, err := unix.Poll(p.fds, ms)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return activeChannels, now, nil
		}
		return activeChannels, now, ErrorWait.Error(err)
	}
	if n == 0 {
		return activeChannels, now, nil
	}

	for _, pfd := range p.fds {
		if pfd.Revents == 0 {
			continue
		}
		if ch, ok := p.channels[int(pfd.Fd)]; ok {
			ch.SetReady(channel.Event(pfd.Revents))
			activeChannels = append(activeChannels, ch)
		}
	}
	return activeChannels, now, nil
}

// UpdateChannel registers fd, or updates its interest set if already known.
func (p *Poll) UpdateChannel(c *channel.Channel) error {
	if idx, ok := p.index[c.Fd()]; ok {
		if c.IsNoneEvent() {
			p.removeAt(idx)
			return nil
		}
		p.fds[idx].Events = int16(c.Interest())
		return nil
	}

	p.channels[c.Fd()] = c
	p.index[c.Fd()] = len(p.fds)
	p.fds = append(p.fds, unix.PollFd{Fd: int32(c.Fd()), Events: int16(c.Interest())})
	c.SetIndex(stateAdded)
	return nil
}

// RemoveChannel forgets a channel. Its interest set must already be empty.
func (p *Poll) RemoveChannel(c *channel.Channel) error {
	if idx, ok := p.index[c.Fd()]; ok {
		p.removeAt(idx)
	}
	c.SetIndex(stateNew)
	return nil
}

// HasChannel reports whether fd is tracked by this poller.
func (p *Poll) HasChannel(c *channel.Channel) bool {
	found, ok := p.channels[c.Fd()]
	return ok && found == c
}

// Close is a no-op: the portable poller owns no fd of its own.
func (p *Poll) Close() error { return nil }

// removeAt deletes the entry at fds[idx] via swap-with-last, keeping the
// index map consistent.
func (p *Poll) removeAt(idx int) {
	fd := int(p.fds[idx].Fd)
	last := len(p.fds) - 1
	p.fds[idx] = p.fds[last]
	p.fds = p.fds[:last]
	delete(p.channels, fd)
	delete(p.index, fd)
	if idx < len(p.fds) {
		p.index[int(p.fds[idx].Fd)] = idx
	}
}
