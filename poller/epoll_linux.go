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
	"github.com/nabbar/reactor/descriptor"

	jww "github.com/spf13/jwalterweatherman"
	"golang.org/x/sys/unix"
)

const initEventListSize = 16

// Epoll is the Linux epoll(7)-backed Poller.
type Epoll struct {
	fd       *descriptor.FD
	channels map[int]*channel.Channel
	events   []unix.EpollEvent
}

// New creates an epoll instance. Every reactor event loop owns exactly one.
func New() (*Epoll, error) {
	raw, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, ErrorCreate.Error(err)
	}
	return &Epoll{
		fd:       descriptor.New(raw),
		channels: make(map[int]*channel.Channel),
		events:   make([]unix.EpollEvent, initEventListSize),
	}, nil
}

// Poll waits up to timeout for ready channels.
func (p *Epoll) Poll(timeout time.Duration, activeChannels []*channel.Channel) ([]*channel.Channel, time.Time, error) {
	ms := int(timeout / time.Millisecond)
	if timeout > 0 && ms == 0 {
		ms = 1
	}
	if timeout < 0 {
		ms = -1
	}

	n, err := unix.EpollWait(p.fd.Int(), p.events, ms)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return activeChannels, now, nil
		}
		return activeChannels, now, ErrorWait.Error(err)
	}

	for i := 0; i < n; i++ {
		ev := p.events[i]
		ch, ok := p.channels[int(ev.Fd)]
		if !ok {
			continue
		}
		ch.SetReady(channel.Event(ev.Events))
		activeChannels = append(activeChannels, ch)
	}

	if n == len(p.events) {
		p.events = make([]unix.EpollEvent, len(p.events)*2)
	}

	return activeChannels, now, nil
}

// UpdateChannel registers fd, or updates its interest set if already
// known. A channel with no interest left is issued EPOLL_CTL_DEL but kept
// in the map in the "deleted" state so a later re-enable issues
// EPOLL_CTL_ADD again without re-inserting it into the map -- mirroring
// the reactor's kNew/kAdded/kDeleted channel index.
func (p *Epoll) UpdateChannel(c *channel.Channel) error {
	idx := c.Index()
	if idx == stateNew || idx == stateDeleted {
		if idx == stateNew {
			p.channels[c.Fd()] = c
		}
		c.SetIndex(stateAdded)
		return p.ctl(unix.EPOLL_CTL_ADD, c)
	}

	if c.IsNoneEvent() {
		c.SetIndex(stateDeleted)
		return p.ctl(unix.EPOLL_CTL_DEL, c)
	}
	return p.ctl(unix.EPOLL_CTL_MOD, c)
}

// RemoveChannel forgets a channel. Its interest set must already be empty.
func (p *Epoll) RemoveChannel(c *channel.Channel) error {
	delete(p.channels, c.Fd())
	if c.Index() == stateAdded {
		if err := p.ctl(unix.EPOLL_CTL_DEL, c); err != nil {
			return err
		}
	}
	c.SetIndex(stateNew)
	return nil
}

// HasChannel reports whether fd is tracked by this poller.
func (p *Epoll) HasChannel(c *channel.Channel) bool {
	found, ok := p.channels[c.Fd()]
	return ok && found == c
}

// Close releases the epoll fd.
func (p *Epoll) Close() error {
	return p.fd.Close()
}

func (p *Epoll) ctl(op int, c *channel.Channel) error {
	ev := unix.EpollEvent{
		Events: uint32(c.Interest()),
		Fd:     int32(c.Fd()),
	}
	if err := unix.EpollCtl(p.fd.Int(), op, c.Fd(), &ev); err != nil {
		jww.ERROR.Printf("poller: epoll_ctl(%s, fd=%d) failed: %v", ctlOpString(op), c.Fd(), err)
		return ErrorCtl.Error(err)
	}
	return nil
}

func ctlOpString(op int) string {
	switch op {
	case unix.EPOLL_CTL_ADD:
		return "ADD"
	case unix.EPOLL_CTL_MOD:
		return "MOD"
	case unix.EPOLL_CTL_DEL:
		return "DEL"
	default:
		return "UNKNOWN"
	}
}
