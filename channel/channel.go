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

// Package channel binds one file descriptor to its interest set (which
// events it wants) and ready set (which events fired), and dispatches the
// registered callbacks when the owning loop observes activity on it. It
// has no knowledge of sockets or framing -- it is the same abstraction
// whether the underlying fd is a connected socket, a listening socket, an
// eventfd or a timerfd.
package channel

import (
	"fmt"
	"strings"
	"time"

	jww "github.com/spf13/jwalterweatherman"
)

// Event is a bitmask of interest/ready flags. The bit values are the ones
// poll(2) and epoll(7) share (POLLIN == EPOLLIN and so on for every flag
// used here), so neither poller backend needs a translation layer.
type Event uint32

const (
	eventIn   Event = 0x001
	eventPri  Event = 0x002
	eventOut  Event = 0x004
	eventErr  Event = 0x008
	eventHup  Event = 0x010
	eventNval Event = 0x020
)

const (
	EventNone  Event = 0
	EventRead  Event = eventIn | eventPri
	EventWrite Event = eventOut
)

// ReadCallback is invoked when the channel becomes readable; receiveTime
// is when the poller observed the event, used by codecs that need to
// timestamp inbound data.
type ReadCallback func(receiveTime time.Time)

// EventCallback is invoked for writable/closed/error notifications, which
// carry no extra data.
type EventCallback func()

// Channel is not safe for concurrent use; every method must run on its
// owning loop's goroutine, matching the reactor's single-thread-per-loop
// contract.
type Channel struct {
	fd  int
	reg Registrar

	interest Event
	ready    Event

	index int // poller-private slot, see poller.Epoll/poller.Poll

	addedToLoop   bool
	eventHandling bool
	logHup        bool

	onRead  ReadCallback
	onWrite EventCallback
	onClose EventCallback
	onError EventCallback
}

// Registrar is the subset of the owning loop's API a Channel needs: it
// must be able to push interest-set changes to the poller and to remove
// itself entirely. loop.Loop implements this; tests use a fake.
type Registrar interface {
	UpdateChannel(c *Channel)
	RemoveChannel(c *Channel)
	CheckInOwnLoop()
}

// New binds fd to loop. The channel starts with no interest registered;
// call EnableRead/EnableWrite to start receiving events.
func New(loop Registrar, fd int) *Channel {
	return &Channel{fd: fd, reg: loop, index: -1, logHup: true}
}

// Fd returns the wrapped file descriptor.
func (c *Channel) Fd() int { return c.fd }

// Interest returns the currently registered interest set.
func (c *Channel) Interest() Event { return c.interest }

// SetReady records the events the poller observed; called by the poller
// immediately before EventLoop.HandleEvent dispatches to this channel.
func (c *Channel) SetReady(ev Event) { c.ready = ev }

// Ready returns the last-observed ready set.
func (c *Channel) Ready() Event { return c.ready }

// Index/SetIndex are the poller's private bookkeeping slot (e.g. the
// position in poll(2)'s pollfd array, or an epoll add/mod/del marker).
func (c *Channel) Index() int     { return c.index }
func (c *Channel) SetIndex(i int) { c.index = i }

// IsNoneEvent reports whether the channel currently wants no events.
func (c *Channel) IsNoneEvent() bool { return c.interest == EventNone }

// IsReadEvent/IsWriteEvent report the current interest set, irrespective
// of what just fired.
func (c *Channel) IsReadEvent() bool  { return c.interest&EventRead != 0 }
func (c *Channel) IsWriteEvent() bool { return c.interest&EventWrite != 0 }

// SetReadCallback/SetWriteCallback/SetCloseCallback/SetErrorCallback wire
// the handlers invoked from HandleEvent. They must be set before the
// channel is added to a loop's poll set.
func (c *Channel) SetReadCallback(cb ReadCallback)   { c.onRead = cb }
func (c *Channel) SetWriteCallback(cb EventCallback) { c.onWrite = cb }
func (c *Channel) SetCloseCallback(cb EventCallback) { c.onClose = cb }
func (c *Channel) SetErrorCallback(cb EventCallback) { c.onError = cb }

// SetLogHup toggles whether a POLLHUP/EPOLLHUP without EPOLLIN is logged
// at warning level. TcpConnection turns this off once it has already
// begun its own disconnect sequence, to avoid duplicate noise.
func (c *Channel) SetLogHup(v bool) { c.logHup = v }

// EnableRead/EnableWrite add to the interest set and push the change to
// the poller via the owning loop. DisableRead/DisableWrite/DisableAll
// remove from it. update() is idempotent to call repeatedly.
func (c *Channel) EnableRead() {
	c.interest |= EventRead
	c.update()
}

func (c *Channel) DisableRead() {
	c.interest &^= EventRead
	c.update()
}

func (c *Channel) EnableWrite() {
	c.interest |= EventWrite
	c.update()
}

func (c *Channel) DisableWrite() {
	c.interest &^= EventWrite
	c.update()
}

func (c *Channel) DisableAll() {
	c.interest = EventNone
	c.update()
}

func (c *Channel) update() {
	c.addedToLoop = true
	c.reg.UpdateChannel(c)
}

// Remove detaches the channel from its loop. The interest set must
// already be empty (call DisableAll first) -- removing a channel that
// still wants events would silently drop its last notification.
func (c *Channel) Remove() {
	c.reg.CheckInOwnLoop()
	if !c.IsNoneEvent() {
		panic(fmt.Sprintf("channel: Remove called on fd %d with non-empty interest set %s", c.fd, c.interest))
	}
	c.addedToLoop = false
	c.reg.RemoveChannel(c)
}

// HandleEvent dispatches the ready set recorded by the poller to the
// registered callbacks, in the same HUP > error > read > write priority
// order as the reactor's event loop.
func (c *Channel) HandleEvent(receiveTime time.Time) {
	c.eventHandling = true
	defer func() { c.eventHandling = false }()

	jww.TRACE.Printf("channel: fd=%d %s", c.fd, c.Ready())

	if c.ready&eventHup != 0 && c.ready&eventIn == 0 {
		if c.logHup {
			jww.WARN.Printf("channel: fd=%d received POLLHUP", c.fd)
		}
		if c.onClose != nil {
			c.onClose()
		}
	}
	if c.ready&(eventErr|eventNval) != 0 {
		if c.onError != nil {
			c.onError()
		}
	}
	// HUP still runs the read callback so residual bytes the peer sent
	// before closing get drained.
	if c.ready&(EventRead|eventHup) != 0 {
		if c.onRead != nil {
			c.onRead(receiveTime)
		}
	}
	if c.ready&EventWrite != 0 {
		if c.onWrite != nil {
			c.onWrite()
		}
	}
}

// String renders the event set as its flag names joined by "|", e.g.
// "IN|PRI", or "NONE" when empty -- used in diagnostics logging.
func (e Event) String() string {
	var parts []string
	if e&eventIn != 0 {
		parts = append(parts, "IN")
	}
	if e&eventPri != 0 {
		parts = append(parts, "PRI")
	}
	if e&eventOut != 0 {
		parts = append(parts, "OUT")
	}
	if e&eventHup != 0 {
		parts = append(parts, "HUP")
	}
	if e&eventErr != 0 {
		parts = append(parts, "ERR")
	}
	if e&eventNval != 0 {
		parts = append(parts, "NVAL")
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}
