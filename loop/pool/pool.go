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

// Package pool runs N worker event loops on dedicated goroutines and hands
// them out round-robin or by hash, so a TCP server can spread its accepted
// connections across more than one reactor thread. A zero-size pool is a
// legal degenerate case: GetNextLoop and GetLoopWithHash then return the
// base loop that constructed the pool (GetAllLoops returns an empty
// slice), and the server simply runs single-threaded.
package pool

import (
	"sync"

	"github.com/nabbar/reactor/loop"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	jww "github.com/spf13/jwalterweatherman"
)

// InitCallback runs once on each worker loop's own goroutine, right after
// that loop is constructed and before it starts polling -- the hook a
// caller uses to attach per-worker state (e.g. its own Acceptor-less
// connection bookkeeping) before any event can reach it.
type InitCallback func(workerID string, l *loop.Loop)

// Pool supervises a fixed number of worker loops owned by a base loop. It
// must be constructed and Start-ed on the base loop's own goroutine; Close
// may be called from anywhere.
type Pool struct {
	base *loop.Loop

	mu      sync.Mutex
	started bool
	next    int
	workers []*worker
}

type worker struct {
	id     string
	loop   *loop.Loop
	done   chan struct{} // construction + init finished
	exited chan struct{} // Loop() returned and the loop's fds are released
}

// New returns a Pool bound to base. It does nothing until Start is called.
func New(base *loop.Loop) *Pool {
	return &Pool{base: base}
}

// Size returns the number of worker loops, 0 if Start has not run yet or
// was asked for zero workers.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Start spawns n worker loops, each on its own goroutine, and blocks until
// every one of them has finished running init (if non-nil) and is ready to
// receive channels. n == 0 is legal and leaves the pool empty: GetNextLoop
// and GetLoopWithHash then both return the base loop, so a zero-size pool
// simply runs everything single-threaded.
func (p *Pool) Start(n int, init InitCallback) error {
	p.base.CheckInOwnLoop()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrorAlreadyStarted.Error()
	}
	p.started = true

	if n <= 0 {
		return nil
	}

	var wg sync.WaitGroup
	errCh := make(chan error, n)

	for i := 0; i < n; i++ {
		id := uuid.NewString()
		w := &worker{id: id, done: make(chan struct{}), exited: make(chan struct{})}
		p.workers = append(p.workers, w)

		wg.Add(1)
		go func(w *worker) {
			defer close(w.exited)

			l, err := loop.New()
			if err != nil {
				errCh <- ErrorWorkerCreate.Error(err)
				close(w.done)
				wg.Done()
				return
			}
			w.loop = l

			if init != nil {
				init(w.id, l)
			}
			close(w.done)
			wg.Done() // construction+init done; Loop() below runs independently

			jww.TRACE.Printf("pool: worker %s looping", w.id)
			if err := l.Loop(); err != nil {
				jww.ERROR.Printf("pool: worker %s loop exited: %v", w.id, err)
			}
		}(w)
	}

	wg.Wait() // waits only for construction+init, not for Loop() to return
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// GetNextLoop returns a worker loop in round-robin order, or the base loop
// if the pool has no workers.
func (p *Pool) GetNextLoop() *loop.Loop {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.workers) == 0 {
		return p.base
	}
	w := p.workers[p.next]
	p.next = (p.next + 1) % len(p.workers)
	return w.loop
}

// GetLoopWithHash returns the worker loop at h % size, or the base loop if
// the pool has no workers.
func (p *Pool) GetLoopWithHash(h int) *loop.Loop {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.workers) == 0 {
		return p.base
	}
	if h < 0 {
		h = -h
	}
	return p.workers[h%len(p.workers)].loop
}

// GetAllLoops returns every worker loop, for callers (e.g. TcpServer) that
// need to sweep all of them at shutdown. Empty if the pool has no workers.
func (p *Pool) GetAllLoops() []*loop.Loop {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*loop.Loop, len(p.workers))
	for i, w := range p.workers {
		out[i] = w.loop
	}
	return out
}

// Close asks every worker loop to quit and waits for each worker
// goroutine to finish, aggregating any per-worker error with
// hashicorp/go-multierror. Safe to call from any goroutine: the fd
// teardown itself always happens on the worker's own goroutine when its
// Loop() returns, never here.
func (p *Pool) Close() error {
	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()

	var result *multierror.Error
	for _, w := range workers {
		if w.loop == nil {
			continue
		}
		if err := w.loop.Terminate(); err != nil {
			result = multierror.Append(result, err)
		}
		<-w.exited
	}
	return result.ErrorOrNil()
}
