package engine

import (
	"bufio"
	"fmt"
	"io"
	"sync"
)

// LineChannel wraps one engine's stdin/stdout as two independent streams:
// outbound command lines queue in memory and a writer goroutine drains
// them, inbound lines arrive on a channel that closes at pipe EOF. Writer
// and reader never block each other, and partial lines are never
// interleaved. Engine commands are small and infrequent, so the outbound
// queue is unbounded and needs no flow control.
type LineChannel struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []string
	closed bool

	w io.WriteCloser

	lines chan string
	done  chan struct{}
}

// NewLineChannel starts the reader and writer goroutines over the given
// pipe ends.
func NewLineChannel(r io.Reader, w io.WriteCloser) *LineChannel {
	c := &LineChannel{
		w:     w,
		lines: make(chan string, 64),
		done:  make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)

	go c.readLoop(r)
	go c.writeLoop()

	return c
}

// Send queues one outbound line. It never blocks; after Close (or a write
// failure) it fails fast with ErrChannelClosed.
func (c *LineChannel) Send(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	c.queue = append(c.queue, line)
	c.cond.Signal()
	return nil
}

// Lines returns the inbound stream. The channel closes when the
// underlying pipe does; the sequence restarts only by recreating the
// channel with a new process.
func (c *LineChannel) Lines() <-chan string {
	return c.lines
}

// Close tears down the outbound side. Queued lines that have not been
// written yet are dropped. Safe to call more than once.
func (c *LineChannel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.queue = nil
	c.cond.Signal()
	close(c.done)
	c.mu.Unlock()

	c.w.Close()
}

func (c *LineChannel) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case c.lines <- scanner.Text():
		case <-c.done:
			// The receiver stopped draining. Keep consuming the pipe so
			// a chatty dying engine cannot block on a full stdout buffer.
		}
	}
	close(c.lines)
}

func (c *LineChannel) writeLoop() {
	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closed {
			c.cond.Wait()
		}
		if c.closed {
			c.mu.Unlock()
			return
		}
		line := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		if _, err := fmt.Fprintln(c.w, line); err != nil {
			// Engine hung up mid-write; fail all future sends.
			c.Close()
			return
		}
	}
}
