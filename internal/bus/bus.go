// Package bus provides the mailbox primitives workers use to exchange messages.
//
// Every component of the system is an actor: it owns a Mailbox, processes
// one message at a time in its Run loop, and talks to other actors only by
// posting models.Message values to their Sink. Posting never blocks the
// sender.
package bus

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// ErrClosed is returned when sending to a mailbox whose loop has stopped.
var ErrClosed = errors.New("mailbox closed")

// DefaultSize is the mailbox buffer used when none is configured.
const DefaultSize = 64

// Sink accepts messages for an actor.
type Sink interface {
	// Post enqueues msg without blocking the caller.
	Post(msg models.Message)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(msg models.Message)

// Post calls f(msg).
func (f SinkFunc) Post(msg models.Message) { f(msg) }

// Discard is a Sink that drops everything.
var Discard Sink = SinkFunc(func(models.Message) {})

// Handler processes one message taken from a mailbox.
type Handler func(ctx context.Context, msg models.Message)

// Mailbox is a buffered inbox drained by a single Run loop.
type Mailbox struct {
	name string
	ch   chan models.Message
	done chan struct{}

	closeOnce sync.Once
	pending   atomic.Int64
	dropped   atomic.Uint64
}

// NewMailbox creates a mailbox with the given buffer size.
func NewMailbox(name string, size int) *Mailbox {
	if size <= 0 {
		size = DefaultSize
	}
	return &Mailbox{
		name: name,
		ch:   make(chan models.Message, size),
		done: make(chan struct{}),
	}
}

// Post enqueues msg. When the buffer is full the message is handed to a
// goroutine that delivers it once space frees up or the mailbox closes.
func (m *Mailbox) Post(msg models.Message) {
	select {
	case <-m.done:
		m.drop(msg)
		return
	default:
	}

	select {
	case m.ch <- msg:
		m.pending.Add(1)
		return
	default:
	}

	go func() {
		select {
		case m.ch <- msg:
			m.pending.Add(1)
		case <-m.done:
			m.drop(msg)
		}
	}()
}

// Send enqueues msg, blocking until there is room, ctx is cancelled or the
// mailbox closes.
func (m *Mailbox) Send(ctx context.Context, msg models.Message) error {
	select {
	case <-m.done:
		return ErrClosed
	default:
	}
	select {
	case m.ch <- msg:
		m.pending.Add(1)
		return nil
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the mailbox, calling handle for each message in arrival order,
// until ctx is cancelled. The mailbox is closed when Run returns.
func (m *Mailbox) Run(ctx context.Context, handle Handler) error {
	defer m.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-m.ch:
			m.pending.Add(-1)
			handle(ctx, msg)
		}
	}
}

// Close stops accepting messages. Safe to call more than once.
func (m *Mailbox) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

// Done is closed once the mailbox stops accepting messages.
func (m *Mailbox) Done() <-chan struct{} {
	return m.done
}

// Len returns the number of queued messages.
func (m *Mailbox) Len() int {
	return int(m.pending.Load())
}

// Dropped returns how many messages were discarded after close.
func (m *Mailbox) Dropped() uint64 {
	return m.dropped.Load()
}

func (m *Mailbox) drop(msg models.Message) {
	count := m.dropped.Add(1)
	if count%10 == 1 {
		log.Printf("[%s] mailbox closed, dropped message (total dropped: %d): type=%s", m.name, count, msg.Type)
	}
}

// Collector is a Sink that records messages, used to observe actors in tests
// and by the CLI status output.
type Collector struct {
	mu     sync.Mutex
	msgs   []models.Message
	notify chan struct{}
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{notify: make(chan struct{}, 1)}
}

// Post records msg.
func (c *Collector) Post(msg models.Message) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Messages returns a copy of everything recorded so far.
func (c *Collector) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Message(nil), c.msgs...)
}

// OfType returns the recorded messages of type t.
func (c *Collector) OfType(t models.MessageType) []models.Message {
	var out []models.Message
	for _, m := range c.Messages() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// WaitFor blocks until pred holds for the recorded messages or timeout expires.
func (c *Collector) WaitFor(timeout time.Duration, pred func([]models.Message) bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if pred(c.Messages()) {
			return true
		}
		select {
		case <-c.notify:
		case <-deadline.C:
			return pred(c.Messages())
		}
	}
}
