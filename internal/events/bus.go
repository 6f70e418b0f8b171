// Package events carries store change notifications between components.
package events

import (
	"strings"
	"sync"
	"time"
)

// Topic names a table whose changes can be observed.
type Topic string

const (
	Categories  Topic = "categories"
	Records     Topic = "records"
	Preferences Topic = "preferences"
)

// Op is a bit mask of mutation kinds.
type Op uint8

const (
	OpInsert Op = 1 << iota
	OpUpdate
	OpDelete

	OpAll = OpInsert | OpUpdate | OpDelete
)

func (o Op) String() string {
	var parts []string
	if o&OpInsert != 0 {
		parts = append(parts, "insert")
	}
	if o&OpUpdate != 0 {
		parts = append(parts, "update")
	}
	if o&OpDelete != 0 {
		parts = append(parts, "delete")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Change says that a table was mutated. It carries no row data: receivers
// re-query what they display. UserID is zero when the owner is not known.
type Change struct {
	Topic  Topic
	Op     Op
	UserID uint
	At     time.Time
}

// Concerns reports whether a subscriber watching userID's data should react.
func (c Change) Concerns(userID uint) bool {
	return c.UserID == 0 || c.UserID == userID
}

// Handler receives changes on the subscriber's own goroutine.
type Handler func(Change)

// Bus is a process-wide publish/subscribe hub. Delivery is asynchronous and
// coalescing: while a subscriber has an undelivered change pending, further
// changes for it are dropped. Changes are filtered by user before they reach
// the pending slot, so another user's traffic never displaces one's own.
type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]*subscription
	next uint64
}

type subscription struct {
	topic   Topic
	mask    Op
	userID  uint
	handler Handler
	pending chan Change
	done    chan struct{}
	once    sync.Once
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*subscription)}
}

// Subscribe registers handler for changes of topic matching mask that concern
// userID. A zero userID receives every user's changes. The returned function
// unsubscribes; it is safe to call more than once.
func (b *Bus) Subscribe(topic Topic, mask Op, userID uint, handler Handler) func() {
	sub := &subscription{
		topic:   topic,
		mask:    mask,
		userID:  userID,
		handler: handler,
		pending: make(chan Change, 1),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	go sub.run()

	return func() {
		sub.once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.done)
		})
	}
}

// Publish never blocks.
func (b *Bus) Publish(change Change) {
	if change.At.IsZero() {
		change.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !sub.accepts(change) {
			continue
		}
		select {
		case sub.pending <- change:
		default:
		}
	}
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (s *subscription) accepts(change Change) bool {
	if s.topic != change.Topic || s.mask&change.Op == 0 {
		return false
	}
	return s.userID == 0 || change.Concerns(s.userID)
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case change := <-s.pending:
			select {
			case <-s.done:
				return
			default:
			}
			s.handler(change)
		}
	}
}
