package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("events: bus closed")

// Bus is an unbounded FIFO of events. Emit never blocks and never drops;
// consumers drain in insertion order.
type Bus struct {
	mu     sync.Mutex
	queue  []Event
	notify chan struct{}
	stopCh chan struct{}
	once   sync.Once
	now    func() time.Time
}

func NewBus() *Bus {
	return &Bus{
		notify: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
}

// Emit stamps ev with an id and time when missing and appends it.
func (b *Bus) Emit(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = b.now().UTC()
	}
	b.mu.Lock()
	b.queue = append(b.queue, ev)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *Bus) TryNext() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return Event{}, false
	}
	ev := b.queue[0]
	b.queue[0] = Event{}
	b.queue = b.queue[1:]
	return ev, true
}

// Drain removes and returns everything queued.
func (b *Bus) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queue
	b.queue = nil
	return out
}

func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Next blocks until an event is available, ctx is done, or the bus is
// stopped and empty.
func (b *Bus) Next(ctx context.Context) (Event, error) {
	for {
		if ev, ok := b.TryNext(); ok {
			return ev, nil
		}
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-b.stopCh:
			if ev, ok := b.TryNext(); ok {
				return ev, nil
			}
			return Event{}, ErrClosed
		case <-b.notify:
		}
	}
}

func (b *Bus) Stop() {
	b.once.Do(func() {
		close(b.stopCh)
	})
}
