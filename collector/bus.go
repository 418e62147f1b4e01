package collector

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusClosed is returned by Receive once the bus is closed and drained.
var ErrBusClosed = errors.New("event bus closed")

// Bus is an unbounded multi producer, single consumer event queue.
// Producers never block.
type Bus struct {
	events []*Event
	signal chan struct{}
	closed bool

	sync.Mutex
}

// NewBus returns an empty bus.
func NewBus() *Bus {

	return &Bus{
		signal: make(chan struct{}, 1),
	}
}

// CollectErrorEvent implements EventCollector.
func (b *Bus) CollectErrorEvent(direction string, queue uint16, err error) {

	b.Publish(&Event{
		Type:      ErrorEvent,
		Direction: direction,
		Queue:     queue,
		Err:       err,
	})
}

// CollectDropEvent implements EventCollector.
func (b *Bus) CollectDropEvent(direction string, queue uint16, source string, count uint64) {

	b.Publish(&Event{
		Type:      DropEvent,
		Direction: direction,
		Queue:     queue,
		Source:    source,
		Count:     count,
	})
}

// Publish queues an event. Events published after Close are discarded.
func (b *Bus) Publish(e *Event) {

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.Lock()
	if b.closed {
		b.Unlock()
		return
	}
	b.events = append(b.events, e)
	b.Unlock()

	b.notify()
}

func (b *Bus) notify() {

	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Receive returns the oldest event, waiting for one if needed. Pending
// events are still returned after Close.
func (b *Bus) Receive(ctx context.Context) (*Event, error) {

	for {
		b.Lock()
		if len(b.events) > 0 {
			e := b.events[0]
			b.events[0] = nil
			b.events = b.events[1:]
			b.Unlock()
			return e, nil
		}
		closed := b.closed
		b.Unlock()

		if closed {
			return nil, ErrBusClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.signal:
		}
	}
}

// Len returns the number of pending events.
func (b *Bus) Len() int {

	b.Lock()
	defer b.Unlock()

	return len(b.events)
}

// Close stops accepting events and wakes up the consumer.
func (b *Bus) Close() {

	b.Lock()
	b.closed = true
	b.Unlock()

	b.notify()
}
