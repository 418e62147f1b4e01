package collector

import (
	"fmt"
	"time"
)

// EventType is the type of an event sent by the datapath.
type EventType int

const (
	// ErrorEvent reports a worker that stopped on an error.
	ErrorEvent EventType = iota
	// DropEvent reports packets dropped or reset since the last event.
	DropEvent
)

// Drop sources
const (
	// SourceUserspace counts packets blocked by the rules.
	SourceUserspace = "userspace"
	// SourceKernelQueue counts packets the kernel dropped because the queue was full.
	SourceKernelQueue = "kernel-queue"
	// SourceKernelUser counts packets the kernel could not deliver to the socket.
	SourceKernelUser = "kernel-user"
)

// Event is a datapath event.
type Event struct {
	Type      EventType
	Direction string
	Queue     uint16
	Err       error
	Source    string
	Count     uint64
	Timestamp time.Time
}

// String renders the event as E<message> or D<count>.
func (e *Event) String() string {

	switch e.Type {
	case ErrorEvent:
		if e.Err == nil {
			return "E"
		}
		return "E" + e.Err.Error()
	case DropEvent:
		return fmt.Sprintf("D%d", e.Count)
	default:
		return fmt.Sprintf("?%d", int(e.Type))
	}
}

// EventCollector is the interface for collecting datapath events.
type EventCollector interface {

	// CollectErrorEvent collects the error that terminated a queue worker.
	CollectErrorEvent(direction string, queue uint16, err error)

	// CollectDropEvent collects a number of dropped packets.
	CollectDropEvent(direction string, queue uint16, source string, count uint64)
}
