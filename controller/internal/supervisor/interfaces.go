package supervisor

import (
	"go.aporeto.io/nfregex/controller/pkg/counters"
	"go.aporeto.io/nfregex/utils/nfqparser"
)

// Worker is a queue worker observed by the supervisor.
type Worker interface {
	// Name returns the direction name of the worker.
	Name() string

	// Queue returns the queue number of the worker.
	Queue() uint16

	// Counters returns the packet counters of the worker.
	Counters() *counters.Counters

	// Running returns false once the worker terminated.
	Running() bool
}

// KernelStats provides the kernel statistics of the queues.
type KernelStats interface {

	// Synchronize refreshes the statistics.
	Synchronize() error

	// RetrieveByQueueNum returns the statistics of one queue or nil.
	RetrieveByQueueNum(queueNum uint16) *nfqparser.NFQLayout

	// RetrieveByField returns one field of every queue, space separated.
	RetrieveByField(field nfqparser.Field) string
}
