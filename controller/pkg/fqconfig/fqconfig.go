package fqconfig

import "strconv"

// FilterQueue captures all the configuration parameters of the NFQUEUEs.
type FilterQueue struct {
	// QueueBase is the first queue number both pools start searching from
	QueueBase uint16
	// NumberOfInputQueues is the number of queues serving client to server traffic
	NumberOfInputQueues uint16
	// NumberOfOutputQueues is the number of queues serving server to client traffic
	NumberOfOutputQueues uint16
	// QueueSize is the maximum number of packets the kernel holds in each queue
	QueueSize uint32
	// MaxPacketLen is the number of bytes copied from every packet
	MaxPacketLen uint32
	// FailOpen asks the kernel to accept packets when the queue is full
	FailOpen bool
	// ConnMark is the conntrack mark attached to blocked verdicts, 0 disables it
	ConnMark uint32
}

// NewFilterQueueWithDefaults return a default filter queue config
func NewFilterQueueWithDefaults() *FilterQueue {
	return NewFilterQueue(
		DefaultNumberOfThreads,
		DefaultQueueBase,
		DefaultQueueSize,
		false,
		0,
	)
}

// NewFilterQueue returns an instance of FilterQueue. The thread count is
// rounded up to an even number and split evenly between the directions.
func NewFilterQueue(numberOfThreads, queueBase uint16, queueSize uint32, failOpen bool, connMark uint32) *FilterQueue {

	if numberOfThreads == 0 {
		numberOfThreads = DefaultNumberOfThreads
	}

	perDirection := numberOfThreads/2 + numberOfThreads%2

	if queueSize == 0 {
		queueSize = DefaultQueueSize
	}

	return &FilterQueue{
		QueueBase:            queueBase,
		NumberOfInputQueues:  perDirection,
		NumberOfOutputQueues: perDirection,
		QueueSize:            queueSize,
		MaxPacketLen:         DefaultMaxPacketLen,
		FailOpen:             failOpen,
		ConnMark:             connMark,
	}
}

// GetQueueBase returns the first queue number to try
func (f *FilterQueue) GetQueueBase() uint16 {
	return f.QueueBase
}

// GetNumInputQueues returns number of input queues
func (f *FilterQueue) GetNumInputQueues() uint16 {
	return f.NumberOfInputQueues
}

// GetNumOutputQueues returns number of output queues
func (f *FilterQueue) GetNumOutputQueues() uint16 {
	return f.NumberOfOutputQueues
}

// GetQueueSize returns the kernel queue length
func (f *FilterQueue) GetQueueSize() uint32 {
	return f.QueueSize
}

// GetConnMark returns the mark set on blocked connections
func (f *FilterQueue) GetConnMark() uint32 {
	return f.ConnMark
}

// QueueBalanceString renders an inclusive queue range the way the iptables
// NFQUEUE target expects it in --queue-balance.
func QueueBalanceString(start, end uint16) string {
	return strconv.Itoa(int(start)) + ":" + strconv.Itoa(int(end))
}

// Default parameters for the NFQUEUE configuration.
const (
	// DefaultNumberOfThreads is the default number of workers for both directions
	DefaultNumberOfThreads = 2
	// DefaultQueueBase represents the queue number to start
	DefaultQueueBase = 1000
	// DefaultQueueSize is the size of the queues
	DefaultQueueSize = 500
	// DefaultMaxPacketLen copies whole packets
	DefaultMaxPacketLen = 0xffff
)
