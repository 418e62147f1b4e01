package fqconfig

// FilterQueueAccessor exposes the queue parameters of one direction.
type FilterQueueAccessor interface {
	GetNumQueues() uint16
	GetQueueStart() uint16
	GetQueueSize() uint32
	GetMaxPacketLen() uint32
	GetFailOpen() bool
	GetConnMark() uint32
}
