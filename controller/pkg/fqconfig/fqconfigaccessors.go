package fqconfig

import "go.aporeto.io/nfregex/controller/constants"

type filterQueueAccessor struct {
	direction string
	fqconfig  *FilterQueue
}

// NewFilterQueueAccessor accessor to extract values depending on direction
func NewFilterQueueAccessor(fqconfig *FilterQueue, direction string) FilterQueueAccessor {
	return &filterQueueAccessor{
		direction: direction,
		fqconfig:  fqconfig,
	}
}

// GetNumQueues return number of queues
func (f *filterQueueAccessor) GetNumQueues() uint16 {
	if f.direction == constants.DirectionOutput {
		return f.fqconfig.GetNumOutputQueues()
	}

	return f.fqconfig.GetNumInputQueues()
}

// GetQueueStart returns the first candidate queue. Both directions search
// from the same base; the pools skip numbers that are already bound.
func (f *filterQueueAccessor) GetQueueStart() uint16 {
	return f.fqconfig.GetQueueBase()
}

func (f *filterQueueAccessor) GetQueueSize() uint32 {
	return f.fqconfig.GetQueueSize()
}

func (f *filterQueueAccessor) GetMaxPacketLen() uint32 {
	return f.fqconfig.MaxPacketLen
}

func (f *filterQueueAccessor) GetFailOpen() bool {
	return f.fqconfig.FailOpen
}

func (f *filterQueueAccessor) GetConnMark() uint32 {
	return f.fqconfig.GetConnMark()
}
