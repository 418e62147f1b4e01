package collector

// DefaultCollector implements a default collector infrastructure that discards events
type DefaultCollector struct{}

// NewDefaultCollector returns a default implementation of an EventCollector
func NewDefaultCollector() EventCollector {
	return &DefaultCollector{}
}

// CollectErrorEvent is part of the EventCollector interface.
func (d *DefaultCollector) CollectErrorEvent(direction string, queue uint16, err error) {}

// CollectDropEvent is part of the EventCollector interface.
func (d *DefaultCollector) CollectDropEvent(direction string, queue uint16, source string, count uint64) {
}
