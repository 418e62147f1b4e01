package counters

import (
	"sync/atomic"
)

// NewCounters initializes new counters handler. Thread safe.
func NewCounters() *Counters {

	return &Counters{
		counters: make([]uint64, counterMax+1),
	}
}

// CounterNames returns an array of names
func CounterNames() []string {
	names := make([]string, counterMax+1)
	var ct CounterType
	for ct = 0; ct <= counterMax; ct++ {
		names[ct] = ct.String()
	}
	return names
}

// CounterError is a convinence function which returns error as well as increments the counter.
func (c *Counters) CounterError(t CounterType, err error) error {

	atomic.AddUint64(&c.counters[int(t)], 1)

	return err
}

// IncrementCounter increments the counter of the given type
func (c *Counters) IncrementCounter(t CounterType) {
	atomic.AddUint64(&c.counters[int(t)], 1)
}

// AddCounter adds n to the counter of the given type
func (c *Counters) AddCounter(t CounterType, n uint64) {
	atomic.AddUint64(&c.counters[int(t)], n)
}

// Value returns the current value of a counter.
func (c *Counters) Value(t CounterType) uint64 {
	return atomic.LoadUint64(&c.counters[int(t)])
}

// GetCounters returns a copy of all counters. Counters are never reset
// so that they can be exported as monotonic metrics.
func (c *Counters) GetCounters() []uint64 {

	c.RLock()
	defer c.RUnlock()

	report := make([]uint64, len(c.counters))
	for index := range c.counters {
		report[index] = atomic.LoadUint64(&c.counters[index])
	}

	return report
}
