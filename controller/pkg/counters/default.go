package counters

// defaultCounters are a global instance of counters.
// These are used for events that do not belong to a queue.
var defaultCounters = NewCounters()

// CounterError is a convinence function which returns error as well as increments the counter.
func CounterError(t CounterType, err error) error { // nolint
	return defaultCounters.CounterError(t, err)
}

// IncrementCounter increments a global counter
func IncrementCounter(t CounterType) {
	defaultCounters.IncrementCounter(t)
}

// AddCounter adds n to a global counter
func AddCounter(t CounterType, n uint64) {
	defaultCounters.AddCounter(t, n)
}

// Default returns the global counters.
func Default() *Counters {
	return defaultCounters
}
