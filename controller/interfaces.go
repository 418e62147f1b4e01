package controller

import (
	"context"
	"io"
)

// QueueRange is an inclusive range of queue numbers.
type QueueRange struct {
	Start uint16
	End   uint16
}

// A Controller binds the queues of both directions and inspects their
// packets against the current rules.
type Controller interface {

	// Start allocates both queue pools, reports the ranges on the
	// diagnostic writer and starts the workers.
	Start(ctx context.Context) error

	// Ranges returns the input and output queue ranges.
	Ranges() (input QueueRange, output QueueRange)

	// UpdateRules installs the rules of one config line.
	UpdateRules(line string) uint64

	// Run reads config lines from r until end of stream.
	Run(ctx context.Context, r io.Reader) error

	// Stop releases every queue.
	Stop() error
}
