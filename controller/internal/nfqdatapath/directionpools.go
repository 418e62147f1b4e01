package nfqdatapath

import (
	"context"
	"io"

	"go.aporeto.io/nfregex/collector"
	"go.aporeto.io/nfregex/controller/constants"
	"go.aporeto.io/nfregex/controller/internal/nfqueue"
	"go.aporeto.io/nfregex/controller/pkg/fqconfig"
	"go.aporeto.io/nfregex/controller/pkg/rules"
	"go.uber.org/multierr"
)

// DirectionPools holds the input pool, serving client to server traffic,
// and the output pool, serving server to client traffic.
type DirectionPools struct {
	Input  *Pool
	Output *Pool
}

// NewDirectionPools allocates both pools. The output search starts right
// after the input range. No worker runs before Start.
func NewDirectionPools(fq *fqconfig.FilterQueue, opener nfqueue.Opener) (*DirectionPools, error) {

	input, err := NewPool(constants.DirectionInput, rules.ClientToServer,
		fqconfig.NewFilterQueueAccessor(fq, constants.DirectionInput), opener)
	if err != nil {
		return nil, err
	}

	outputStart := int(input.Range().End) + 1
	if outputStart > constants.MaxQueueNumber {
		// the output pool fails with ResourceExhausted on its own
		outputStart = constants.MaxQueueNumber
	}

	outputFq := *fq
	outputFq.QueueBase = uint16(outputStart)

	output, err := NewPool(constants.DirectionOutput, rules.ServerToClient,
		fqconfig.NewFilterQueueAccessor(&outputFq, constants.DirectionOutput), opener)
	if err != nil {
		return nil, multierr.Append(err, input.Close())
	}

	return &DirectionPools{
		Input:  input,
		Output: output,
	}, nil
}

// Start starts the workers of both pools.
func (d *DirectionPools) Start(ctx context.Context, store *rules.Store, c collector.EventCollector, diagnostics io.Writer) {

	diagnostics = NewDiagnosticWriter(diagnostics)

	d.Input.Start(ctx, store, c, diagnostics)
	d.Output.Start(ctx, store, c, diagnostics)
}

// Workers returns the workers of both pools, input first.
func (d *DirectionPools) Workers() []*Worker {

	workers := make([]*Worker, 0, len(d.Input.Workers())+len(d.Output.Workers()))
	workers = append(workers, d.Input.Workers()...)

	return append(workers, d.Output.Workers()...)
}

// Running returns the number of live workers.
func (d *DirectionPools) Running() int {
	return d.Input.Running() + d.Output.Running()
}

// Close closes both pools.
func (d *DirectionPools) Close() error {
	return multierr.Append(d.Input.Close(), d.Output.Close())
}
