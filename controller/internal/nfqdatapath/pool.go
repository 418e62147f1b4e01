package nfqdatapath

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.aporeto.io/nfregex/collector"
	"go.aporeto.io/nfregex/controller/constants"
	"go.aporeto.io/nfregex/controller/internal/nfqueue"
	"go.aporeto.io/nfregex/controller/pkg/fqconfig"
	"go.aporeto.io/nfregex/controller/pkg/rules"
	nferrors "go.aporeto.io/nfregex/utils/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Range is an inclusive range of queue numbers.
type Range struct {
	Start uint16
	End   uint16
}

// Len returns the number of queues in the range.
func (r Range) Len() int {
	return int(r.End) - int(r.Start) + 1
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Pool owns a contiguous range of bound queues and their workers.
type Pool struct {
	name      string
	direction rules.Direction
	rng       Range
	workers   []*Worker

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	started   bool

	sync.Mutex
}

// NewPool binds fqaccessor.GetNumQueues() consecutive queues, starting the
// search at fqaccessor.GetQueueStart(). Queues are bound from the top of the
// window down. When a queue is owned by someone else every queue bound in
// the attempt is released and the search restarts right after the
// conflicting number. Queues are never taken from another owner.
func NewPool(name string, direction rules.Direction, fqaccessor fqconfig.FilterQueueAccessor, opener nfqueue.Opener) (*Pool, error) {

	count := int(fqaccessor.GetNumQueues())
	subject := name + " pool"

	if count == 0 {
		return nil, nferrors.NewError(nferrors.ResourceExhausted, subject, "no queues requested")
	}

	start := int(fqaccessor.GetQueueStart())

	for {
		end := start + count - 1
		if end > constants.MaxQueueNumber {
			return nil, nferrors.NewError(nferrors.ResourceExhausted, subject,
				fmt.Sprintf("no %d consecutive free queues at or above %d", count, fqaccessor.GetQueueStart()))
		}

		handles, err := bindWindow(opener, start, end)
		if err == nil {
			p := &Pool{
				name:      name,
				direction: direction,
				rng:       Range{Start: uint16(start), End: uint16(end)},
			}
			for _, h := range handles {
				p.workers = append(p.workers, newWorker(name, direction, h, fqaccessor.GetConnMark()))
			}

			zap.L().Info("Queue pool allocated",
				zap.String("direction", name),
				zap.Stringer("range", p.rng),
			)

			return p, nil
		}

		conflict, ok := err.(*bindConflict)
		if !ok {
			return nil, err
		}

		zap.L().Debug("Queue already in use, moving the window",
			zap.String("direction", name),
			zap.Int("queue", conflict.queue),
			zap.Error(conflict.err),
		)

		start = conflict.queue + 1
	}
}

type bindConflict struct {
	queue int
	err   error
}

func (b *bindConflict) Error() string {
	return b.err.Error()
}

// bindWindow binds [start, end] from end down to start. On failure every
// queue bound here is released. A conflict is returned as *bindConflict,
// any other failure together with the release errors.
func bindWindow(opener nfqueue.Opener, start, end int) ([]nfqueue.Handle, error) {

	handles := make([]nfqueue.Handle, end-start+1)

	for q := end; q >= start; q-- {
		h, err := opener.Open(uint16(q))
		if err == nil {
			handles[q-start] = h
			continue
		}

		rollbackErr := release(handles[q-start+1:])

		if nferrors.Is(err, nferrors.QueueBindConflict) {
			if rollbackErr != nil {
				zap.L().Warn("Unable to release queues after a conflict", zap.Error(rollbackErr))
			}
			return nil, &bindConflict{queue: q, err: err}
		}

		return nil, multierr.Append(err, rollbackErr)
	}

	return handles, nil
}

func release(handles []nfqueue.Handle) error {

	var err error
	for _, h := range handles {
		if h != nil {
			err = multierr.Append(err, h.Close())
		}
	}

	return err
}

// Name returns the direction name of the pool.
func (p *Pool) Name() string {
	return p.name
}

// Range returns the bound queue numbers.
func (p *Pool) Range() Range {
	return p.rng
}

// Workers returns the workers in ascending queue order.
func (p *Pool) Workers() []*Worker {
	return p.workers
}

// Start spawns one worker per queue. Every block is reported on
// diagnostics, errors are published on c.
func (p *Pool) Start(ctx context.Context, store *rules.Store, c collector.EventCollector, diagnostics io.Writer) {

	p.Lock()
	defer p.Unlock()

	if p.started {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)

	if c == nil {
		c = collector.NewDefaultCollector()
	}
	diagnostics = NewDiagnosticWriter(diagnostics)

	for _, w := range p.workers {
		w.store = store
		w.collector = c
		w.diagnostics = diagnostics
		w.running.Store(true)

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.run(ctx)
		}(w)
	}

	go func() {
		<-ctx.Done()
		p.Close() // nolint: errcheck
	}()
}

// Running returns the number of workers still running.
func (p *Pool) Running() int {

	n := 0
	for _, w := range p.workers {
		if w.Running() {
			n++
		}
	}

	return n
}

// Close stops the workers and releases the queues.
func (p *Pool) Close() error {

	var err error

	p.closeOnce.Do(func() {
		p.Lock()
		if p.cancel != nil {
			p.cancel()
		}
		p.Unlock()

		for _, w := range p.workers {
			err = multierr.Append(err, w.handle.Close())
		}

		p.wg.Wait()

		zap.L().Debug("Queue pool closed", zap.String("direction", p.name), zap.Stringer("range", p.rng))
	})

	return err
}

// Wait blocks until every worker terminated.
func (p *Pool) Wait() {
	p.wg.Wait()
}
