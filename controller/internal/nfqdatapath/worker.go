package nfqdatapath

import (
	"context"
	"io"
	"runtime"
	"sync/atomic"

	"go.aporeto.io/nfregex/collector"
	"go.aporeto.io/nfregex/controller/internal/nfqueue"
	"go.aporeto.io/nfregex/controller/pkg/counters"
	"go.aporeto.io/nfregex/controller/pkg/packet"
	"go.aporeto.io/nfregex/controller/pkg/rules"
	"go.aporeto.io/nfregex/utils/panicrecovery"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Worker services one bound queue. It is terminated by the first channel
// error and never restarted.
type Worker struct {
	name        string
	direction   rules.Direction
	handle      nfqueue.Handle
	store       *rules.Store
	collector   collector.EventCollector
	counters    *counters.Counters
	diagnostics io.Writer
	connMark    uint32

	running atomic.Bool
	done    chan struct{}
}

func newWorker(name string, direction rules.Direction, handle nfqueue.Handle, connMark uint32) *Worker {

	return &Worker{
		name:        name,
		direction:   direction,
		handle:      handle,
		counters:    counters.NewCounters(),
		collector:   &collector.DefaultCollector{},
		diagnostics: io.Discard,
		connMark:    connMark,
		done:        make(chan struct{}),
	}
}

// Queue returns the queue number served by the worker.
func (w *Worker) Queue() uint16 {
	return w.handle.Number()
}

// Name returns the name of the direction served by the worker.
func (w *Worker) Name() string {
	return w.name
}

// Counters returns the counters of the worker.
func (w *Worker) Counters() *counters.Counters {
	return w.counters
}

// Running returns true until the worker terminates.
func (w *Worker) Running() bool {
	return w.running.Load()
}

// Done is closed when the worker terminates.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// run processes packets until the channel fails or ctx is cancelled. The
// handle is closed by the owner to unblock Receive on shutdown.
func (w *Worker) run(ctx context.Context) {

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer close(w.done)
	defer w.running.Store(false)
	defer panicrecovery.HandleEventualPanicWithReport("queue worker", w.fail)

	zap.L().Debug("Queue worker started",
		zap.String("direction", w.name),
		zap.Uint16("queue", w.Queue()),
	)

	for {
		msgs, err := w.handle.Receive()
		if err != nil {
			if ctx.Err() == nil {
				w.fail(err)
			}
			return
		}

		for _, m := range msgs {
			if err := w.processPacket(m); err != nil {
				if ctx.Err() == nil {
					w.fail(err)
				}
				return
			}
		}
	}
}

func (w *Worker) fail(err error) {

	zap.L().Error("Queue worker terminated",
		zap.String("direction", w.name),
		zap.Uint16("queue", w.Queue()),
		zap.Error(err),
	)

	w.collector.CollectErrorEvent(w.name, w.Queue(), err)
}

// processPacket decides on one packet and sends the verdict. Only a failure
// to send the verdict is returned.
func (w *Worker) processPacket(m *nfqueue.Message) error {

	w.counters.IncrementCounter(counters.PacketsReceived)

	v := w.verdict(m)

	if err := w.handle.SetVerdict(v); err != nil {
		return w.counters.CounterError(counters.VerdictFailures, err)
	}

	return nil
}

func (w *Worker) verdict(m *nfqueue.Message) *nfqueue.Verdict {

	accept := &nfqueue.Verdict{ID: m.ID, Decision: nfqueue.Accept}

	p, err := packet.New(m.Payload)
	if err != nil {
		zap.L().Debug("Unable to decode packet", zap.Uint32("id", m.ID), zap.Error(err))
		w.counters.IncrementCounter(counters.DecodeFailures)
		w.counters.IncrementCounter(counters.PacketsFailOpen)
		return accept
	}

	if !p.HasPayload() {
		w.counters.IncrementCounter(counters.PacketsFailOpen)
		return accept
	}

	result := w.store.Snapshot().Check(p.Payload(), w.direction)
	if result.Action == rules.Accept {
		w.counters.IncrementCounter(counters.PacketsAccepted)
		return accept
	}

	w.counters.IncrementCounter(counters.PacketsBlocked)

	if ce := zap.L().Check(zapcore.DebugLevel, "Payload blocked"); ce != nil {
		ce.Write(
			zap.String("direction", w.name),
			zap.String("rule", result.RuleID),
			zap.Uint8("proto", p.IPProto()),
			zap.String("packet", p.String()),
		)
	}

	if err := writeBlocked(w.diagnostics, result.RuleID); err != nil {
		zap.L().Warn("Unable to write block notification", zap.String("rule", result.RuleID), zap.Error(err))
	}

	if p.L4Proto() != packet.L4TCP {
		w.counters.IncrementCounter(counters.PacketsDropped)
		return &nfqueue.Verdict{ID: m.ID, Decision: nfqueue.Drop, ConnMark: w.connMark}
	}

	reset, err := p.ConvertToFinAck()
	if err != nil {
		zap.L().Debug("Unable to build reset segment",
			zap.String("flow", p.FlowString()),
			zap.Uint32("seq", p.TCPSeqNum()),
			zap.Uint32("ack", p.TCPAckNum()),
			zap.Uint8("flags", p.TCPFlags()),
			zap.Bool("ip_checksum_valid", packet.VerifyIPChecksum(m.Payload)),
			zap.Bool("tcp_checksum_valid", packet.VerifyTCPChecksum(m.Payload)),
			zap.Error(err),
		)
		w.counters.IncrementCounter(counters.VerdictFailures)
		w.counters.IncrementCounter(counters.PacketsDropped)
		return &nfqueue.Verdict{ID: m.ID, Decision: nfqueue.Drop, ConnMark: w.connMark}
	}

	w.counters.IncrementCounter(counters.PacketsReset)

	return &nfqueue.Verdict{
		ID:       m.ID,
		Decision: nfqueue.Accept,
		Payload:  reset,
		ConnMark: w.connMark,
	}
}
