package supervisor

import (
	"context"
	"time"

	"go.aporeto.io/nfregex/collector"
	"go.aporeto.io/nfregex/controller/constants"
	"go.aporeto.io/nfregex/controller/pkg/counters"
	"go.aporeto.io/nfregex/utils/nfqparser"
	"go.aporeto.io/nfregex/utils/panicrecovery"
	"go.uber.org/zap"
)

type queueTotals struct {
	blocked      uint64
	queueDropped uint64
	userDropped  uint64
	// the queue was absent from the kernel statistics at the last report
	missing bool
}

// Config is the structure holding all information about the supervisor
type Config struct {
	bus      *collector.Bus
	workers  []Worker
	stats    KernelStats
	interval time.Duration

	// last totals reported, by queue
	last map[uint16]*queueTotals
	// number of live workers at the last report
	running int
}

// New returns a supervisor draining bus and reporting drops of workers
// every interval. stats may be nil when the kernel statistics are not
// available.
func New(bus *collector.Bus, workers []Worker, stats KernelStats, interval time.Duration) *Config {

	if interval <= 0 {
		interval = constants.DefaultStatsInterval
	}

	return &Config{
		bus:      bus,
		workers:  workers,
		stats:    stats,
		interval: interval,
		last:     map[uint16]*queueTotals{},
		running:  len(workers),
	}
}

// Run drains the bus until ctx is cancelled or the bus is closed.
func (s *Config) Run(ctx context.Context) error {

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.reportDrops(ctx)

	for {
		e, err := s.bus.Receive(ctx)
		if err != nil {
			if err == collector.ErrBusClosed {
				return nil
			}
			return err
		}

		s.handleEvent(e)
	}
}

func (s *Config) handleEvent(e *collector.Event) {

	switch e.Type {
	case collector.ErrorEvent:
		zap.L().Error("Queue worker failed",
			zap.String("direction", e.Direction),
			zap.Uint16("queue", e.Queue),
			zap.String("event", e.String()),
		)
	case collector.DropEvent:
		zap.L().Info("Packets dropped",
			zap.String("direction", e.Direction),
			zap.Uint16("queue", e.Queue),
			zap.String("source", e.Source),
			zap.String("event", e.String()),
		)
	default:
		zap.L().Warn("Unknown event", zap.String("event", e.String()))
	}
}

func (s *Config) reportDrops(ctx context.Context) {

	defer panicrecovery.HandleEventualPanic("drop reporter", nil)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.report()
		case <-ctx.Done():
			return
		}
	}
}

// report publishes the drops counted since the previous report.
func (s *Config) report() {

	if s.stats != nil {
		if err := s.stats.Synchronize(); err != nil {
			zap.L().Debug("Unable to read kernel queue statistics", zap.Error(err))
		}
	}

	running := 0

	for _, w := range s.workers {
		if w.Running() {
			running++
		}

		last, ok := s.last[w.Queue()]
		if !ok {
			last = &queueTotals{}
			s.last[w.Queue()] = last
		}

		blocked := w.Counters().Value(counters.PacketsBlocked)
		if d := delta(&last.blocked, blocked); d > 0 {
			s.bus.CollectDropEvent(w.Name(), w.Queue(), collector.SourceUserspace, d)
		}

		if s.stats == nil {
			continue
		}

		layout := s.stats.RetrieveByQueueNum(w.Queue())
		if layout == nil {
			if w.Running() && !last.missing {
				zap.L().Warn("Queue not listed by the kernel",
					zap.String("direction", w.Name()),
					zap.Uint16("queue", w.Queue()),
					zap.String("kernel_queues", s.stats.RetrieveByField(nfqparser.FieldQueueNum)),
				)
			}
			last.missing = true
			continue
		}
		last.missing = false

		queueDropped, userDropped, err := layout.Drops()
		if err != nil {
			continue
		}

		if d := delta(&last.queueDropped, queueDropped); d > 0 {
			s.bus.CollectDropEvent(w.Name(), w.Queue(), collector.SourceKernelQueue, d)
		}

		if d := delta(&last.userDropped, userDropped); d > 0 {
			s.bus.CollectDropEvent(w.Name(), w.Queue(), collector.SourceKernelUser, d)
		}
	}

	if running != s.running {
		zap.L().Warn("Queue workers terminated",
			zap.Int("running", running),
			zap.Int("total", len(s.workers)),
		)
		if running == 0 && len(s.workers) > 0 {
			zap.L().Error("No queue worker left, packets are no longer inspected")
		}
		s.running = running
	}
}

// delta returns the increase of a counter and records current. A counter
// that went backwards was reset and counts from zero.
func delta(last *uint64, current uint64) uint64 {

	d := current - *last
	if current < *last {
		d = current
	}
	*last = current

	return d
}
