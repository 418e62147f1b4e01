package controller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vishvananda/netns"
	"go.aporeto.io/nfregex/collector"
	"go.aporeto.io/nfregex/controller/internal/nfqdatapath"
	"go.aporeto.io/nfregex/controller/internal/nfqueue"
	"go.aporeto.io/nfregex/controller/internal/supervisor"
	"go.aporeto.io/nfregex/controller/pkg/configreader"
	"go.aporeto.io/nfregex/controller/pkg/counters"
	"go.aporeto.io/nfregex/controller/pkg/fqconfig"
	"go.aporeto.io/nfregex/controller/pkg/rules"
	"go.aporeto.io/nfregex/utils/nfqparser"
	"go.aporeto.io/nfregex/utils/panicrecovery"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// nfregex contains references to all the different components involved.
type nfregex struct {
	config *config

	store  *rules.Store
	reader *configreader.Reader
	pools  *nfqdatapath.DirectionPools
	ns     netns.NsHandle
	server *http.Server

	stopOnce sync.Once
	sync.Mutex
}

// New returns a controller based on the configuration provided.
func New(opts ...Option) Controller {

	c := defaultConfig()

	for _, opt := range opts {
		opt(c)
	}

	if c.bus == nil {
		c.bus = collector.NewBus()
	}
	if c.compiler == nil {
		c.compiler = rules.NewRegexpCompiler(rules.DefaultPatternCacheSize)
	}
	if c.kernelStats == nil {
		c.kernelStats = nfqparser.NewNFQParser()
	}
	// shared by the workers and the config reader
	c.diagnostics = nfqdatapath.NewDiagnosticWriter(c.diagnostics)

	zap.L().Debug("Controller configuration", zap.String("configuration", fmt.Sprintf("%+v", *c.fq)))

	store := rules.NewStore()

	return &nfregex{
		config: c,
		store:  store,
		reader: configreader.New(store, c.compiler, c.diagnostics),
		ns:     netns.None(),
	}
}

// Start implements Controller.
func (n *nfregex) Start(ctx context.Context) error {

	n.Lock()
	defer n.Unlock()

	if n.pools != nil {
		return errors.New("controller already started")
	}

	opener := n.config.opener
	if opener == nil {
		var err error
		if opener, err = n.queueOpener(); err != nil {
			return err
		}
	}

	pools, err := nfqdatapath.NewDirectionPools(n.config.fq, opener)
	if err != nil {
		n.closeNetNS()
		return errors.Wrap(err, "unable to allocate queues")
	}
	n.pools = pools

	input, output := pools.Input.Range(), pools.Output.Range()

	if _, err := fmt.Fprintf(n.config.diagnostics, "QUEUES INPUT %d %d OUTPUT %d %d\n",
		input.Start, input.End, output.Start, output.End); err != nil {
		zap.L().Warn("Unable to report queue ranges", zap.Error(err))
	}

	zap.L().Info("Queues bound",
		zap.String("input", fqconfig.QueueBalanceString(input.Start, input.End)),
		zap.String("output", fqconfig.QueueBalanceString(output.Start, output.End)),
	)

	if n.config.metricsAddress != "" {
		if err := n.startMetrics(); err != nil {
			return multierr.Append(err, n.stop())
		}
	}

	pools.Start(ctx, n.store, n.config.bus, n.config.diagnostics)

	workers := pools.Workers()
	observed := make([]supervisor.Worker, 0, len(workers))
	for _, w := range workers {
		observed = append(observed, w)
	}

	s := supervisor.New(n.config.bus, observed, n.config.kernelStats, n.config.statsInterval)
	go func() {
		defer panicrecovery.HandleEventualPanic("supervisor", nil)
		if err := s.Run(ctx); err != nil && ctx.Err() == nil {
			zap.L().Error("Supervisor stopped", zap.Error(err))
		}
	}()

	return nil
}

func (n *nfregex) queueOpener() (nfqueue.Opener, error) {

	fq := n.config.fq
	cfg := nfqueue.Config{
		MaxPacketLen: fq.MaxPacketLen,
		MaxQueueLen:  fq.GetQueueSize(),
		FailOpen:     fq.FailOpen,
		ReadBuffer:   n.config.readBuffer,
	}

	if n.config.netnsPath != "" {
		ns, err := netns.GetFromPath(n.config.netnsPath)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to open network namespace %s", n.config.netnsPath)
		}
		n.ns = ns
		cfg.NetNS = int(ns)
	}

	return nfqueue.NewQueueOpener(cfg), nil
}

func (n *nfregex) startMetrics() error {

	metrics := counters.NewCollector()
	for _, w := range n.pools.Workers() {
		metrics.Register(w.Name(), w.Queue(), w.Counters())
	}

	registry := prometheus.NewRegistry()
	if err := registry.Register(metrics); err != nil {
		return errors.Wrap(err, "unable to register counters")
	}
	registry.MustRegister(collectors.NewGoCollector())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	n.server = &http.Server{
		Addr:              n.config.metricsAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := n.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Error("Metrics server stopped", zap.String("address", n.config.metricsAddress), zap.Error(err))
		}
	}()

	return nil
}

// Ranges implements Controller.
func (n *nfregex) Ranges() (QueueRange, QueueRange) {

	n.Lock()
	defer n.Unlock()

	if n.pools == nil {
		return QueueRange{}, QueueRange{}
	}

	input, output := n.pools.Input.Range(), n.pools.Output.Range()

	return QueueRange{Start: input.Start, End: input.End}, QueueRange{Start: output.Start, End: output.End}
}

// UpdateRules implements Controller.
func (n *nfregex) UpdateRules(line string) uint64 {
	return n.reader.Apply(line)
}

// Run implements Controller.
func (n *nfregex) Run(ctx context.Context, r io.Reader) error {
	return n.reader.Run(ctx, r)
}

// Stop implements Controller.
func (n *nfregex) Stop() error {

	n.Lock()
	defer n.Unlock()

	return n.stop()
}

func (n *nfregex) stop() error {

	var err error

	n.stopOnce.Do(func() {
		if n.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err = multierr.Append(err, n.server.Shutdown(ctx))
			cancel()
		}

		if n.pools != nil {
			err = multierr.Append(err, n.pools.Close())
		}

		n.config.bus.Close()
		n.closeNetNS()
	})

	return err
}

func (n *nfregex) closeNetNS() {

	if n.ns.IsOpen() {
		if err := n.ns.Close(); err != nil {
			zap.L().Debug("Unable to close network namespace", zap.Error(err))
		}
		n.ns = netns.None()
	}
}
