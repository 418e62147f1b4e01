package controller

import (
	"io"
	"time"

	"go.aporeto.io/nfregex/collector"
	"go.aporeto.io/nfregex/controller/constants"
	"go.aporeto.io/nfregex/controller/internal/nfqueue"
	"go.aporeto.io/nfregex/controller/internal/supervisor"
	"go.aporeto.io/nfregex/controller/pkg/env"
	"go.aporeto.io/nfregex/controller/pkg/fqconfig"
	"go.aporeto.io/nfregex/controller/pkg/rules"
)

// config specifies all configurations accepted by the controller to start.
type config struct {
	fq             *fqconfig.FilterQueue
	netnsPath      string
	readBuffer     int
	metricsAddress string
	statsInterval  time.Duration
	diagnostics    io.Writer

	// External interface implementations that we allow to plugin to components.
	bus         *collector.Bus
	compiler    rules.Compiler
	opener      nfqueue.Opener
	kernelStats supervisor.KernelStats
}

// Option is provided using functional arguments.
type Option func(*config)

// OptionFqConfig is an option to override filter queues.
func OptionFqConfig(f *fqconfig.FilterQueue) Option {
	return func(cfg *config) {
		cfg.fq = f
	}
}

// OptionNetNSPath binds the queues in the network namespace at path.
func OptionNetNSPath(path string) Option {
	return func(cfg *config) {
		cfg.netnsPath = path
	}
}

// OptionReadBuffer sets the receive buffer size of the queue sockets.
// Zero keeps the system default.
func OptionReadBuffer(size int) Option {
	return func(cfg *config) {
		cfg.readBuffer = size
	}
}

// OptionMetricsAddress serves the prometheus metrics on address.
func OptionMetricsAddress(address string) Option {
	return func(cfg *config) {
		cfg.metricsAddress = address
	}
}

// OptionStatsInterval sets the drop reporting period.
func OptionStatsInterval(interval time.Duration) Option {
	return func(cfg *config) {
		cfg.statsInterval = interval
	}
}

// OptionDiagnostics sets the writer receiving the block and queue lines.
func OptionDiagnostics(w io.Writer) Option {
	return func(cfg *config) {
		cfg.diagnostics = w
	}
}

// OptionEventBus is an option to provide the bus the workers publish on.
func OptionEventBus(b *collector.Bus) Option {
	return func(cfg *config) {
		cfg.bus = b
	}
}

// OptionCompiler is an option to provide the pattern compiler.
func OptionCompiler(c rules.Compiler) Option {
	return func(cfg *config) {
		cfg.compiler = c
	}
}

// optionOpener replaces the kernel queue opener.
func optionOpener(o nfqueue.Opener) Option {
	return func(cfg *config) {
		cfg.opener = o
	}
}

// optionKernelStats replaces the kernel queue statistics.
func optionKernelStats(s supervisor.KernelStats) Option {
	return func(cfg *config) {
		cfg.kernelStats = s
	}
}

// OptionsFromParameters maps the environment parameters to options.
func OptionsFromParameters(p *env.Parameters) []Option {

	return []Option{
		OptionFqConfig(fqconfig.NewFilterQueue(p.NumberOfThreads, p.QueueBase, p.QueueMaxLen, p.FailOpen, p.ConnMark)),
		OptionNetNSPath(p.NetNSPath),
		OptionReadBuffer(p.ReadBuffer),
		OptionMetricsAddress(p.MetricsAddress),
		OptionStatsInterval(p.StatsInterval),
	}
}

func defaultConfig() *config {

	return &config{
		fq:            fqconfig.NewFilterQueueWithDefaults(),
		statsInterval: constants.DefaultStatsInterval,
		diagnostics:   io.Discard,
	}
}
