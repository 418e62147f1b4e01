package constants

import "time"

const (
	// EnvNumberOfThreads is the total number of queue workers. Half of them
	// serve the input direction, half the output direction.
	EnvNumberOfThreads = "NTHREADS"

	// EnvNumberOfProcs is read when EnvNumberOfThreads is not set.
	EnvNumberOfProcs = "NPROCS"

	// EnvQueueBase is the first candidate queue number.
	EnvQueueBase = "NFREGEX_QUEUE_BASE"

	// EnvQueueMaxLen is the maximum number of packets the kernel keeps in a queue.
	EnvQueueMaxLen = "NFREGEX_QUEUE_MAXLEN"

	// EnvFailOpen asks the kernel to accept packets when a queue is full.
	EnvFailOpen = "FIREGEX_NFQUEUE_FAIL_OPEN"

	// EnvReadBuffer is the receive buffer size of every queue socket, in bytes.
	EnvReadBuffer = "NFREGEX_READ_BUFFER"

	// EnvConnMark is the conntrack mark set on blocked connections.
	EnvConnMark = "NFREGEX_CONNMARK"

	// EnvNetNSPath is the path of the network namespace the queues are bound in.
	EnvNetNSPath = "NFREGEX_NETNS"

	// EnvMetricsAddress is the listen address of the prometheus endpoint.
	EnvMetricsAddress = "NFREGEX_METRICS_ADDR"

	// EnvStatsInterval is the period of the drop statistics reporter.
	EnvStatsInterval = "NFREGEX_STATS_INTERVAL"

	// EnvLogLevel is the log level.
	EnvLogLevel = "NFREGEX_LOG_LEVEL"

	// EnvLogFormat is the log format (json or console).
	EnvLogFormat = "NFREGEX_LOG_FORMAT"
)

const (
	// DefaultNumberOfThreads is used when no thread count is configured.
	DefaultNumberOfThreads = 2

	// DefaultQueueBase is the first queue number tried by the pools.
	DefaultQueueBase = 1000

	// DefaultQueueMaxLen is the default kernel queue length.
	DefaultQueueMaxLen = 500

	// DefaultStatsInterval is the default drop reporting period.
	DefaultStatsInterval = 5 * time.Second

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default log format.
	DefaultLogFormat = "json"
)

const (
	// DirectionInput is the name of the pool serving client to server traffic.
	DirectionInput = "input"

	// DirectionOutput is the name of the pool serving server to client traffic.
	DirectionOutput = "output"
)

// MaxQueueNumber is the largest queue number the kernel accepts.
const MaxQueueNumber = 65535
