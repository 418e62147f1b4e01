package env

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.aporeto.io/nfregex/controller/constants"
)

// Parameters holds every setting read from the environment.
type Parameters struct {
	// NumberOfThreads is always even: half input, half output.
	NumberOfThreads uint16
	QueueBase       uint16
	QueueMaxLen     uint32
	FailOpen        bool
	ConnMark        uint32
	ReadBuffer      int
	NetNSPath       string
	MetricsAddress  string
	StatsInterval   time.Duration
	LogLevel        string
	LogFormat       string

	// Warnings lists the values that were replaced by a default. They are
	// collected here because the logger is built from these parameters.
	Warnings []error
}

// LookupFunc retrieves the value of an environment variable.
type LookupFunc func(key string) (string, bool)

// GetParameters retrieves the parameters from the process environment.
func GetParameters() (*Parameters, error) {
	return GetParametersFrom(os.LookupEnv)
}

// GetParametersFrom retrieves the parameters using lookup.
func GetParametersFrom(lookup LookupFunc) (*Parameters, error) {

	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	p := &Parameters{
		NumberOfThreads: constants.DefaultNumberOfThreads,
		QueueBase:       constants.DefaultQueueBase,
		QueueMaxLen:     constants.DefaultQueueMaxLen,
		StatsInterval:   constants.DefaultStatsInterval,
		LogLevel:        constants.DefaultLogLevel,
		LogFormat:       constants.DefaultLogFormat,
		NetNSPath:       get(constants.EnvNetNSPath),
		MetricsAddress:  get(constants.EnvMetricsAddress),
	}

	threads := get(constants.EnvNumberOfThreads)
	threadsKey := constants.EnvNumberOfThreads
	if threads == "" {
		threads = get(constants.EnvNumberOfProcs)
		threadsKey = constants.EnvNumberOfProcs
	}
	if threads != "" {
		n, err := strconv.ParseUint(threads, 10, 16)
		switch {
		case err != nil:
			p.Warnings = append(p.Warnings, errors.Wrapf(err, "invalid %s, using %d", threadsKey, constants.DefaultNumberOfThreads))
		case n > 0:
			p.NumberOfThreads = roundUpToEven(uint16(n))
		}
	}

	if v := get(constants.EnvQueueBase); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", constants.EnvQueueBase)
		}
		p.QueueBase = uint16(n)
	}

	if v := get(constants.EnvQueueMaxLen); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return nil, errors.Errorf("invalid %s: %q", constants.EnvQueueMaxLen, v)
		}
		p.QueueMaxLen = uint32(n)
	}

	if v := get(constants.EnvFailOpen); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", constants.EnvFailOpen)
		}
		p.FailOpen = b
	}

	if v := get(constants.EnvConnMark); v != "" {
		// base 0 accepts hex marks such as 0x1337
		n, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", constants.EnvConnMark)
		}
		p.ConnMark = uint32(n)
	}

	if v := get(constants.EnvReadBuffer); v != "" {
		n, err := strconv.ParseUint(v, 10, 31)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", constants.EnvReadBuffer)
		}
		p.ReadBuffer = int(n)
	}

	if v := get(constants.EnvStatsInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, errors.Errorf("invalid %s: %q", constants.EnvStatsInterval, v)
		}
		p.StatsInterval = d
	}

	if v := get(constants.EnvLogLevel); v != "" {
		p.LogLevel = strings.ToLower(v)
	}

	if v := get(constants.EnvLogFormat); v != "" {
		p.LogFormat = strings.ToLower(v)
		if p.LogFormat != "json" && p.LogFormat != "console" {
			return nil, errors.Errorf("invalid %s: %q", constants.EnvLogFormat, v)
		}
	}

	return p, nil
}

func roundUpToEven(n uint16) uint16 {

	if n%2 == 0 {
		return n
	}

	if n == ^uint16(0) {
		return n - 1
	}

	return n + 1
}
