package configreader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"go.aporeto.io/nfregex/controller/pkg/counters"
	"go.aporeto.io/nfregex/controller/pkg/rules"
	"go.uber.org/zap"
)

// MaxLineSize is the longest config line accepted.
const MaxLineSize = 64 * 1024 * 1024

// Reader installs a new rule set for every line read from a config feed.
type Reader struct {
	store    *rules.Store
	compiler rules.Compiler
	ack      io.Writer
}

// New returns a reader updating store. Every update is acknowledged on ack
// with "ACK OK", or "ACK FAIL <n> invalid rules" when n tokens were skipped.
func New(store *rules.Store, compiler rules.Compiler, ack io.Writer) *Reader {

	if ack == nil {
		ack = io.Discard
	}

	return &Reader{
		store:    store,
		compiler: compiler,
		ack:      ack,
	}
}

// Run reads lines from r until end of stream, which returns nil. Every line
// replaces the whole rule set, even when none of its tokens is valid.
func (c *Reader) Run(ctx context.Context, r io.Reader) error {

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.Apply(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "unable to read config")
	}

	return nil
}

// Apply parses one line and installs the result. It returns the new store
// version.
func (c *Reader) Apply(line string) uint64 {

	set, errs := rules.ParseLine(line, c.compiler)

	for _, err := range errs {
		zap.L().Warn("Skipping invalid rule", zap.Error(err))
	}
	counters.AddCounter(counters.RulesRejected, uint64(len(errs)))

	version := c.store.Replace(set)
	counters.IncrementCounter(counters.RuleReloads)

	zap.L().Info("Rules updated",
		zap.Uint64("version", version),
		zap.Int("rules", set.Len()),
		zap.Int("rejected", len(errs)),
		zap.String("fingerprint", strconv.FormatUint(set.Fingerprint(), 16)),
	)

	if err := writeAck(c.ack, len(errs)); err != nil {
		zap.L().Warn("Unable to acknowledge rules update", zap.Error(err))
	}

	return version
}

func writeAck(w io.Writer, rejected int) error {

	if rejected == 0 {
		_, err := io.WriteString(w, "ACK OK\n")
		return err
	}

	_, err := fmt.Fprintf(w, "ACK FAIL %d invalid rules\n", rejected)
	return err
}
