package counters

import (
	"strconv"
	"sync"
)

// Counters holds one value per CounterType.
type Counters struct {
	counters []uint64

	sync.RWMutex
}

// CounterType custom counter type
type CounterType int

// WARNING: Append any new counters at the end of the list.
// DO NOT CHANGE EXISTING ORDER.
const (
	// PacketsReceived counts packets delivered by the kernel
	PacketsReceived CounterType = iota
	// PacketsAccepted counts packets accepted unmodified
	PacketsAccepted
	// PacketsBlocked counts payloads blocked by a rule
	PacketsBlocked
	// PacketsReset counts blocked TCP packets replaced by a FIN/ACK
	PacketsReset
	// PacketsDropped counts blocked packets dropped
	PacketsDropped
	// PacketsFailOpen counts packets accepted because no payload could be found
	PacketsFailOpen
	// DecodeFailures counts packets that could not be decoded
	DecodeFailures
	// VerdictFailures counts verdicts that could not be sent or built
	VerdictFailures
	// RuleReloads counts rule set replacements
	RuleReloads
	// RulesRejected counts rule tokens that were skipped
	RulesRejected

	counterMax = RulesRejected
)

var counterNames = [...]string{
	PacketsReceived: "packets_received",
	PacketsAccepted: "packets_accepted",
	PacketsBlocked:  "packets_blocked",
	PacketsReset:    "packets_reset",
	PacketsDropped:  "packets_dropped",
	PacketsFailOpen: "packets_fail_open",
	DecodeFailures:  "decode_failures",
	VerdictFailures: "verdict_failures",
	RuleReloads:     "rule_reloads",
	RulesRejected:   "rules_rejected",
}

func (c CounterType) String() string {

	if c < 0 || int(c) >= len(counterNames) {
		return "CounterType(" + strconv.Itoa(int(c)) + ")"
	}

	return counterNames[c]
}
