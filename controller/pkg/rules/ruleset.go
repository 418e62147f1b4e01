package rules

import (
	"strings"

	"github.com/cespare/xxhash"
	"go.uber.org/zap"
)

// Action is the outcome of a check.
type Action int

const (
	// Accept lets the payload through.
	Accept Action = iota
	// Block stops the payload.
	Block
)

func (a Action) String() string {

	if a == Block {
		return "block"
	}

	return "accept"
}

// Result is the outcome of a check. RuleID is the raw id of the rule that
// caused a block.
type Result struct {
	Action Action
	RuleID string
}

// RuleSet holds rules grouped by direction and polarity, in insertion
// order. It is immutable once built.
type RuleSet struct {
	rules       [2][2][]*Rule
	count       int
	fingerprint uint64
}

// NewRuleSet builds a rule set. Rules are expected to come from NewRule or
// ParseToken.
func NewRuleSet(rules ...*Rule) *RuleSet {

	s := &RuleSet{}
	h := xxhash.New()

	for _, r := range rules {
		if r == nil || !r.Direction.valid() || !r.Polarity.valid() {
			continue
		}
		s.rules[r.Direction][r.Polarity] = append(s.rules[r.Direction][r.Polarity], r)
		s.count++
		h.Write([]byte(r.RawID)) // nolint: errcheck
		h.Write([]byte{'\n'})    // nolint: errcheck
	}

	s.fingerprint = h.Sum64()

	return s
}

// ParseLine parses one config line of whitespace separated tokens into a
// rule set. Invalid tokens are skipped and returned as errors.
func ParseLine(line string, compiler Compiler) (*RuleSet, []error) {

	var rules []*Rule
	var errs []error

	for _, token := range strings.Fields(line) {
		r, err := ParseToken(token, compiler)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rules = append(rules, r)
	}

	return NewRuleSet(rules...), errs
}

// Rules returns the rules for a direction and polarity. The slice must not
// be modified.
func (s *RuleSet) Rules(direction Direction, polarity Polarity) []*Rule {

	if !direction.valid() || !polarity.valid() {
		return nil
	}

	return s.rules[direction][polarity]
}

// Len returns the number of rules in the set.
func (s *RuleSet) Len() int {
	return s.count
}

// Fingerprint returns a hash of the raw ids of the rules in order.
func (s *RuleSet) Fingerprint() uint64 {
	return s.fingerprint
}

// Check decides on a payload. Any matching blacklist rule blocks. Every
// whitelist rule must match or the first one that does not blocks.
// A rule whose matcher fails is treated as not matching.
func (s *RuleSet) Check(payload []byte, direction Direction) Result {

	for _, r := range s.Rules(direction, Blacklist) {
		matched, err := r.match(payload)
		if err != nil {
			zap.L().Debug("Blacklist rule failed to match", zap.String("rule", r.RawID), zap.Error(err))
			continue
		}
		if matched {
			return Result{Action: Block, RuleID: r.RawID}
		}
	}

	for _, r := range s.Rules(direction, Whitelist) {
		matched, err := r.match(payload)
		if err != nil {
			zap.L().Debug("Whitelist rule failed to match", zap.String("rule", r.RawID), zap.Error(err))
		}
		if !matched {
			return Result{Action: Block, RuleID: r.RawID}
		}
	}

	return Result{Action: Accept}
}
