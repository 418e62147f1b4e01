package rules

import (
	"encoding/hex"
	"fmt"

	nferrors "go.aporeto.io/nfregex/utils/errors"
)

// Direction is the traffic direction a rule applies to.
type Direction int

const (
	// ClientToServer is traffic from the client, delivered on the input queues.
	ClientToServer Direction = iota
	// ServerToClient is traffic from the server, delivered on the output queues.
	ServerToClient
)

func (d Direction) String() string {

	switch d {
	case ClientToServer:
		return "client-to-server"
	case ServerToClient:
		return "server-to-client"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

func (d Direction) valid() bool {
	return d == ClientToServer || d == ServerToClient
}

// Polarity tells if a match blocks or is required.
type Polarity int

const (
	// Blacklist rules block the payload when they match.
	Blacklist Polarity = iota
	// Whitelist rules block the payload when they do not match.
	Whitelist
)

func (p Polarity) String() string {

	switch p {
	case Blacklist:
		return "blacklist"
	case Whitelist:
		return "whitelist"
	default:
		return fmt.Sprintf("polarity(%d)", int(p))
	}
}

func (p Polarity) valid() bool {
	return p == Blacklist || p == Whitelist
}

// Rule is a compiled pattern with its placement. It is immutable.
type Rule struct {
	// RawID is the token the rule was parsed from.
	RawID         string
	Direction     Direction
	Polarity      Polarity
	CaseSensitive bool
	Pattern       Pattern
}

// NewRule returns a rule after validating its placement.
func NewRule(rawID string, direction Direction, polarity Polarity, caseSensitive bool, pattern Pattern) (*Rule, error) {

	if !direction.valid() || !polarity.valid() {
		return nil, nferrors.NewError(nferrors.RuleCompileError, rawID, fmt.Sprintf("invalid placement %s/%s", direction, polarity))
	}

	if pattern == nil {
		return nil, nferrors.NewError(nferrors.RuleCompileError, rawID, "missing pattern")
	}

	return &Rule{
		RawID:         rawID,
		Direction:     direction,
		Polarity:      polarity,
		CaseSensitive: caseSensitive,
		Pattern:       pattern,
	}, nil
}

// match never panics. A panic or an error of the pattern engine is
// reported as an error with no match.
func (r *Rule) match(payload []byte) (matched bool, err error) {

	defer func() {
		if rec := recover(); rec != nil {
			matched = false
			err = nferrors.NewError(nferrors.MatchEngineError, r.RawID, fmt.Sprintf("panic: %v", rec))
		}
	}()

	matched, err = r.Pattern.Match(payload)
	if err != nil {
		return false, nferrors.WrapError(nferrors.MatchEngineError, r.RawID, err)
	}

	return matched, nil
}

// Token flag bytes.
const (
	flagCaseInsensitive = '0'
	flagCaseSensitive   = '1'

	codeClientBlacklist = 'C'
	codeClientWhitelist = 'c'
	codeServerBlacklist = 'S'
	codeServerWhitelist = 's'
)

// ParseToken parses a rule token of the form <0|1><C|c|S|s><hex pattern>
// and compiles its pattern.
func ParseToken(token string, compiler Compiler) (*Rule, error) {

	if len(token) < 2 || len(token)%2 != 0 {
		return nil, nferrors.NewError(nferrors.RuleCompileError, token, "invalid token length")
	}

	var caseSensitive bool
	switch token[0] {
	case flagCaseInsensitive:
	case flagCaseSensitive:
		caseSensitive = true
	default:
		return nil, nferrors.NewError(nferrors.RuleCompileError, token, fmt.Sprintf("invalid case flag %q", token[0]))
	}

	var direction Direction
	var polarity Polarity
	switch token[1] {
	case codeClientBlacklist:
		direction, polarity = ClientToServer, Blacklist
	case codeClientWhitelist:
		direction, polarity = ClientToServer, Whitelist
	case codeServerBlacklist:
		direction, polarity = ServerToClient, Blacklist
	case codeServerWhitelist:
		direction, polarity = ServerToClient, Whitelist
	default:
		return nil, nferrors.NewError(nferrors.RuleCompileError, token, fmt.Sprintf("invalid direction code %q", token[1]))
	}

	expr, err := hex.DecodeString(token[2:])
	if err != nil {
		return nil, nferrors.WrapError(nferrors.RuleCompileError, token, err)
	}

	pattern, err := compiler.Compile(expr, caseSensitive)
	if err != nil {
		return nil, nferrors.WrapError(nferrors.RuleCompileError, token, err)
	}

	return NewRule(token, direction, polarity, caseSensitive, pattern)
}
