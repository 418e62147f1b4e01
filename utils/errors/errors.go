package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error by how far it propagates.
type Kind int

// Error kinds.
const (
	// Unknown is returned by KindOf for errors that carry no kind.
	Unknown Kind = iota
	// QueueBindConflict means the queue number is owned by another process. Pools retry.
	QueueBindConflict
	// ResourceExhausted means no free block of queue numbers is left.
	ResourceExhausted
	// KernelChannelError terminates the worker owning the channel.
	KernelChannelError
	// ProtocolDecodeError means a payload could not be parsed. The packet is accepted.
	ProtocolDecodeError
	// RuleCompileError rejects one rule token.
	RuleCompileError
	// MatchEngineError is counted as a non-match for one rule.
	MatchEngineError
)

var kindNames = map[Kind]string{
	Unknown:             "unknown",
	QueueBindConflict:   "queue bind conflict",
	ResourceExhausted:   "resource exhausted",
	KernelChannelError:  "kernel channel",
	ProtocolDecodeError: "protocol decode",
	RuleCompileError:    "rule compile",
	MatchEngineError:    "match engine",
}

func (k Kind) String() string {

	if s, ok := kindNames[k]; ok {
		return s
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified error.
type Error struct {
	Kind    Kind
	Subject string
	Content string
	Err     error
}

var _ error = &Error{}

// NewError returns a new error of the given kind.
func NewError(kind Kind, subject string, content string) *Error {

	return &Error{
		Kind:    kind,
		Subject: subject,
		Content: content,
	}
}

// WrapError classifies err. A nil err returns nil.
func WrapError(kind Kind, subject string, err error) error {

	if err == nil {
		return nil
	}

	return &Error{
		Kind:    kind,
		Subject: subject,
		Err:     err,
	}
}

func (te *Error) Error() string {

	switch {
	case te.Err != nil && te.Content != "":
		return fmt.Sprintf("%s: %s: %s: %s", te.Kind, te.Subject, te.Content, te.Err)
	case te.Err != nil:
		return fmt.Sprintf("%s: %s: %s", te.Kind, te.Subject, te.Err)
	default:
		return fmt.Sprintf("%s: %s: %s", te.Kind, te.Subject, te.Content)
	}
}

// Cause returns the wrapped error, if any.
func (te *Error) Cause() error {
	return te.Err
}

// Unwrap returns the wrapped error, if any.
func (te *Error) Unwrap() error {
	return te.Err
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {

	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}

	return Unknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
