package codec

import (
	"context"
	"errors"
	"fmt"

	"bindkey/internal/engine/keys"
)

// DecodeError reports a key that violates the grammar, with the byte offset of
// the first offending character.
type DecodeError = keys.DecodeError

// Recovery reasons. They label the recovered-bindings metric, so the set stays
// small.
const (
	ReasonNotFound      = "not-found"
	ReasonLookupTimeout = "lookup-timeout"
	ReasonLookupFailed  = "lookup-failed"
	ReasonArity         = "arity-mismatch"
	ReasonNotGeneric    = "not-generic"
	ReasonNoMember      = "no-member"
	ReasonTypeVariable  = "type-variable"
	ReasonSignature     = "malformed-signature"
)

// unresolvedError aborts the decoding of one key. Decode turns it into a
// Recovered binding for the whole key.
type unresolvedError struct {
	reason string
	detail string
}

func (e *unresolvedError) Error() string {
	return fmt.Sprintf("%s: %s", e.reason, e.detail)
}

func unresolved(reason, format string, args ...interface{}) error {
	return &unresolvedError{reason: reason, detail: fmt.Sprintf(format, args...)}
}

func lookupReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonLookupTimeout
	}
	return ReasonLookupFailed
}

// Reason returns the recovery reason carried by an error from Declaration.
func Reason(err error) string {
	var ue *unresolvedError
	if errors.As(err, &ue) {
		return ue.reason
	}
	return lookupReason(err)
}
