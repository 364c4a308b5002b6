package keys

import (
	"fmt"

	coreerrors "bindkey/internal/core/errors"
)

// DecodeError reports a key that violates the grammar.
type DecodeError struct {
	Key    string
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed key %q at offset %d: %s", e.Key, e.Offset, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return coreerrors.New(coreerrors.CodeMalformedKey, e.Reason)
}
