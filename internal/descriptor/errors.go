package descriptor

import (
	"errors"
	"fmt"
)

var (
	ErrOperationCount       = errors.New("descriptor: document must contain exactly one operation")
	ErrNotQuery             = errors.New("descriptor: operation is not a query")
	ErrAnonymous            = errors.New("descriptor: operation must be named")
	ErrAbstractFragment     = errors.New("descriptor: abstract types are not supported")
	ErrUnsupportedDirective = errors.New("descriptor: directive not supported")
)

// ValidationError reports variables that do not match the operation's
// declared parameters. It is returned before any network call.
type ValidationError struct {
	Operation string
	Variable  string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.Variable == "" {
		return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s: variable $%s %s", e.Operation, e.Variable, e.Reason)
}
