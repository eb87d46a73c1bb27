package cli

import (
	"errors"

	"github.com/mark3labs/oasclient/internal/client"
	"github.com/mark3labs/oasclient/internal/spec"
)

var ErrUsage = errors.New("cli usage error")

type usageError struct {
	msg   string
	cause error
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

// wrapUsage keeps cause reachable through errors.Is/As.
func wrapUsage(msg string, cause error) error {
	return usageError{msg: msg, cause: cause}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Unwrap() error { return e.cause }

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}

// ExitCode maps an Execute error to the process exit status: 2 for usage,
// document and missing-operationId errors, 1 for everything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUsage),
		errors.Is(err, spec.ErrDocument),
		errors.Is(err, client.ErrMissingOperationID):
		return 2
	default:
		return 1
	}
}
