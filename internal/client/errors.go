package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/oasclient/internal/opschema"
)

var (
	// ErrValidation matches every pipeline validation error.
	ErrValidation = errors.New("validation failed")
	// ErrUnknownOperation is returned for lookups that match no operation.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrMissingOperationID matches *MissingOperationIdError.
	ErrMissingOperationID = errors.New("missing operation id")
)

// Stage names a validation step of the invocation pipeline.
type Stage string

const (
	StageQuery       Stage = "query"
	StageParams      Stage = "params"
	StageBody        Stage = "body"
	StageRequestBody Stage = "requestBody"
)

// ValidationError carries the engine's violations for one stage.
type ValidationError struct {
	Stage      Stage
	Operation  string
	Violations []opschema.Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("%s: %s validation failed: %s", e.Operation, e.Stage, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type (
	QueryValidationError       struct{ ValidationError }
	ParamsValidationError      struct{ ValidationError }
	BodyValidationError        struct{ ValidationError }
	RequestBodyValidationError struct{ ValidationError }
)

func newValidationError(stage Stage, operation string, violations []opschema.Violation) error {
	base := ValidationError{Stage: stage, Operation: operation, Violations: violations}
	switch stage {
	case StageQuery:
		return &QueryValidationError{base}
	case StageParams:
		return &ParamsValidationError{base}
	case StageBody:
		return &BodyValidationError{base}
	default:
		return &RequestBodyValidationError{base}
	}
}

// MissingOperationIdError lists operations without an operationId. It is
// raised only where every operation must be addressable by id (export).
type MissingOperationIdError struct {
	Operations []string // "METHOD path"
}

func (e *MissingOperationIdError) Error() string {
	return fmt.Sprintf("operations without operationId: %s", strings.Join(e.Operations, ", "))
}

func (e *MissingOperationIdError) Is(target error) bool { return target == ErrMissingOperationID }

// AsValidationError extracts the stage error from any of the four
// stage-specific validation errors.
func AsValidationError(err error) (*ValidationError, bool) {
	var (
		q  *QueryValidationError
		p  *ParamsValidationError
		b  *BodyValidationError
		rb *RequestBodyValidationError
	)
	switch {
	case errors.As(err, &q):
		return &q.ValidationError, true
	case errors.As(err, &p):
		return &p.ValidationError, true
	case errors.As(err, &b):
		return &b.ValidationError, true
	case errors.As(err, &rb):
		return &rb.ValidationError, true
	}
	return nil, false
}
