package sentiment

import (
	"errors"
	"fmt"
	"net/http"

	"sentiment-api/internal/shared/server/respond"
)

// Kind classifies a DispatchError.
type Kind string

const (
	KindValidationFailed Kind = "ValidationFailed"
	KindWorkerTimeout    Kind = "WorkerTimeout"
	KindWorkerCrashed    Kind = "WorkerCrashed"
	KindNoOutput         Kind = "NoOutput"
	KindMalformedOutput  Kind = "MalformedOutput"
	KindInternalFault    Kind = "InternalFault"
)

// Status is the HTTP status a kind maps to.
func (k Kind) Status() int {
	if k == KindValidationFailed {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Code is the machine-readable code sent to clients.
func (k Kind) Code() string {
	switch k {
	case KindValidationFailed:
		return respond.CodeValidation
	case KindWorkerTimeout:
		return "WORKER_TIMEOUT"
	case KindWorkerCrashed:
		return "WORKER_CRASHED"
	case KindNoOutput:
		return "NO_OUTPUT"
	case KindMalformedOutput:
		return "MALFORMED_OUTPUT"
	default:
		return respond.CodeInternal
	}
}

// Message is the client-safe category message.
func (k Kind) Message() string {
	switch k {
	case KindValidationFailed:
		return "Invalid request"
	case KindWorkerTimeout:
		return "Prediction timed out"
	case KindWorkerCrashed:
		return "Prediction failed"
	case KindNoOutput:
		return "No response from inference worker"
	case KindMalformedOutput:
		return "Invalid response from inference worker"
	default:
		return "Internal server error"
	}
}

// DispatchError is the typed failure of one analysis request.
type DispatchError struct {
	Kind   Kind
	Detail string
}

func (e *DispatchError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Detail
}

func newError(kind Kind, format string, args ...any) *DispatchError {
	return &DispatchError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// AsDispatchError classifies err. Anything that is not already a
// DispatchError becomes an InternalFault whose detail is never sent to
// clients.
func AsDispatchError(err error) *DispatchError {
	var de *DispatchError
	if errors.As(err, &de) {
		return de
	}
	return &DispatchError{Kind: KindInternalFault, Detail: err.Error()}
}
