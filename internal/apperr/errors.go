package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextProviderCall = "PAYCORE_PROVIDER_CALL_FAILED"
	TextNotFound     = "PAYCORE_NOT_FOUND"
	TextValidation   = "PAYCORE_VALIDATION_FAILED"
	TextConflict     = "PAYCORE_STATE_CONFLICT"
	TextUnsupported  = "PAYCORE_OPERATION_UNSUPPORTED"
	TextInternal     = "PAYCORE_INTERNAL_ERROR"
)

var (
	ErrProviderCall  = errors.New("provider_call_failed")
	ErrNotFound      = errors.New("not_found")
	ErrValidation    = errors.New("validation_failed")
	ErrStateConflict = errors.New("state_conflict")
	ErrUnsupported   = errors.New("operation_unsupported")
)

// ServiceError is implemented by every typed error in this package.
type ServiceError interface {
	error
	ToServiceError() *goerrors.Error
}

// ProviderCallError reports a network failure or a processor-reported error.
type ProviderCallError struct {
	Provider   string
	Operation  string
	StatusCode int
	Code       string
	RequestID  string
	Message    string
	Retryable  bool
	// Ambiguous is set when the request may have reached the processor but no
	// response was observed.
	Ambiguous bool
	Cause     error
}

func (e *ProviderCallError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Operation != "" {
		b.WriteString(" ")
		b.WriteString(e.Operation)
	}
	b.WriteString(": provider call failed")
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *ProviderCallError) Unwrap() error {
	if e.Cause == nil {
		return ErrProviderCall
	}
	return errors.Join(ErrProviderCall, e.Cause)
}

func (e *ProviderCallError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"provider":  e.Provider,
		"operation": e.Operation,
	}
	if e.StatusCode > 0 {
		metadata["provider_status"] = e.StatusCode
	}
	if e.Code != "" {
		metadata["provider_code"] = e.Code
	}
	if e.RequestID != "" {
		metadata["request_id"] = e.RequestID
	}
	if e.Ambiguous {
		metadata["ambiguous"] = true
	}

	code := http.StatusBadGateway
	category := goerrors.CategoryExternal
	if e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests {
		// Processor validation errors surface to the caller unchanged.
		code = http.StatusUnprocessableEntity
		category = goerrors.CategoryBadInput
	}
	return goerrors.New(e.Error(), category).
		WithCode(code).
		WithTextCode(TextProviderCall).
		WithMetadata(metadata)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func (e *NotFoundError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(TextNotFound).
		WithMetadata(map[string]any{"resource": e.Resource, "id": e.ID})
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) ToServiceError() *goerrors.Error {
	return goerrors.NewValidation(e.Error(), goerrors.FieldError{
		Field:   e.Field,
		Message: e.Reason,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(TextValidation)
}

type StateConflictError struct {
	Resource string
	Reason   string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s state conflict: %s", e.Resource, e.Reason)
}

func (e *StateConflictError) Unwrap() error { return ErrStateConflict }

func (e *StateConflictError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode(TextConflict)
}

type UnsupportedOperationError struct {
	Provider  string
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Provider, e.Operation)
}

func (e *UnsupportedOperationError) Unwrap() error { return ErrUnsupported }

func (e *UnsupportedOperationError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryOperation).
		WithCode(http.StatusNotImplemented).
		WithTextCode(TextUnsupported).
		WithMetadata(map[string]any{"provider": e.Provider, "operation": e.Operation})
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func Conflict(resource, reason string) error {
	return &StateConflictError{Resource: resource, Reason: reason}
}

func Unsupported(provider, operation string) error {
	return &UnsupportedOperationError{Provider: provider, Operation: operation}
}

// ProviderFailure wraps a transport level failure. Timeouts after the request
// was written are marked ambiguous, other network errors retryable.
func ProviderFailure(provider, operation string, cause error) error {
	if cause == nil {
		return nil
	}
	var pe *ProviderCallError
	if errors.As(cause, &pe) {
		return cause
	}
	return &ProviderCallError{
		Provider:  provider,
		Operation: operation,
		Retryable: isNetworkError(cause),
		Ambiguous: isTimeout(cause),
		Cause:     cause,
	}
}

// ProviderStatus builds the error for a non-2xx processor response.
func ProviderStatus(provider, operation string, status int, code, message, requestID string) error {
	return &ProviderCallError{
		Provider:   provider,
		Operation:  operation,
		StatusCode: status,
		Code:       code,
		RequestID:  requestID,
		Message:    message,
		Retryable:  status >= 500 || status == http.StatusTooManyRequests,
	}
}

func IsRetryable(err error) bool {
	var pe *ProviderCallError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Retryable && !pe.Ambiguous
}

// IsTransient reports any retryable failure, ambiguous ones included. Only
// calls that are safe to repeat may act on it.
func IsTransient(err error) bool {
	var pe *ProviderCallError
	return errors.As(err, &pe) && (pe.Retryable || pe.Ambiguous)
}

func IsAmbiguous(err error) bool {
	var pe *ProviderCallError
	return errors.As(err, &pe) && pe.Ambiguous
}

func IsNotFound(err error) bool    { return errors.Is(err, ErrNotFound) }
func IsUnsupported(err error) bool { return errors.Is(err, ErrUnsupported) }
func IsConflict(err error) bool    { return errors.Is(err, ErrStateConflict) }

// IsProviderNotFound reports a processor 404.
func IsProviderNotFound(err error) bool {
	var pe *ProviderCallError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound
}

// ToServiceError converts any error into the rich form used at the HTTP
// boundary. Unknown errors become internal errors.
func ToServiceError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var typed ServiceError
	if errors.As(err, &typed) {
		return typed.ToServiceError()
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "internal error").
		WithCode(http.StatusInternalServerError).
		WithTextCode(TextInternal)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
