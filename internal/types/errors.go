package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
// The prefix of every code determines its Kind.
type ErrorCode string

const (
	// Validation: malformed caller input.
	ErrCodeValidationCoordinateExpr  ErrorCode = "validation_invalid_coordinate_expression"
	ErrCodeValidationOffGrid         ErrorCode = "validation_off_grid_value"
	ErrCodeValidationUnknownVariable ErrorCode = "validation_unknown_variable"
	ErrCodeValidationMissingLevels   ErrorCode = "validation_missing_level_range"
	ErrCodeValidationMissingField    ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidTime     ErrorCode = "validation_invalid_time"
	ErrCodeValidationModelConfig     ErrorCode = "validation_invalid_model_config"
	ErrCodeValidationDimensions      ErrorCode = "validation_dimension_mismatch"
	ErrCodeValidationInvalidRequest  ErrorCode = "validation_invalid_request"

	// Range: well-formed input outside what the model can answer.
	ErrCodeRangeTimeUnavailable ErrorCode = "range_time_unavailable"
	ErrCodeRangeOutsideGrid     ErrorCode = "range_outside_grid"

	// Service: the upstream data server failed or answered garbage.
	ErrCodeUpstreamForecast    ErrorCode = "upstream_forecast_unavailable"
	ErrCodeUpstreamMalformed   ErrorCode = "upstream_malformed_response"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"

	// Internal faults that are neither the caller's nor the upstream's.
	ErrCodeInternalStore      ErrorCode = "internal_catalog_store_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"

	ErrCodeUnimplementedAltitudeInversion ErrorCode = "unimplemented_altitude_inversion"
)

// ErrorKind groups error codes into the categories callers branch on.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindRange         ErrorKind = "range"
	KindService       ErrorKind = "service"
	KindInternal      ErrorKind = "internal"
	KindUnimplemented ErrorKind = "unimplemented"
)

// Kind derives the ErrorKind from the code prefix. Unknown prefixes are internal.
func (c ErrorCode) Kind() ErrorKind {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return KindValidation
	case strings.HasPrefix(s, "range_"):
		return KindRange
	case strings.HasPrefix(s, "upstream_"):
		return KindService
	case strings.HasPrefix(s, "unimplemented_"):
		return KindUnimplemented
	default:
		return KindInternal
	}
}

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
func (c ErrorCode) HTTPStatus() int {
	switch c.Kind() {
	case KindValidation:
		return http.StatusBadRequest
	case KindRange:
		return http.StatusUnprocessableEntity
	case KindService:
		return http.StatusBadGateway
	case KindUnimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard error type returned by every layer. Callers
// switch on Kind() instead of parsing messages.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Kind returns the category of this error.
func (e *AppError) Kind() ErrorKind {
	return e.Code.Kind()
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// KindOf returns the ErrorKind of the first AppError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind()
	}
	return KindInternal
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return err != nil && KindOf(err) == KindValidation }

// IsRange reports whether err is a range error.
func IsRange(err error) bool { return err != nil && KindOf(err) == KindRange }

// IsService reports whether err is an upstream service error.
func IsService(err error) bool { return err != nil && KindOf(err) == KindService }
