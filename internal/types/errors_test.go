package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// TestAppErrorErrorFormat verifies Error() renders "code: message" and
// appends the cause when present.
func TestAppErrorErrorFormat(t *testing.T) {
	appErr := NewAppError(ErrCodeValidationOffGrid, "lat 40.1 is not on the 0.25 grid", nil)
	if got, want := appErr.Error(), "validation_off_grid_value: lat 40.1 is not on the 0.25 grid"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := NewAppError(ErrCodeUpstreamUnavailable, "forecast server request failed", errors.New("connection reset"))
	if got, want := wrapped.Error(), "upstream_unavailable: forecast server request failed: connection reset"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

// TestAppErrorChain verifies errors.Is and errors.As see through AppError.
func TestAppErrorChain(t *testing.T) {
	sentinel := errors.New("sentinel")
	appErr := NewAppError(ErrCodeInternalStore, "failed to write catalog", sentinel)
	wrapped := fmt.Errorf("resolve: %w", appErr)

	if !errors.Is(wrapped, sentinel) {
		t.Error("errors.Is should find the sentinel through AppError")
	}
	var target *AppError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find AppError in the chain")
	}
	if target.Code != ErrCodeInternalStore {
		t.Errorf("Code = %q, want %q", target.Code, ErrCodeInternalStore)
	}
	if NewAppError(ErrCodeInternalStore, "x", nil).Unwrap() != nil {
		t.Error("Unwrap() should be nil without a cause")
	}
}

// TestAppErrorWithDetails verifies details are merged into a copy.
func TestAppErrorWithDetails(t *testing.T) {
	original := NewAppErrorWithDetails(ErrCodeUpstreamForecast, "not found", nil,
		map[string]any{"url": "https://example.test/a.das", "status": 404})

	merged := original.WithDetails(map[string]any{"status": 500, "endpoint": "das"})

	if merged == original {
		t.Fatal("WithDetails must return a new error")
	}
	if merged.Details["status"] != 500 {
		t.Errorf("status = %v, want the override 500", merged.Details["status"])
	}
	if merged.Details["url"] != "https://example.test/a.das" || merged.Details["endpoint"] != "das" {
		t.Errorf("unexpected merged details: %v", merged.Details)
	}
	if original.Details["status"] != 404 {
		t.Error("WithDetails must not modify the original")
	}

	bare := NewAppError(ErrCodeUpstreamForecast, "not found", nil).WithDetails(map[string]any{"k": "v"})
	if bare.Details["k"] != "v" {
		t.Errorf("details on a bare error = %v", bare.Details)
	}
}

// TestErrorCodeKinds verifies every code's prefix selects its kind and
// status.
func TestErrorCodeKinds(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		kind   ErrorKind
		status int
	}{
		{ErrCodeValidationCoordinateExpr, KindValidation, http.StatusBadRequest},
		{ErrCodeValidationOffGrid, KindValidation, http.StatusBadRequest},
		{ErrCodeValidationUnknownVariable, KindValidation, http.StatusBadRequest},
		{ErrCodeValidationMissingLevels, KindValidation, http.StatusBadRequest},
		{ErrCodeValidationMissingField, KindValidation, http.StatusBadRequest},
		{ErrCodeValidationInvalidTime, KindValidation, http.StatusBadRequest},
		{ErrCodeValidationModelConfig, KindValidation, http.StatusBadRequest},
		{ErrCodeValidationDimensions, KindValidation, http.StatusBadRequest},
		{ErrCodeValidationInvalidRequest, KindValidation, http.StatusBadRequest},
		{ErrCodeRangeTimeUnavailable, KindRange, http.StatusUnprocessableEntity},
		{ErrCodeRangeOutsideGrid, KindRange, http.StatusUnprocessableEntity},
		{ErrCodeUpstreamForecast, KindService, http.StatusBadGateway},
		{ErrCodeUpstreamMalformed, KindService, http.StatusBadGateway},
		{ErrCodeUpstreamUnavailable, KindService, http.StatusBadGateway},
		{ErrCodeInternalStore, KindInternal, http.StatusInternalServerError},
		{ErrCodeInternalUnexpected, KindInternal, http.StatusInternalServerError},
		{ErrCodeUnimplementedAltitudeInversion, KindUnimplemented, http.StatusNotImplemented},
		{ErrorCode("something_else"), KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.Kind(); got != tt.kind {
				t.Errorf("Kind() = %q, want %q", got, tt.kind)
			}
			if got := tt.code.HTTPStatus(); got != tt.status {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.status)
			}
			appErr := NewAppError(tt.code, "msg", nil)
			if appErr.Kind() != tt.kind || appErr.HTTPStatus() != tt.status {
				t.Errorf("AppError disagrees with its code: %q %d", appErr.Kind(), appErr.HTTPStatus())
			}
		})
	}
}

// TestKindPredicates verifies the Is* helpers and KindOf on foreign errors.
func TestKindPredicates(t *testing.T) {
	validation := fmt.Errorf("wrap: %w", NewAppError(ErrCodeValidationOffGrid, "x", nil))
	rng := NewAppError(ErrCodeRangeOutsideGrid, "x", nil)
	service := NewAppError(ErrCodeUpstreamMalformed, "x", nil)
	plain := errors.New("plain")

	if !IsValidation(validation) || IsRange(validation) || IsService(validation) {
		t.Error("validation error misclassified")
	}
	if !IsRange(rng) || IsValidation(rng) {
		t.Error("range error misclassified")
	}
	if !IsService(service) || IsRange(service) {
		t.Error("service error misclassified")
	}
	if KindOf(plain) != KindInternal {
		t.Errorf("KindOf(plain) = %q, want internal", KindOf(plain))
	}
	if IsValidation(nil) || IsRange(nil) || IsService(nil) {
		t.Error("nil must not match any kind")
	}
}
