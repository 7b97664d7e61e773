package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"gfsfetch/internal/types"
)

// Validator wraps go-playground/validator with the API's custom tags:
//
//	model_key  a ModelConfig key such as "0p25" or "0p25_1hr"
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator. Field names in errors use the json tag.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("model_key", func(fl validator.FieldLevel) bool {
		_, err := types.ParseModelConfig(fl.Field().String())
		return err == nil
	})
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct checks s and reports the first failing field as an
// AppError: missing required fields, invalid model keys, or a generic
// invalid request.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		v.logger.Error("validator misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fe := verrs[0]
	details := map[string]any{"field": fe.Field(), "rule": fe.Tag()}
	switch fe.Tag() {
	case "required":
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			fmt.Sprintf("%s is required", fe.Field()), nil, details)
	case "model_key":
		return types.NewAppErrorWithDetails(types.ErrCodeValidationModelConfig,
			fmt.Sprintf("%s must look like 0p25 or 0p25_1hr", fe.Field()), nil, details)
	default:
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidRequest,
			fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()), nil, details)
	}
}
