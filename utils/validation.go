package utils

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/upb/anubis/internal/keys"
)

var (
	// validate is the singleton validator instance
	validate *validator.Validate
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("keytimestamp", func(fl validator.FieldLevel) bool {
		return keys.CheckTimestamp(fl.Field().String()) == nil
	})
}

// ValidateStruct validates a struct using go-playground/validator
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// ValidateVar validates a single value against a tag, reporting failures under fieldName
func ValidateVar(value interface{}, fieldName, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			verr := NewValidationError(validationErrors)
			verr.Fields = map[string]string{fieldName: fieldMessage(fieldName, validationErrors[0])}
			return verr
		}
		return err
	}
	return nil
}

// ValidationError wraps validation errors with structured details
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError from validator.ValidationErrors
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string)
	for _, err := range errs {
		fields[err.Field()] = fieldMessage(err.Field(), err)
	}

	return &ValidationError{
		Message: "Validation failed",
		Fields:  fields,
	}
}

func fieldMessage(field string, err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "keytimestamp":
		return fmt.Sprintf("%s must be an ISO-8601 date time", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, err.Param())
	default:
		return fmt.Sprintf("%s validation failed on '%s' tag", field, err.Tag())
	}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// GetValidationFields extracts field errors from a ValidationError
func GetValidationFields(err error) map[string]string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Fields
	}
	return nil
}

// ValidateRequired validates that a string is not empty
func ValidateRequired(value string, fieldName string) error {
	if value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}
