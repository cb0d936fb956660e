package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names so messages match the request body
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks the validate tags of req and turns the first failure into a
// *ValidationError with a readable message.
func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("failed to validate request: %w", err)
	}
	return &ValidationError{Message: fieldMessage(fieldErrs[0])}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("The %s field must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("The %s field must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("The %s field must not exceed %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("The %s field must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Sprintf("The %s field must be a valid URL", field)
	}
	return fmt.Sprintf("The %s field is invalid", field)
}
