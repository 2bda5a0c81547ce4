// internal/service/validation.go
package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/unclebandit/notification-campaigns/internal/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validateStruct returns a Validation app error naming every failed field.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErrors.NewInternal("validate input", err)
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, validationMessage(fe))
	}
	return appErrors.NewValidation("%s", strings.Join(messages, "; "))
}

func validationMessage(fe validator.FieldError) string {
	isSlice := fe.Kind() == reflect.Slice
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "invalid email format"
	case "min":
		if isSlice {
			return fe.Field() + " must contain at least " + fe.Param() + " item(s)"
		}
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "max":
		if isSlice {
			return fe.Field() + " must contain at most " + fe.Param() + " items"
		}
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}
