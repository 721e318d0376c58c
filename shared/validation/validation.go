// Package validation wraps go-playground/validator with field names taken
// from json tags and messages suitable for API responses.
package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ErrValidation matches every *Error via errors.Is
var ErrValidation = errors.New("validation failed")

// FieldError describes one rejected field
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Error is returned when a struct fails validation
type Error struct {
	Fields []FieldError `json:"fields"`
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *Error) Is(target error) bool {
	return target == ErrValidation
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// Struct validates v using its `validate` tags
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrap(err, "validate")
	}

	out := &Error{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

// Invalid builds a single-field validation error
func Invalid(field, rule, message string) error {
	return &Error{Fields: []FieldError{{Field: field, Rule: rule, Message: message}}}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "datetime":
		return fe.Field() + " must be a date formatted as " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of [" + fe.Param() + "]"
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	case "gte":
		return fe.Field() + " must be at least " + fe.Param()
	default:
		return fe.Field() + " failed " + fe.Tag() + " validation"
	}
}
