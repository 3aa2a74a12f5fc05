// Package validation validates request payloads with go-playground/validator.
// Field names in messages are taken from json tags so they match what the
// client sent.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrValidation matches every *Error via errors.Is.
var ErrValidation = errors.New("validation error")

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag,omitempty"`
	Message string `json:"message"`
}

// Error is a request validation failure covering one or more fields.
type Error struct {
	Fields []FieldError
}

// NewError returns an Error for a single field.
func NewError(field, tag, message string) *Error {
	return &Error{Fields: []FieldError{{Field: field, Tag: tag, Message: message}}}
}

// Error returns the field messages joined with "; ".
func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}

	messages := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		messages[i] = f.Message
	}
	return strings.Join(messages, "; ")
}

// Is reports whether target is ErrValidation.
func (e *Error) Is(target error) bool {
	return target == ErrValidation
}

// GetValidator returns the singleton validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})

		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			field := fl.Field()
			if field.Kind() != reflect.String {
				return true
			}
			return strings.TrimSpace(field.String()) != ""
		})
	})

	return validate
}

// Validate validates a struct. It returns nil or an *Error.
func Validate(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return NewError("unknown", "unknown", err.Error())
	}

	fields := make([]FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: translateError(fe),
		}
	}
	return &Error{Fields: fields}
}

// errorMessageTemplates maps validation tags to message templates.
var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"notblank": "%s must not be blank",
}

// errorMessageWithParam maps validation tags to templates that include param.
var errorMessageWithParam = map[string]string{
	"gte": "%s must be greater than or equal to %s",
	"lte": "%s must be less than or equal to %s",
	"gt":  "%s must be greater than %s",
	"lt":  "%s must be less than %s",
}

// translateError converts a validator.FieldError to a human-readable message.
func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
