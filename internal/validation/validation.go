package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance; struct tags carry the
// per-field rules.
var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError is one failed rule, surfaced to the client as a 400 body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates every failed rule for one request.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return strings.Join(msgs, "; ")
}

// Struct runs tag-based validation and converts failures into a
// *ValidationError with readable per-field messages.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   strings.ToLower(fe.Field()),
			Message: messageFor(fe),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "e164":
		return "must be a valid phone number in international format"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain only digits"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "uuid":
		return "must be a valid id"
	default:
		return "is invalid"
	}
}

// ExactlyOne enforces the conditional-presence rule used by the auth
// DTOs: exactly one of the named fields may be set.
func ExactlyOne(fields map[string]string) error {
	var present []string
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.TrimSpace(fields[name]) != "" {
			present = append(present, name)
		}
	}
	if len(present) == 1 {
		return nil
	}
	msg := "exactly one of " + strings.Join(names, ", ") + " must be provided"
	out := &ValidationError{}
	for _, name := range names {
		out.Fields = append(out.Fields, FieldError{Field: name, Message: msg})
	}
	return out
}
