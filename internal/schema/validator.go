// Package schema validates recognition and transcript events against the
// struct-tag rules declared in internal/models.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidEvent wraps every validation failure.
var ErrInvalidEvent = errors.New("invalid event")

// FieldError describes one failed rule, named by the field's json tag.
type FieldError struct {
	Field string
	Rule  string
}

// Error is returned for events that fail validation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Rule)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidEvent, strings.Join(parts, "; "))
}

func (e *Error) Unwrap() error {
	return ErrInvalidEvent
}

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate checks event (a struct or pointer to struct) against its tags.
func (v *Validator) Validate(event any) error {
	err := v.validate.Struct(event)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out.Fields = append(out.Fields, FieldError{
			Field: trimRoot(fe.Namespace()),
			Rule:  rule,
		})
	}
	return out
}

// trimRoot drops the leading struct type name from a namespace like
// "RecognitionEvent.results[0].alternatives[1].confidence".
func trimRoot(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
