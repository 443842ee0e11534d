// Package form validates and prepares the payloads of the admin forms.
package form

import (
	"reflect"
	"sort"
	"strings"
	"sync"

	errors "github.com/Laisky/errors/v2"
	"github.com/go-playground/validator/v10"
)

// Schema is a struct with `validate` tags and its own error texts.
type Schema interface {
	// Messages maps "field.tag" (or just "field") to the message shown.
	Messages() map[string]string
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldName)
	})
	return validate
}

// fieldName prefers the `field` tag, then the json name.
func fieldName(fld reflect.StructField) string {
	if name := fld.Tag.Get("field"); name != "" {
		return name
	}

	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	default:
		return name
	}
}

// Validate checks s and returns nil when it is valid.
func Validate(s Schema) Errors {
	return validateWith(s, s.Messages())
}

func validateWith(v any, messages map[string]string) Errors {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errors{"": err.Error()}
	}

	out := make(Errors, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, ok := out[field]; ok {
			continue
		}
		out[field] = lookupMessage(messages, field, fe.Tag())
	}

	return out
}

func lookupMessage(messages map[string]string, field, tag string) string {
	if msg, ok := messages[field+"."+tag]; ok {
		return msg
	}
	if msg, ok := messages[field]; ok {
		return msg
	}

	switch tag {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email address"
	default:
		return "Invalid value"
	}
}

// Errors maps a field name to its message. The "" key holds the form banner.
type Errors map[string]string

// Error joins all messages in field order.
func (e Errors) Error() string {
	if len(e) == 0 {
		return ""
	}

	fields := e.Fields()
	parts := make([]string, 0, len(e))
	if banner := e[""]; banner != "" {
		parts = append(parts, banner)
	}
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}

	return strings.Join(parts, "; ")
}

// Fields returns the field names with errors, sorted, excluding the banner.
func (e Errors) Fields() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		if f != "" {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)

	return fields
}

// Banner returns the form-level message.
func (e Errors) Banner() string {
	return e[""]
}

// fieldErrorer is implemented by server errors that carry per-field messages.
type fieldErrorer interface {
	error
	FieldErrors() map[string]string
}

// Merge copies a server error onto the form: field messages land on
// their fields, the rest becomes the banner.
func (e Errors) Merge(err error) Errors {
	if err == nil {
		return e
	}

	out := make(Errors, len(e)+1)
	for k, v := range e {
		out[k] = v
	}

	var fe fieldErrorer
	if errors.As(err, &fe) && len(fe.FieldErrors()) > 0 {
		for k, v := range fe.FieldErrors() {
			out[k] = v
		}
		return out
	}

	out[""] = err.Error()
	return out
}
