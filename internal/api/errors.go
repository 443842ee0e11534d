package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	errors "github.com/Laisky/errors/v2"
)

// ErrorKind classifies a failed request.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindNetwork      ErrorKind = "network"
	KindUnexpected   ErrorKind = "unexpected"
)

// DefaultErrorMessage is shown when the server gives no message.
const DefaultErrorMessage = "An error occurred"

// Error is the typed failure returned by every Client call.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	// Fields holds server-side validation messages keyed by field name.
	Fields map[string]string
	cause  error
}

// Error returns the server message, falling back to the default text.
func (e *Error) Error() string {
	if e == nil {
		return "api error: <nil>"
	}
	if e.Message == "" {
		return DefaultErrorMessage
	}
	return e.Message
}

// Unwrap exposes the transport cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// AsError extracts a typed api error from the error chain.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// IsKind reports whether the error chain contains an api error of kind.
func IsKind(err error, kind ErrorKind) bool {
	if typed, ok := AsError(err); ok {
		return typed.Kind == kind
	}
	return false
}

// IsUnauthorized reports whether err is a 401.
func IsUnauthorized(err error) bool {
	return IsKind(err, KindUnauthorized)
}

// Message returns the user-facing text of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if typed, ok := AsError(err); ok {
		return typed.Error()
	}
	return err.Error()
}

func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Message: fmt.Sprintf("network error: %v", err), cause: err}
}

// errorBody is the error envelope the backend returns.
type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

// parseError classifies a non-2xx response.
func parseError(status int, body []byte) *Error {
	e := &Error{Status: status}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	default:
		e.Kind = KindUnexpected
	}

	var parsed errorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		e.Message = strings.TrimSpace(parsed.Message)
		if e.Message == "" {
			e.Message = strings.TrimSpace(parsed.Error)
		}
		e.Fields = parseFieldErrors(parsed.Errors)
	}
	if e.Message == "" {
		e.Message = DefaultErrorMessage
	}

	return e
}

// parseFieldErrors reads `{field: [msg, ...]}` or `{field: msg}`.
// Only the first message of each field is kept.
func parseFieldErrors(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}

	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil || len(generic) == 0 {
		return nil
	}

	fields := make(map[string]string, len(generic))
	for name, val := range generic {
		var list []string
		if err := json.Unmarshal(val, &list); err == nil {
			if len(list) > 0 {
				fields[name] = list[0]
			}
			continue
		}

		var single string
		if err := json.Unmarshal(val, &single); err == nil && single != "" {
			fields[name] = single
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

// FieldNames returns the field names with errors, sorted.
func (e *Error) FieldNames() []string {
	if e == nil {
		return nil
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldErrors returns the per-field validation messages.
func (e *Error) FieldErrors() map[string]string {
	if e == nil {
		return nil
	}
	return e.Fields
}
