package core

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const (
	DefaultErrorMessage = "Something went wrong. Please try again."
	nonFieldErrorsKey   = "non_field_errors"
)

// APIError is the uniform shape of every failure coming out of the API client.
// Status 0 means the server could not be reached at all.
type APIError struct {
	Message string
	Status  int
	// Details holds the decoded response body: a string, a []interface{} or an Object.
	// For transport failures it holds the underlying error.
	Details interface{}
}

func (err *APIError) Error() string {
	if err.Status == 0 {
		return err.Message
	}
	return fmt.Sprintf("%d: %s", err.Status, err.Message)
}

func (err *APIError) Unwrap() error {
	if cause, ok := err.Details.(error); ok {
		return cause
	}
	return nil
}

// Unreachable reports whether the server never answered.
func (err *APIError) Unreachable() bool { return err.Status == 0 }

// AsAPIError finds an *APIError in err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Member is one key/value pair of a JSON object.
type Member struct {
	Key   string
	Value interface{}
}

// Object is a JSON object that remembers the order of its keys.
type Object []Member

func (o Object) Get(key string) (interface{}, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// FormatError renders any error into a single human string.
// All user-facing error text goes through here.
func FormatError(err error, fallback ...string) string {
	fb := DefaultErrorMessage
	if len(fallback) > 0 && fallback[0] != "" {
		fb = fallback[0]
	}
	if err == nil {
		return fb
	}

	messages := make([]string, 0, 4)
	if apiErr, ok := AsAPIError(err); ok {
		messages = append(messages, apiErr.Message)
		messages = append(messages, detailMessages(apiErr.Details)...)
	} else if vErr, ok := errors.Cause(err).(*ValidationError); ok {
		if vErr.Err != nil {
			messages = append(messages, vErr.Err.Error())
		}
		for _, fErr := range vErr.Fields {
			messages = append(messages, HumanizeKey(fErr.Field)+": "+fErr.Error)
		}
	} else {
		messages = append(messages, err.Error())
	}

	seen := make(map[string]bool, len(messages))
	unique := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg == "" || seen[msg] {
			continue
		}
		seen[msg] = true
		unique = append(unique, msg)
	}
	if len(unique) == 0 {
		return fb
	}
	return strings.Join(unique, " | ")
}

func detailMessages(details interface{}) []string {
	switch d := details.(type) {
	case string:
		return []string{d}
	case []interface{}:
		return []string{joinValues(d)}
	case Object:
		msgs := make([]string, 0, len(d))
		for _, m := range d {
			var text string
			switch v := m.Value.(type) {
			case []interface{}:
				text = joinValues(v)
			case string:
				text = v
			default:
				continue
			}
			if m.Key == nonFieldErrorsKey {
				msgs = append(msgs, text)
			} else {
				msgs = append(msgs, HumanizeKey(m.Key)+": "+text)
			}
		}
		return msgs
	}
	return nil
}

// DeriveMessage picks the best single message out of an error response body.
func DeriveMessage(details interface{}, fallback string) string {
	switch d := details.(type) {
	case nil:
		return fallback
	case string:
		if d == "" {
			return fallback
		}
		return d
	case Object:
		if msg, ok := d.Get("message"); ok {
			if s, ok := msg.(string); ok {
				return s
			}
		}
		if detail, ok := d.Get("detail"); ok {
			if s, ok := detail.(string); ok {
				return s
			}
		}
		if nfe, ok := d.Get(nonFieldErrorsKey); ok {
			if list, ok := nfe.([]interface{}); ok {
				return joinValues(list)
			}
		}
		if len(d) > 0 {
			switch v := d[0].Value.(type) {
			case []interface{}:
				return joinValues(v)
			case string:
				return v
			}
		}
	case []interface{}:
		// a bare list answers with its first element
		if len(d) > 0 {
			if s, ok := d[0].(string); ok && s != "" {
				return s
			}
		}
	}
	return fallback
}

func joinValues(values []interface{}) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, " ")
}
