package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var errEmptyBody = errors.New("empty response body")

// NetworkError means the request never produced a usable answer: transport
// failure, timeout, cancelled context, an undecodable body or a 5xx.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError is a 4xx answer other than 401. Fields holds the
// field-level messages the API attached, keyed by field name.
type ValidationError struct {
	Status int
	Detail string
	Fields map[string][]string
}

func NewValidationError(status int, fields map[string][]string) *ValidationError {
	return &ValidationError{Status: status, Fields: fields}
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for key := range e.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, key+": "+strings.Join(e.Fields[key], " "))
		}
		return strings.Join(parts, "; ")
	}
	return fmt.Sprintf("request rejected with status %d", e.Status)
}

// ServerError is a 5xx answer. It reaches callers wrapped in a NetworkError.
type ServerError struct {
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server answered %d: %s", e.Status, e.Detail)
}

// AuthError is a 401 the client could not recover from by refreshing.
type AuthError struct {
	Status int
	Detail string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return "authentication required"
}

func (e *AuthError) Unwrap() error { return e.Err }

func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// FieldErrors returns the field messages carried by err, if any.
func FieldErrors(err error) map[string][]string {
	var target *ValidationError
	if errors.As(err, &target) {
		return target.Fields
	}
	return nil
}

func newValidationError(resp *Response) *ValidationError {
	detail, fields := parseErrorBody(resp.Status, resp.Data)
	return &ValidationError{Status: resp.Status, Detail: detail, Fields: fields}
}

func newServerError(resp *Response) *NetworkError {
	detail, _ := parseErrorBody(resp.Status, resp.Data)
	return &NetworkError{Method: resp.method, Path: resp.path, Err: &ServerError{Status: resp.Status, Detail: detail}}
}

func newAuthError(resp *Response) *AuthError {
	detail, _ := parseErrorBody(resp.Status, resp.Data)
	return &AuthError{Status: resp.Status, Detail: detail}
}

// parseErrorBody understands the DRF error shapes: {"detail": "..."},
// {"field": ["msg"]}, {"non_field_errors": [...]} and nested serializers.
func parseErrorBody(status int, data []byte) (string, map[string][]string) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		var list []any
		if err := json.Unmarshal(data, &list); err == nil {
			if messages := messagesOf(list); len(messages) > 0 {
				return strings.Join(messages, " "), nil
			}
		}
		return http.StatusText(status), nil
	}

	detail := ""
	fields := map[string][]string{}
	for key, value := range payload {
		if key == "detail" || key == "message" || key == "error" {
			if text, ok := value.(string); ok && detail == "" {
				detail = text
				continue
			}
		}
		collectField(fields, key, value)
	}
	if detail == "" {
		if messages := fields["non_field_errors"]; len(messages) > 0 {
			detail = strings.Join(messages, " ")
		}
	}
	if len(fields) == 0 {
		fields = nil
	}
	return detail, fields
}

func collectField(fields map[string][]string, key string, value any) {
	switch typed := value.(type) {
	case string:
		fields[key] = append(fields[key], typed)
	case []any:
		fields[key] = append(fields[key], messagesOf(typed)...)
	case map[string]any:
		for sub, nested := range typed {
			collectField(fields, key+"."+sub, nested)
		}
	default:
		if typed != nil {
			fields[key] = append(fields[key], fmt.Sprint(typed))
		}
	}
}

func messagesOf(values []any) []string {
	messages := make([]string, 0, len(values))
	for _, value := range values {
		switch typed := value.(type) {
		case string:
			messages = append(messages, typed)
		case nil:
		default:
			messages = append(messages, fmt.Sprint(typed))
		}
	}
	return messages
}
