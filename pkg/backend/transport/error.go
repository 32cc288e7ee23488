package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fastygo/places/domain"
)

// Error is the uniform failure value of every backend call. Status is zero
// when the request never produced an HTTP response.
type Error struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	ErrCode string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Status > 0 {
		return fmt.Sprintf("backend %d: %s", e.Status, e.Message)
	}
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Network reports whether the failure happened before a response was received.
func (e *Error) Network() bool {
	return e != nil && e.Status == 0
}

// Code maps the failure onto the shared domain classification.
func (e *Error) Code() domain.ErrorCode {
	if e == nil {
		return ""
	}
	switch {
	case e.Status == 0:
		return domain.ErrCodeUnavailable
	case e.Status == http.StatusUnauthorized:
		return domain.ErrCodeUnauthorized
	case e.Status == http.StatusForbidden:
		return domain.ErrCodeForbidden
	case e.Status == http.StatusNotFound:
		return domain.ErrCodeNotFound
	case e.Status == http.StatusConflict:
		return domain.ErrCodeConflict
	case e.Status >= 400 && e.Status < 500:
		return domain.ErrCodeInvalid
	case e.Status == http.StatusServiceUnavailable || e.Status == http.StatusBadGateway || e.Status == http.StatusGatewayTimeout:
		return domain.ErrCodeUnavailable
	default:
		return domain.ErrCodeInternal
	}
}

// NetworkError wraps a transport failure.
func NetworkError(err error) *Error {
	msg := "network request failed"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Message: msg, Err: err}
}

// messageKeys lists the body fields that may carry a human readable message,
// in order of preference.
var messageKeys = []string{"error_description", "message", "msg", "error"}

// ParseError builds an Error from a non-2xx response. JSON bodies are mined
// for a message; anything else becomes the message verbatim.
func ParseError(status int, body []byte) *Error {
	out := &Error{Status: status}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err == nil && fields != nil {
		out.Message = MessageFrom(fields)
		out.ErrCode = stringField(fields, "code")
		if out.ErrCode == "" {
			out.ErrCode = stringField(fields, "error_code")
		}
		out.Details = stringField(fields, "details")
		out.Hint = stringField(fields, "hint")
	}
	if out.Message == "" {
		out.Message = strings.TrimSpace(string(body))
	}
	if out.Message == "" {
		out.Message = http.StatusText(status)
	}
	return out
}

// MessageFrom returns the preferred message field of a decoded error body,
// or an empty string.
func MessageFrom(fields map[string]any) string {
	for _, key := range messageKeys {
		if msg := stringField(fields, key); msg != "" {
			return msg
		}
	}
	return ""
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	case map[string]any:
		// nested {"error": {"message": ...}}
		return MessageFrom(v)
	default:
		return ""
	}
}
