package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ashureev/decisions/internal/retry"
)

// Kind classifies a failed call for presentation and retry decisions.
type Kind string

const (
	KindNetwork      Kind = "network"
	KindBadRequest   Kind = "bad_request"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindRateLimited  Kind = "rate_limited"
	KindServer       Kind = "server"
	KindUnexpected   Kind = "unexpected"

	// KindInvalidResponse is a 2xx whose body could not be decoded. The
	// request was applied, so it is never re-sent.
	KindInvalidResponse Kind = "invalid_response"
)

const fallbackMessage = "An unexpected error occurred."

// Error is returned by every Client operation. Message is pre-classified
// and safe to show to the user.
type Error struct {
	Op      string
	Kind    Kind
	Status  int             // 0 when no response was received
	Detail  json.RawMessage // the response's "detail" field, if any
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: http status %d: %s", e.Op, e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode exposes the HTTP status to the retry helper.
func (e *Error) StatusCode() int { return e.Status }

// UserMessage extracts a user-facing message from any error produced here.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallbackMessage
}

// IsInvalidResponse reports whether err is a 2xx answer with an unreadable body.
func IsInvalidResponse(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == KindInvalidResponse
}

// retryable is the retry classification of client calls.
func retryable(err error) bool {
	if IsInvalidResponse(err) {
		return false
	}
	return retry.Retryable(err)
}

// networkError wraps a transport failure (no response received).
func networkError(op string, err error) *Error {
	return &Error{
		Op:      op,
		Kind:    KindNetwork,
		Message: "Unable to connect to server. Please check your internet connection.",
		Err:     err,
	}
}

// responseError classifies a non-2xx response. body is the raw response body.
func responseError(op string, status int, body []byte) *Error {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	_ = json.Unmarshal(body, &envelope)

	e := &Error{Op: op, Status: status, Detail: envelope.Detail}
	detail := detailText(envelope.Detail)

	switch {
	case status == http.StatusBadRequest:
		e.Kind = KindBadRequest
		e.Message = orDefault(detail, "Invalid request. Please check your input.")
	case status == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
		e.Message = "Authentication required. Please refresh the page."
	case status == http.StatusForbidden:
		e.Kind = KindForbidden
		e.Message = "Access denied. You don't have permission for this action."
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
		e.Message = "Resource not found."
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.Message = "Too many requests. Please try again later."
	case status >= http.StatusInternalServerError:
		e.Kind = KindServer
		e.Message = "Server error. Our team has been notified."
	case status == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
		e.Message = orDefault(validationText(envelope.Detail), "Validation error. Please check your input.")
	default:
		e.Kind = KindUnexpected
		e.Message = orDefault(detail, fallbackMessage)
	}
	return e
}

// contextError maps a cancelled or timed-out request. A client-side timeout
// is reported like a network failure, as the user cannot tell them apart.
func contextError(op string, err error) *Error {
	if errors.Is(err, context.Canceled) {
		return &Error{Op: op, Kind: KindUnexpected, Message: "Request cancelled.", Err: err}
	}
	return networkError(op, err)
}

// detailText renders a detail value: strings verbatim, anything else as JSON.
func detailText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// validationText flattens FastAPI-style [{"loc":..., "msg":...}] into "msg1, msg2".
func validationText(raw json.RawMessage) string {
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			msgs = append(msgs, it.Msg)
		}
		return strings.Join(msgs, ", ")
	}
	return detailText(raw)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
