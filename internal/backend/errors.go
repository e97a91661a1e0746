package backend

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrRequest wraps transport failures (connection refused, timeout, ...).
	ErrRequest = errors.New("backend request failed")
	// ErrStatus matches every *StatusError.
	ErrStatus = errors.New("backend returned non-2xx status")
	// ErrDecode wraps malformed response bodies.
	ErrDecode = errors.New("backend response malformed")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Op         string
	StatusCode int
	// Detail is the backend "detail" field, empty when absent.
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Detail)
}

// Unwrap lets errors.Is(err, ErrStatus) match.
func (e *StatusError) Unwrap() error { return ErrStatus }

// DetailOf returns the backend-provided detail carried by err, or "".
func DetailOf(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Detail
	}
	return ""
}

// detailFrom extracts "detail" from an error body. Non-string details
// (validation error arrays) are returned as raw JSON.
func detailFrom(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	r := gjson.GetBytes(body, "detail")
	switch {
	case !r.Exists(), r.Type == gjson.Null:
		return ""
	case r.Type == gjson.String:
		return r.Str
	default:
		return r.Raw
	}
}
