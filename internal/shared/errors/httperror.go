package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 64 << 10

// HTTPError is a non-2xx response received from a collaborator.
type HTTPError struct {
	Status int
	URL    string
	// Body is the decoded JSON body, the raw text when it is not JSON,
	// or nil when the body could not be read.
	Body any
}

// NewHTTPError builds an HTTPError from resp. It never fails: an unreadable
// body simply leaves Body nil. The caller still owns resp.Body.
func NewHTTPError(resp *http.Response) *HTTPError {
	if resp == nil {
		return &HTTPError{}
	}

	e := &HTTPError{Status: resp.StatusCode}
	if resp.Request != nil && resp.Request.URL != nil {
		e.URL = resp.Request.URL.String()
	}

	if resp.Body == nil {
		return e
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return e
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err == nil {
		e.Body = decoded
		return e
	}

	e.Body = strings.TrimSpace(string(raw))
	return e
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	switch body := e.Body.(type) {
	case nil:
		return fmt.Sprintf("http %d from %s", e.Status, e.URL)
	case string:
		return fmt.Sprintf("http %d from %s: %s", e.Status, e.URL, body)
	default:
		encoded, _ := json.Marshal(body)
		return fmt.Sprintf("http %d from %s: %s", e.Status, e.URL, encoded)
	}
}

// SystemError returns the backend error code carried in the body, if any.
func (e *HTTPError) SystemError() string {
	fields, ok := e.Body.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"code", "system_error", "error_code"} {
		if v, ok := fields[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func (e *HTTPError) bodyStatus() int {
	fields, ok := e.Body.(map[string]any)
	if !ok {
		return 0
	}
	for _, key := range []string{"status", "status_code", "statusCode"} {
		switch v := fields[key].(type) {
		case float64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return 0
}

// GetHTTPError extracts an HTTPError from err
func GetHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return nil
}
