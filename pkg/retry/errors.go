package retry

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is an API call failure carrying its classification.
type HTTPError struct {
	StatusCode int
	Class      Class
	Message    string
	Body       []byte
	Err        error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// errorBody is the structured error envelope some 4xx responses carry.
type errorBody struct {
	Error struct {
		Type string `json:"type"`
	} `json:"error"`
}

// ClassifyStatus categorizes an HTTP status for the decision table. A 400
// whose body carries {"error":{"type":"not_found"}} classifies as not_found,
// identical to a plain 404.
func ClassifyStatus(statusCode int, body []byte) Class {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ClassRateLimit
	case statusCode == http.StatusNotFound:
		return ClassNotFound
	case statusCode == http.StatusBadRequest:
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err == nil && eb.Error.Type == "not_found" {
			return ClassNotFound
		}
		return ClassClient
	case statusCode >= 400 && statusCode < 500:
		return ClassClient
	case statusCode >= 500:
		return ClassServer
	default:
		return ClassClient
	}
}

// Classify maps an error from a call site to its Class. Errors that are not
// HTTPError values are treated as transport failures.
func Classify(err error) Class {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Class
	}
	return ClassNetwork
}
