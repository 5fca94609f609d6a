package client

import "fmt"

// APIError is an error reported by the system under test: the request left
// the process, the server answered, and the answer was a non-2xx status.
// Code is the server's error-code namespace (e.g. "api.not_found"); it may
// be "api.unknown" when the body carried no structured error.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// ValidationError is raised by the client library itself before any request
// leaves the process, for arguments the server would reject anyway.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("client validation failed for %s: %s", e.Field, e.Reason)
}
