package synth

import "fmt"

// APIError is a structured non-2xx response from the generation backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: status=%d", e.StatusCode)
}

// UnreachableError indicates the generation backend is not reachable
// (e.g. the local runtime is down).
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("generation backend unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("generation backend unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// TimeoutError indicates the request exceeded the configured deadline.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("generation timed out: %v", e.Err) }

func (e *TimeoutError) Unwrap() error { return e.Err }
