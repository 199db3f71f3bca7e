package api

import "fmt"

// StatusError is returned when a collaborator answers with a non-success
// HTTP status. It carries the status code and the raw response body so
// callers can classify the rejection.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}
