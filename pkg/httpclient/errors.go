package httpclient

import "fmt"

// ServerError indicates the remote service responded with a 5xx status.
// Circuit breakers treat these as failures; 4xx responses are not counted.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: status %d: %s", e.Status, e.Body)
}
