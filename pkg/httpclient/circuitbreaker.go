package httpclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerClient wraps a Client with a circuit breaker. When the
// downstream service fails repeatedly the breaker opens and requests fail
// fast with ErrCircuitOpen instead of piling up on a dead dependency.
type CircuitBreakerClient struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// ErrCircuitOpen is returned when the breaker rejects a request without
// attempting the call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerSettings configures the circuit breaker thresholds.
type BreakerSettings struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker.
	FailureThreshold uint32
}

// NewCircuitBreakerClient wraps the given Client with a circuit breaker.
func NewCircuitBreakerClient(client *Client, settings BreakerSettings, l *slog.Logger) *CircuitBreakerClient {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	if settings.Timeout == 0 {
		settings.Timeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// Only server errors and transport failures count against the
			// breaker; a 4xx means the downstream is healthy.
			var se *ServerError
			if errors.As(err, &se) {
				return false
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &CircuitBreakerClient{client: client, breaker: cb}
}

// PostJSON sends a JSON POST through the circuit breaker.
func (c *CircuitBreakerClient) PostJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.client.PostJSON(ctx, path, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return resp, nil
}

// State reports the current breaker state.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.breaker.State()
}
