package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-ingest/internal/weather"
)

// HTTPClientConfig bundles the HTTP client and the guards placed in front of it.
// Limiter may be nil, in which case requests are not throttled.
type HTTPClientConfig struct {
	Client  *http.Client
	Limiter *rate.Limiter
}

var errNoHTTPClient = errors.New("http client not configured")

// NewLimiter allows perMinute requests per minute with a burst of one.
// A non-positive rate disables limiting.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doRequest executes the request exactly once behind the limiter and, when cb
// is not nil, the circuit breaker. The caller owns the returned body.
func doRequest(
	ctx context.Context,
	provider string,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}

	if cfg.Limiter != nil {
		if err := cfg.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", weather.ErrFetch, err)
		}
	}

	req, err := buildRequest(ctx)
	if err != nil {
		return nil, err
	}

	send := func() (interface{}, error) {
		resp, execErr := cfg.Client.Do(req)
		if execErr != nil {
			return nil, fmt.Errorf("%w: %v", weather.ErrFetch, execErr)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
			resp.Body.Close()
			return nil, &weather.StatusError{Provider: provider, StatusCode: resp.StatusCode}
		}

		return resp, nil
	}

	var result interface{}
	if cb != nil {
		result, err = cb.Execute(send)
	} else {
		result, err = send()
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", weather.ErrCircuitOpen, err)
		}
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}
