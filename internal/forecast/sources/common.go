package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/forecast-digest/internal/common"
	"github.com/i474232898/forecast-digest/internal/forecast"
)

// DefaultUserAgent is sent when no User-Agent is configured. api.weather.gov
// rejects requests without one.
const DefaultUserAgent = "forecast-digest (github.com/i474232898/forecast-digest)"

// maxBodyBytes bounds how much of an upstream response is read.
const maxBodyBytes = 4 << 20

// HTTPClientConfig bundles the HTTP client and request headers shared by sources.
type HTTPClientConfig struct {
	Client    *http.Client
	UserAgent string
}

var (
	errNoHTTPClient = errors.New("http client not configured")
	errCircuitOpen  = errors.New("circuit breaker open")
	errBodyTooLarge = fmt.Errorf("response body exceeds %d bytes", maxBodyBytes)
)

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

// getBody performs a single GET through the circuit breaker and returns the body.
// There is no retry: a transport error, a non-2xx status or an open circuit fails
// the call immediately with a *forecast.FetchError.
func getBody(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	source forecast.SourceID,
	url string,
	accept string,
) ([]byte, error) {
	fetchErr := func(status int, snippet string, err error) error {
		return &forecast.FetchError{
			Source:     source,
			URL:        url,
			StatusCode: status,
			Snippet:    snippet,
			Err:        err,
		}
	}

	if cfg.Client == nil {
		return nil, fetchErr(0, "", errNoHTTPClient)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fetchErr(0, "", err)
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	type response struct {
		status int
		body   []byte
	}

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := cfg.Client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
		if readErr != nil {
			return nil, readErr
		}
		if len(body) > maxBodyBytes {
			return response{status: resp.StatusCode, body: body[:common.SnippetLen]}, errBodyTooLarge
		}

		r := response{status: resp.StatusCode, body: body}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return r, fmt.Errorf("unexpected status code %d", resp.StatusCode)
		}
		return r, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fetchErr(0, "", fmt.Errorf("%w: %v", errCircuitOpen, err))
	}

	r, _ := result.(response)
	if err != nil {
		return nil, fetchErr(r.status, common.Snippet(string(r.body), common.SnippetLen), err)
	}
	return r.body, nil
}
