package llm

import (
	"fmt"
	"net/http"
	"time"
)

// RetryConfig bounds the retry transport.
type RetryConfig struct {
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the retry policy for the generative
// service: a small number of attempts with capped doubling backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		Backoff:    500 * time.Millisecond,
		MaxBackoff: 4 * time.Second,
	}
}

// RetryableError marks a response status worth re-sending the request
// for.
type RetryableError struct {
	StatusCode int
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable status %d", e.StatusCode)
}

// retryTransport re-issues requests on 5xx responses and network
// errors with capped exponential backoff. 4xx responses return
// immediately.
type retryTransport struct {
	httpClient *http.Client
	config     RetryConfig
}

func (t *retryTransport) Do(req *http.Request) (*http.Response, error) {
	var lastErr error
	backoff := t.config.Backoff
	ctx := req.Context()

	for attempt := 0; attempt <= t.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
				if backoff > t.config.MaxBackoff {
					backoff = t.config.MaxBackoff
				}
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					lastErr = err
					continue
				}
				req.Body = body
			}
		}

		resp, err := t.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = &RetryableError{StatusCode: resp.StatusCode}
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}
