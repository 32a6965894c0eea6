package shared

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"
)

var (
	sharedClientOnce sync.Once
	sharedClient     *http.Client
)

// userAgentKey is the context key a caller sets to override the default
// user-agent on a per-request basis (component A, §4.1: "per-request
// user-agent override permitted").
type userAgentKey struct{}

// WithUserAgent returns a context carrying a user-agent override that
// RetryTransport applies to the outgoing request.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, ua)
}

// SharedHTTPClient returns the process-wide HTTP client used by every
// provider adapter. It is built once: TLS verification is relaxed because
// Kuwo and Netease legacy endpoints present self-signed or otherwise
// mismatched certificate chains, and RetryTransport retries transient
// failures with exponential back-off.
func SharedHTTPClient(cfg HTTPConfig) *http.Client {
	sharedClientOnce.Do(func() {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		maxRetries := cfg.MaxRetries
		if maxRetries <= 0 {
			maxRetries = 2
		}
		backoffBase := time.Duration(cfg.BackoffBaseMillis) * time.Millisecond
		if backoffBase <= 0 {
			backoffBase = 200 * time.Millisecond
		}

		base := http.DefaultTransport.(*http.Transport).Clone()
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

		sharedClient = &http.Client{
			Timeout: timeout,
			Transport: &RetryTransport{
				base:        base,
				maxRetries:  maxRetries,
				backoffBase: backoffBase,
			},
		}
	})
	return sharedClient
}

// RetryTransport wraps an [http.RoundTripper], retrying connect errors, 5xx
// responses and timeouts up to maxRetries times with a doubling back-off
// starting at backoffBase.
type RetryTransport struct {
	base        http.RoundTripper
	maxRetries  int
	backoffBase time.Duration
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if ua, ok := req.Context().Value(userAgentKey{}).(string); ok && ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	var lastErr error
	backoff := t.backoffBase
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(backoff):
			}
			backoff *= 2

			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("%w: rewinding request body for retry: %v", ErrTransport, err)
				}
				req.Body = body
			}
		}

		resp, err := t.base.RoundTrip(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if err == nil {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: server returned status %d", ErrTransport, resp.StatusCode)
			continue
		}
		lastErr = fmt.Errorf("%w: %v", ErrTransport, err)
	}

	return nil, lastErr
}
