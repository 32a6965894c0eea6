package shared

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	itesting "github.com/canxin121/musicagg/internal/testing"
)

func TestRetryTransportRetriesOn5xx(t *testing.T) {
	calls := 0
	rt := &countingRoundTripper{
		fn: func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 2 {
				return &http.Response{StatusCode: 502, Body: http.NoBody}, nil
			}
			return &http.Response{StatusCode: 200, Body: http.NoBody}, nil
		},
	}

	transport := &RetryTransport{base: rt, maxRetries: 2, backoffBase: time.Millisecond}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://example.invalid", nil)
	if err != nil {
		t.Fatalf("NewRequestWithContext: %v", err)
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("expected eventual 200, got %d", resp.StatusCode)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestRetryTransportExhaustsBudget(t *testing.T) {
	rt := itesting.NewMockRoundTripper(nil, errors.New("connection refused"))
	transport := &RetryTransport{base: rt, maxRetries: 1, backoffBase: time.Millisecond}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://example.invalid", nil)
	if err != nil {
		t.Fatalf("NewRequestWithContext: %v", err)
	}

	if _, err := transport.RoundTrip(req); !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

func TestRetryTransportResendsBodyOnRetry(t *testing.T) {
	const payload = "encSecKey=abc&params=def"

	var bodies []string
	rt := &countingRoundTripper{
		fn: func(req *http.Request) (*http.Response, error) {
			data, err := io.ReadAll(req.Body)
			if err != nil {
				t.Fatalf("reading request body: %v", err)
			}
			bodies = append(bodies, string(data))
			if len(bodies) < 2 {
				return &http.Response{StatusCode: 502, Body: http.NoBody}, nil
			}
			return &http.Response{StatusCode: 200, Body: http.NoBody}, nil
		},
	}

	transport := &RetryTransport{base: rt, maxRetries: 1, backoffBase: time.Millisecond}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, "http://example.invalid", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("NewRequestWithContext: %v", err)
	}

	if _, err := transport.RoundTrip(req); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}

	if len(bodies) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(bodies))
	}
	for i, body := range bodies {
		if body != payload {
			t.Errorf("attempt %d: expected body %q, got %q", i+1, payload, body)
		}
	}
}

func TestWithUserAgentAppliesHeader(t *testing.T) {
	var seen string
	rt := &countingRoundTripper{
		fn: func(req *http.Request) (*http.Response, error) {
			seen = req.Header.Get("User-Agent")
			return &http.Response{StatusCode: 200, Body: http.NoBody}, nil
		},
	}

	transport := &RetryTransport{base: rt, maxRetries: 0, backoffBase: time.Millisecond}
	ctx := WithUserAgent(context.Background(), "musicagg-test/1.0")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid", nil)
	if err != nil {
		t.Fatalf("NewRequestWithContext: %v", err)
	}

	if _, err := transport.RoundTrip(req); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if seen != "musicagg-test/1.0" {
		t.Errorf("expected overridden user-agent, got %q", seen)
	}
}

type countingRoundTripper struct {
	fn func(*http.Request) (*http.Response, error)
}

func (c *countingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return c.fn(req)
}
