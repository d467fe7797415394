package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// statusTransport turns the HTTP statuses the retry policy cares about into typed
// errors. Everything else is passed through so that the GraphQL and REST clients
// keep their own handling (404 on releases, GraphQL error lists).
type statusTransport struct {
	base http.RoundTripper
	now  func() time.Time
}

func newStatusTransport(base http.RoundTripper) *statusTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &statusTransport{base: base, now: time.Now}
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, err
		}
		return nil, &TransientError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		discard(resp)
		return nil, fmt.Errorf("%w: %s", ErrAuthentication, resp.Status)
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusForbidden && isRateLimited(resp):
		retryAfter := t.retryAfter(resp)
		discard(resp)
		return nil, &RateLimitError{RetryAfter: retryAfter}
	case resp.StatusCode >= http.StatusInternalServerError:
		discard(resp)
		return nil, &TransientError{StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusOK && req.Method == http.MethodPost:
		return t.checkGraphQLRateLimit(resp)
	}
	return resp, nil
}

// checkGraphQLRateLimit detects a GraphQL primary rate limit, which GitHub reports
// as a 200 carrying an error of type RATE_LIMITED. Other bodies are handed back
// unread.
func (t *statusTransport) checkGraphQLRateLimit(resp *http.Response) (*http.Response, error) {
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, &TransientError{StatusCode: resp.StatusCode, Err: err}
	}

	var payload struct {
		Errors []struct {
			Type string `json:"type"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &payload) == nil {
		for _, e := range payload.Errors {
			if e.Type == "RATE_LIMITED" {
				return nil, &RateLimitError{RetryAfter: t.retryAfter(resp)}
			}
		}
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func isRateLimited(resp *http.Response) bool {
	return resp.Header.Get("Retry-After") != "" || resp.Header.Get("X-RateLimit-Remaining") == "0"
}

// retryAfter reads the server-specified delay. Zero means "not specified".
func (t *statusTransport) retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(epoch, 0).Sub(t.now()); d > 0 {
				return d
			}
		}
	}
	return 0
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
