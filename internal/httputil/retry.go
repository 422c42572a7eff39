// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the shared retrying HTTP session used for
// catalog, signing, and asset requests.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/pdiddy/scene-fetch/pkg/types"
)

// Session wraps one http.Client with a retry policy. All catalog, token,
// HEAD, and asset requests go through the same session so they share
// connection pooling.
type Session struct {
	client    *http.Client
	retry     types.RetryConfig
	statuses  map[int]bool
	userAgent string
}

// NewSession builds a session from configuration. The HTTP timeout bounds
// connection setup and time to response headers, not body streaming:
// asset payloads can take minutes to drain and are cancelled through the
// request context instead.
func NewSession(cfg types.HTTPConfig, retry types.RetryConfig) *Session {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = cfg.Timeout

	s := newSession(&http.Client{Transport: tr}, retry)
	s.userAgent = cfg.UserAgent
	return s
}

// NewSessionWithClient wraps an existing client, typically an httptest
// server client in tests.
func NewSessionWithClient(client *http.Client, retry types.RetryConfig) *Session {
	return newSession(client, retry)
}

func newSession(client *http.Client, retry types.RetryConfig) *Session {
	if client == nil {
		client = &http.Client{}
	}
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	if retry.Backoff <= 0 {
		retry.Backoff = 500 * time.Millisecond
	}
	statuses := make(map[int]bool, len(retry.Statuses))
	for _, code := range retry.Statuses {
		statuses[code] = true
	}
	return &Session{client: client, retry: retry, statuses: statuses}
}

// Client returns the underlying pooled http.Client.
func (s *Session) Client() *http.Client {
	return s.client
}

// Do executes req, retrying transport errors and configured status codes
// with exponential backoff: Backoff, 2*Backoff, 4*Backoff, and so on. An
// empty status list disables status-triggered retries entirely. The
// response body is drained and closed before a status retry so the
// connection can be reused. When the budget is exhausted the last
// response (or last transport error) is returned so the caller can
// inspect the terminal state. Cancelling ctx aborts both in-flight
// requests and backoff waits.
func (s *Session) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}
		if s.userAgent != "" && attemptReq.Header.Get("User-Agent") == "" {
			attemptReq.Header.Set("User-Agent", s.userAgent)
		}

		resp, err := s.client.Do(attemptReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt >= s.retry.MaxRetries {
				return nil, err
			}
		} else {
			if !s.statuses[resp.StatusCode] {
				return resp, nil
			}
			// Exhausted retries: return the response as-is.
			if attempt >= s.retry.MaxRetries {
				return resp, nil
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * s.retry.Backoff
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// Get issues a GET for url through the retrying session.
func (s *Session) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating GET request: %w", err)
	}
	return s.Do(ctx, req)
}

// Head issues a HEAD for url through the retrying session.
func (s *Session) Head(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating HEAD request: %w", err)
	}
	return s.Do(ctx, req)
}
