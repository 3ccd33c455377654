package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/amt2283/hunterleaf-go/internal/errors"
)

// RetryPolicy describes a bounded exponential backoff schedule.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy matches the upstream flakiness observed in practice:
// five attempts, one second initial delay doubling up to five minutes.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     300 * time.Second,
	}
}

// normalized fills zero fields with defaults so a partially built policy
// never disables retries by accident.
func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	return p
}

// GetJSONWithRetry performs a GET request and decodes the JSON response into
// result, retrying transient failures (network errors and non-2xx statuses)
// with exponential backoff. The request is rebuilt on each attempt. Headers
// may be nil.
//
// Exhausting the retry budget returns the last error; callers at the adapter
// boundary are expected to degrade to an empty result rather than propagate.
func GetJSONWithRetry(ctx context.Context, c *Client, url string, headers map[string]string, result any, policy RetryPolicy, logger *slog.Logger) error {
	policy = policy.normalized()
	delay := policy.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = getJSON(ctx, c, url, headers, result)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt < policy.MaxAttempts {
			if logger != nil {
				logger.Warn("request failed, retrying",
					"url", url,
					"attempt", attempt,
					"max_attempts", policy.MaxAttempts,
					"delay", delay,
					"error", lastErr.Error())
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
			if delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
		}
	}

	if logger != nil {
		logger.Error("request failed, retry budget exhausted",
			"url", url,
			"attempts", policy.MaxAttempts,
			"error", lastErr.Error())
	}
	return lastErr
}

// getJSON performs a single GET attempt and decodes the body into result.
func getJSON(ctx context.Context, c *Client, url string, headers map[string]string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", url).
			Component("httpclient").
			Build()
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return errors.Newf("HTTP request failed: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", url).
			Component("httpclient").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Newf("failed to read response body: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", url).
			Context("status_code", resp.StatusCode).
			Component("httpclient").
			Build()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("upstream returned status %d", resp.StatusCode).
			Category(errors.HTTPStatusCategory(resp.StatusCode)).
			Context("url", url).
			Context("status_code", resp.StatusCode).
			Component("httpclient").
			Build()
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return errors.Newf("failed to parse response: %w", err).
				Category(errors.CategoryParsing).
				Context("url", url).
				Context("response_size", len(body)).
				Component("httpclient").
				Build()
		}
	}

	return nil
}
