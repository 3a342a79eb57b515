package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/rickgao/quotesync/internal/version"
)

// doRequest performs an HTTP request with the given method and path.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("token", c.token)
	fullURL := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	return body, nil
}

// doWithRetry runs attempt with exponential backoff while it fails with a
// retryable error.
func (c *Client) doWithRetry(ctx context.Context, path string, attempt func() error) error {
	var lastErr error
	backoff := c.retryBackoff

	for n := 0; n <= c.maxRetries; n++ {
		if n > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)+1))
			c.logger.Debug("retrying request",
				"attempt", n,
				"backoff", jitter,
				"path", path,
				"error", lastErr,
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		err := attempt()
		if err == nil {
			return nil
		}

		lastErr = err

		// Caller cancellation is never retried.
		if ctx.Err() != nil {
			return err
		}
		if Classify(err) != KindRetryable {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// envelope is the common response wrapper.
type envelope[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

// getList performs a GET request with retries and unwraps the envelope.
// A body that is not an envelope yields ErrMalformedResponse.
func getList[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var data []T
	err := c.doWithRetry(ctx, path, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path, query)
		if err != nil {
			return err
		}
		data, err = decodeEnvelope[T](body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func decodeEnvelope[T any](body []byte) ([]T, error) {
	var env envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if env.Code == 0 {
		return nil, fmt.Errorf("%w: missing code", ErrMalformedResponse)
	}
	if env.Code != http.StatusOK {
		return nil, &APIError{
			StatusCode: http.StatusOK,
			Code:       env.Code,
			Message:    env.Msg,
			Body:       body,
		}
	}
	return env.Data, nil
}
