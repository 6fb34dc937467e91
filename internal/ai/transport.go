package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

const errorBodyLimit = 1024

var errEmptyReply = errors.New("provider returned an empty reply")

// statusError is a non-2xx reply from a move provider.
type statusError struct {
	provider string
	status   int
	body     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s provider error: status=%d body=%s", e.provider, e.status, e.body)
}

// postJSON sends payload and decodes a 2xx reply into out.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		message := strings.TrimSpace(string(snippet))
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &statusError{provider: provider, status: resp.StatusCode, body: message}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s reply: %w", provider, err)
	}
	return nil
}

// retryable reports whether another attempt could succeed: throttling,
// server errors, dropped connections, and empty replies.
func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var status *statusError
	if errors.As(err, &status) {
		return status.status == http.StatusTooManyRequests || status.status >= http.StatusInternalServerError
	}
	return true
}

// withRetry calls fn up to retries+1 times with jittered exponential backoff.
func withRetry(ctx context.Context, retries int, base time.Duration, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		reply, err := fn(ctx)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !retryable(err) || attempt == retries {
			break
		}

		timer := time.NewTimer(backoff(base, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "", lastErr
}

func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 400 * time.Millisecond
	}
	delay := time.Duration(float64(base<<attempt) * (0.8 + rand.Float64()*0.4))
	if delay < 50*time.Millisecond {
		return 50 * time.Millisecond
	}
	return delay
}

func boundedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// cleanReply strips whitespace and the wrapping quotes models like to add.
func cleanReply(raw string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`))
}
