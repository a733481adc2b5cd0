package google

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/api/googleapi"
)

const maxAttempts = 5

var (
	ErrUnauthorized = errors.New("google: unauthorized (invalid or revoked credentials)")
	ErrRateLimited  = errors.New("google: rate limit exceeded")

	retryBase = 250 * time.Millisecond
)

// Do runs call under the limiter, retrying 429 and 5xx answers with
// exponential backoff and jitter.
func Do(ctx context.Context, limiter *RateLimiter, call func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := call(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		code := statusCode(err)
		if !isRetryableStatus(code) || attempt == maxAttempts {
			break
		}
		if code == http.StatusTooManyRequests && limiter != nil {
			if wait := retryAfter(err); wait > 0 {
				limiter.Pause(wait)
			}
		}

		backoff := retryBase*time.Duration(1<<(attempt-1)) + time.Duration(rand.Int63n(int64(retryBase/2)+1))
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return wrapError(lastErr)
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func statusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

func retryAfter(err error) time.Duration {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Header == nil {
		return 0
	}
	secs, convErr := strconv.Atoi(gerr.Header.Get("Retry-After"))
	if convErr != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func wrapError(err error) error {
	switch statusCode(err) {
	case http.StatusUnauthorized:
		return errors.Join(ErrUnauthorized, err)
	case http.StatusTooManyRequests:
		return errors.Join(ErrRateLimited, err)
	default:
		return err
	}
}
