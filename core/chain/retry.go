package chain

import (
	"context"
	"strings"
	"time"
)

// retryDelays are the fixed backoff delays for transfer_token/ensure_ata
// submission retries: up to 3 retries, [1s, 2s, 4s].
var retryDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// retryableSubstrings classifies a chain error message as transient.
// Matched case-insensitively against the error text.
var retryableSubstrings = []string{
	"blockhash",
	"timeout",
	"rate limit",
	"connection",
	"network",
}

// isRetryable reports whether err's message indicates a transient
// condition worth retrying. Validation and insufficient-balance errors
// never match and are not retried.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// withRetry runs op up to len(retryDelays)+1 times, retrying only on
// isRetryable errors, sleeping retryDelays[attempt] between attempts.
// Returns the last error if every attempt is exhausted, and ctx.Err() if
// the context is cancelled mid-wait.
func withRetry(ctx context.Context, op func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		sig, err := op()
		if err == nil {
			return sig, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == len(retryDelays) {
			return "", err
		}
		select {
		case <-time.After(retryDelays[attempt]):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}
