package store

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

const (
	maxRetries     = 3
	retryBaseDelay = 50 * time.Millisecond
)

// withRetry runs fn, retrying with exponential backoff while SQLite reports
// a busy or locked database.
func withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil || !isLockConflict(err) || i == maxRetries-1 {
			return err
		}

		delay := retryBaseDelay * time.Duration(1<<i) // 50ms, 100ms, 200ms
		slog.Debug("store operation hit a locked database, retrying",
			"op", op,
			"attempt", i+1,
			"delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// isLockConflict matches SQLITE_BUSY and "database is locked" errors. The
// driver only exposes them through the message text.
func isLockConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
