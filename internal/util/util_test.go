package util

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/cenkalti/backoff/v4"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRetryPermanent(t *testing.T) {
	attempts := 0
	sentinel := errors.New("bad symbol")
	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		return backoff.Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Retry err = %v, want %v", err, sentinel)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times for a permanent error, want 1", attempts)
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, 5, 0, func() error { return errors.New("transient") })
	if err == nil {
		t.Fatal("Retry with cancelled context returned nil")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, "warn", "json")
	log.Info("hidden")
	log.Warn("shown", "k", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("json output = %q", out)
	}

	if ParseLevel("DEBUG") != slog.LevelDebug || ParseLevel("bogus") != slog.LevelInfo {
		t.Error("ParseLevel mapping unexpected")
	}
}
