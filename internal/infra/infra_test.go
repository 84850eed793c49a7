package infra

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRecoverTurnsPanicIntoError(t *testing.T) {
	t.Parallel()

	run := func() (err error) {
		defer Recover("test", &err)
		panic("boom")
	}
	err := run()
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGoSurvivesPanic(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	Go("test", func() {
		defer close(done)
		panic("boom")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not finish")
	}
}

func TestWithRetryStopsOnPermanent(t *testing.T) {
	t.Parallel()

	calls := 0
	sentinel := errors.New("fatal")
	_, err := WithRetry(context.Background(), func() (int, error) {
		calls++
		return 0, Permanent(sentinel)
	}, RESTRetryOptions())
	if !errors.Is(err, sentinel) {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("unexpected calls: got %d want 1", calls)
	}
}

func TestWithRetryRetriesTransient(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := WithRetry(context.Background(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	}, RetryOptions{MaxElapsedTime: time.Second, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, MaxRetries: 5})
	if err != nil || got != "ok" {
		t.Fatalf("unexpected result: %q %v", got, err)
	}
	if calls != 3 {
		t.Fatalf("unexpected calls: got %d want 3", calls)
	}
}

func TestDataDir(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	dir, err := DataDir(base, "db")
	if err != nil {
		t.Fatalf("data dir: %v", err)
	}
	if dir != filepath.Join(base, "db") {
		t.Fatalf("unexpected dir: %s", dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("dir not created: %v", err)
	}
}

func TestWatchExecutable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bin")
	if err := os.WriteFile(path, []byte("v1"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := WatchExecutable(ctx, path, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("modification not detected")
	}
}
