package moderation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetcher(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/flaky.png":
			if attempts.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte("image"))
		case "/big.png":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := NewFetcher(16, time.Second)

	data, err := f.Fetch(context.Background(), srv.URL+"/flaky.png")
	if err != nil || string(data) != "image" {
		t.Fatalf("unexpected result: %q %v", data, err)
	}
	if attempts.Load() != 2 {
		t.Fatalf("unexpected attempts: got %d want 2", attempts.Load())
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/big.png"); !errors.Is(err, ErrMediaTooLarge) {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
