package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestServerExposesModerationMetrics(t *testing.T) {
	t.Parallel()

	srv := NewServer("")
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	RecordViolation("profanity")
	RecordSanction("ban", false)
	ObserveClassification("media", "ok", time.Now().Add(-time.Second))

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(srv.registry, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	for _, name := range []string{"prime_violations_total", "prime_sanctions_total", "prime_classification_duration_seconds"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("metric %q not exposed", name)
		}
	}
}
