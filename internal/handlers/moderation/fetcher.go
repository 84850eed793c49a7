package moderation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrMediaTooLarge = errors.New("media exceeds size limit")

// Fetcher downloads attachments with retries and a hard size limit.
type Fetcher struct {
	client   *retryablehttp.Client
	maxBytes int64
}

func NewFetcher(maxBytes int64, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = leveledLogger{entry: log.WithField("object", "MediaFetcher")}
	return &Fetcher{client: client, maxBytes: maxBytes}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, ErrMediaTooLarge
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, ErrMediaTooLarge
	}
	return data, nil
}

// leveledLogger routes retryablehttp logs into logrus.
type leveledLogger struct {
	entry *log.Entry
}

func (l leveledLogger) Error(msg string, kv ...any) { l.with(kv).Error(msg) }
func (l leveledLogger) Warn(msg string, kv ...any)  { l.with(kv).Warn(msg) }
func (l leveledLogger) Info(msg string, kv ...any)  { l.with(kv).Debug(msg) }
func (l leveledLogger) Debug(msg string, kv ...any) { l.with(kv).Trace(msg) }

func (l leveledLogger) with(kv []any) *log.Entry {
	fields := make(log.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return l.entry.WithFields(fields)
}
