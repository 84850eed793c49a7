package discord

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/iamwavecut/prime/internal/infra"
)

// rest retries transient REST failures. Client errors such as missing
// permissions are returned at once.
func rest[T any](ctx context.Context, op func() (T, error)) (T, error) {
	return infra.WithRetry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !retryable(err) {
			return v, infra.Permanent(err)
		}
		return v, err
	}, infra.RESTRetryOptions())
}

func call(ctx context.Context, op func() error) error {
	_, err := rest(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

func retryable(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		code := restErr.Response.StatusCode
		return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
