package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultStopTimeout = 5 * time.Second

// Component is a long-running part of the bot: the metrics server, the event
// worker, the captcha sweeper and the gateway session.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Options struct {
	// StopTimeout bounds each component's Stop separately. The context passed
	// to Stop only contributes its values.
	StopTimeout time.Duration
	Logger      *log.Entry
}

// Runtime starts components in order and stops them in reverse.
type Runtime struct {
	components  []Component
	stopTimeout time.Duration
	logger      *log.Entry
}

func NewRuntime(opts Options, components ...Component) *Runtime {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("object", "Runtime")
	}
	r := &Runtime{stopTimeout: opts.StopTimeout, logger: opts.Logger}
	for _, component := range components {
		r.Register(component)
	}
	return r
}

func (r *Runtime) Register(component Component) {
	if component == nil {
		return
	}
	r.components = append(r.components, component)
}

// Start brings components up one by one. When one fails, the already started
// ones are stopped again and the start error is returned.
func (r *Runtime) Start(ctx context.Context) error {
	started := make([]Component, 0, len(r.components))
	for _, component := range r.components {
		entry := r.logger.WithField("component", name(component))
		if err := component.Start(ctx); err != nil {
			entry.WithError(err).Error("cant start component, rolling back")
			if stopErr := r.stopComponents(ctx, started); stopErr != nil {
				r.logger.WithError(stopErr).Warn("rollback was not clean")
			}
			return fmt.Errorf("start %s: %w", name(component), err)
		}
		entry.Debug("component started")
		started = append(started, component)
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	return r.stopComponents(ctx, r.components)
}

func (r *Runtime) stopComponents(ctx context.Context, components []Component) error {
	var stopErr error
	for i := len(components) - 1; i >= 0; i-- {
		component := components[i]
		entry := r.logger.WithField("component", name(component))

		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.stopTimeout)
		started := time.Now()
		err := component.Stop(stopCtx)
		cancel()

		if err != nil {
			entry.WithError(err).Warn("component did not stop cleanly")
			stopErr = errors.Join(stopErr, fmt.Errorf("stop %s: %w", name(component), err))
			continue
		}
		entry.WithField("took", time.Since(started).Round(time.Millisecond)).Debug("component stopped")
	}
	return stopErr
}

func name(component Component) string {
	if named, ok := component.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", component)
}
