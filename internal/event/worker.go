package event

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sink receives every record drained from the bus.
type Sink interface {
	Handle(ctx context.Context, record Record) error
}

type SinkFunc func(ctx context.Context, record Record) error

func (f SinkFunc) Handle(ctx context.Context, record Record) error {
	return f(ctx, record)
}

const drainTimeout = 5 * time.Second

// Worker drains the bus into the sinks on a single goroutine.
type Worker struct {
	bus    *Bus
	sinks  []Sink
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	logger *log.Entry
}

func NewWorker(bus *Bus, sinks ...Sink) *Worker {
	return &Worker{
		bus:    bus,
		sinks:  sinks,
		done:   make(chan struct{}),
		logger: log.WithField("object", "EventWorker"),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel
	go w.run(runCtx)
	return nil
}

// Stop cancels the loop and waits until queued records are flushed.
func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.once.Do(w.cancel)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	w.logger.Trace("event worker started")
	for {
		select {
		case <-ctx.Done():
			w.drain()
			w.logger.Info("shutting down event worker by cancelled context")
			return
		case record := <-w.bus.q:
			w.dispatch(ctx, record)
		}
	}
}

func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		record, ok := w.bus.pop()
		if !ok {
			return
		}
		w.dispatch(ctx, record)
	}
}

func (w *Worker) dispatch(ctx context.Context, record Record) {
	for _, sink := range w.sinks {
		if err := sink.Handle(ctx, record); err != nil {
			w.logger.WithError(err).WithFields(log.Fields{
				"action":  record.Action,
				"user_id": record.UserID,
			}).Warn("event sink failed")
		}
	}
}
