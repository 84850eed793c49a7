package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Server exposes /metrics and owns the tracer provider.
type Server struct {
	addr     string
	registry *prometheus.Registry
	http     *http.Server
	tracer   *sdktrace.TracerProvider
	logger   *log.Entry
}

func NewServer(addr string) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(moderationCollectors...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &Server{
		addr:     addr,
		registry: registry,
		http:     &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		tracer:   sdktrace.NewTracerProvider(),
		logger:   log.WithField("object", "Observability"),
	}
}

func (s *Server) Start(ctx context.Context) error {
	otel.SetTracerProvider(s.tracer)
	if s.addr == "" {
		return nil
	}
	go func() {
		s.logger.WithField("addr", s.addr).Info("metrics endpoint listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("metrics server failed")
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	var stopErr error
	if s.addr != "" {
		stopErr = s.http.Shutdown(ctx)
	}
	return errors.Join(stopErr, s.tracer.Shutdown(ctx))
}
