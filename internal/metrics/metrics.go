// Package metrics exposes builder activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultNoop  = "noop"
	ResultError = "error"
)

// Recorder holds the builder metrics. It satisfies service.Metrics.
type Recorder struct {
	registry     *prometheus.Registry
	actions      *prometheus.CounterVec
	openSessions prometheus.Gauge
	saves        *prometheus.CounterVec
}

// New creates a Recorder with its own registry, including the Go runtime
// and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagebuilder_actions_total",
			Help: "Builder actions dispatched, by action and result.",
		}, []string{"action", "result"}),
		openSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pagebuilder_open_sessions",
			Help: "Builder sessions currently open.",
		}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagebuilder_saves_total",
			Help: "Document saves, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		r.actions,
		r.openSessions,
		r.saves,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveAction counts a dispatched action. Rejected actions count as noop.
func (r *Recorder) ObserveAction(action string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultNoop
	}
	r.actions.WithLabelValues(action, result).Inc()
}

// SetOpenSessions sets the open session gauge.
func (r *Recorder) SetOpenSessions(n int) {
	r.openSessions.Set(float64(n))
}

// ObserveSave counts a save attempt.
func (r *Recorder) ObserveSave(err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	r.saves.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics: listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
