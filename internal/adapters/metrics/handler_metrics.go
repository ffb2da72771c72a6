package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cosminstn/disruptor-mediator/internal/application/mediator"
)

const (
	statusSuccess = "success"
	statusError   = "error"
	statusPanic   = "panic"
)

// HandlerMetricsCollector measures command and query handlers from inside
// the middleware chain, so durations exclude time spent queued on the ring.
type HandlerMetricsCollector struct {
	handlerDuration *prometheus.HistogramVec
	handledTotal    *prometheus.CounterVec
}

// NewHandlerMetricsCollector creates a new handler metrics collector
func NewHandlerMetricsCollector() *HandlerMetricsCollector {
	return &HandlerMetricsCollector{
		handlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "handler_duration_seconds",
				Help:      "Command and query handler duration on the execution group worker",
				Buckets:   []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"kind", "message", "status"},
		),

		handledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "handled_total",
				Help:      "Commands and queries handled, by outcome",
			},
			[]string{"kind", "message", "status"},
		),
	}
}

// Register registers the handler metrics with the Prometheus registry
func (c *HandlerMetricsCollector) Register() error {
	return register(c.handlerDuration, c.handledTotal)
}

// RecordHandled records one handler outcome
func (c *HandlerMetricsCollector) RecordHandled(kind mediator.Kind, message string, elapsed time.Duration, err error) {
	status := handlerStatus(err)
	c.handlerDuration.WithLabelValues(kind.String(), message, status).Observe(elapsed.Seconds())
	c.handledTotal.WithLabelValues(kind.String(), message, status).Inc()
}

func handlerStatus(err error) string {
	if err == nil {
		return statusSuccess
	}
	var execErr *mediator.HandlerExecutionError
	if errors.As(err, &execErr) && execErr.Panicked {
		return statusPanic
	}
	return statusError
}
