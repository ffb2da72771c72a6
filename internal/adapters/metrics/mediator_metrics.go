package metrics

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cosminstn/disruptor-mediator/internal/application/mediator"
)

// MediatorMetricsCollector records dispatch engine metrics. It implements
// mediator.MetricsRecorder and polls mediator.Stats for ring occupancy.
type MediatorMetricsCollector struct {
	getStats func() mediator.Stats

	dispatchedTotal     *prometheus.CounterVec
	processedTotal      *prometheus.CounterVec
	processingDuration  *prometheus.HistogramVec
	eventHandlerErrors  *prometheus.CounterVec
	ringCapacity        prometheus.Gauge
	ringRemaining       prometheus.Gauge
	groupProcessedTotal *prometheus.GaugeVec

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewMediatorMetricsCollector creates a new mediator metrics collector.
// getStats may be nil when only the recorder side is needed.
func NewMediatorMetricsCollector(getStats func() mediator.Stats) *MediatorMetricsCollector {
	return &MediatorMetricsCollector{
		getStats: getStats,

		dispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "messages_dispatched_total",
				Help:      "Total number of messages published to the ring by kind, type and execution group",
			},
			[]string{"kind", "message", "group"},
		),

		processedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "messages_processed_total",
				Help:      "Total number of messages processed by workers by kind, type, group and status",
			},
			[]string{"kind", "message", "group", "status"},
		),

		processingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "processing_duration_seconds",
				Help:      "Time a worker spent processing one message",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"kind", "group"},
		),

		eventHandlerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "event_handler_failures_total",
				Help:      "Total number of failed event handler invocations",
			},
			[]string{"event", "handler"},
		),

		ringCapacity: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ring",
				Name:      "capacity",
				Help:      "Number of envelope slots in the ring buffer",
			},
		),

		ringRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ring",
				Name:      "remaining_capacity",
				Help:      "Slots producers can claim without waiting for the slowest worker",
			},
		),

		groupProcessedTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "worker",
				Name:      "processed",
				Help:      "Messages processed by the worker of each execution group",
			},
			[]string{"group", "worker_id"},
		),
	}
}

// WithStats sets the stats source polled by Start. The mediator needs the
// collector before it exists, so the source is attached afterwards.
func (c *MediatorMetricsCollector) WithStats(getStats func() mediator.Stats) *MediatorMetricsCollector {
	c.getStats = getStats
	return c
}

// Register registers all mediator metrics with the Prometheus registry
func (c *MediatorMetricsCollector) Register() error {
	return register(
		c.dispatchedTotal,
		c.processedTotal,
		c.processingDuration,
		c.eventHandlerErrors,
		c.ringCapacity,
		c.ringRemaining,
		c.groupProcessedTotal,
	)
}

// Start polls mediator stats every interval until Stop
func (c *MediatorMetricsCollector) Start(ctx context.Context, interval time.Duration) {
	if c.getStats == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	c.ctx, c.cancelFunc = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.collectStats(interval)
}

// Stop gracefully stops the metrics collection
func (c *MediatorMetricsCollector) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
}

func (c *MediatorMetricsCollector) collectStats(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.UpdateStats()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.UpdateStats()
		}
	}
}

// UpdateStats copies one mediator.Stats snapshot into the gauges
func (c *MediatorMetricsCollector) UpdateStats() {
	if c.getStats == nil {
		return
	}
	stats := c.getStats()

	c.ringCapacity.Set(float64(stats.BufferSize))
	c.ringRemaining.Set(float64(stats.RemainingCapacity))
	for _, g := range stats.Groups {
		c.groupProcessedTotal.WithLabelValues(strconv.Itoa(g.Group), g.WorkerID).Set(float64(g.Processed))
	}
}

// RecordDispatch implements mediator.MetricsRecorder
func (c *MediatorMetricsCollector) RecordDispatch(kind mediator.Kind, messageType string, group int) {
	c.dispatchedTotal.WithLabelValues(kind.String(), messageType, strconv.Itoa(group)).Inc()
}

// RecordProcessed implements mediator.MetricsRecorder
func (c *MediatorMetricsCollector) RecordProcessed(kind mediator.Kind, messageType string, group int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	groupLabel := strconv.Itoa(group)

	c.processedTotal.WithLabelValues(kind.String(), messageType, groupLabel, status).Inc()
	c.processingDuration.WithLabelValues(kind.String(), groupLabel).Observe(duration.Seconds())
}

// RecordEventHandlerFailure implements mediator.MetricsRecorder
func (c *MediatorMetricsCollector) RecordEventHandlerFailure(eventType, handler string) {
	c.eventHandlerErrors.WithLabelValues(eventType, handler).Inc()
}
