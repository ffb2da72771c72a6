package metrics

import (
	"context"
	"reflect"
	"time"

	"github.com/cosminstn/disruptor-mediator/internal/application/mediator"
)

// PrometheusMiddleware creates a middleware that records command/query
// handler duration and outcome. It runs on the execution group's worker, so
// the measured time excludes queueing.
func PrometheusMiddleware(collector *HandlerMetricsCollector) mediator.Middleware {
	return func(ctx context.Context, request any, next mediator.HandlerFunc) (any, error) {
		// Skip metrics if collector is nil (metrics disabled)
		if collector == nil {
			return next(ctx, request)
		}

		start := time.Now()
		response, err := next(ctx, request)

		collector.RecordHandled(mediator.KindOf(request), messageName(request), time.Since(start), err)
		return response, err
	}
}

// messageName returns the request type without package prefix
// Examples:
//   - "*samples.PrintThing" → "PrintThing"
//   - "samples.FindNextNumber" → "FindNextNumber"
func messageName(request any) string {
	if request == nil {
		return "Unknown"
	}
	return mediator.MessageName(reflect.TypeOf(request))
}
