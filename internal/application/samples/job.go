package samples

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/cosminstn/disruptor-mediator/internal/application/logging"
	"github.com/cosminstn/disruptor-mediator/internal/application/mediator"
)

// SampleJob drives every dispatch path of the mediator: a startup sequence
// (blocking, async, awaited future, two events), then a paced stream of
// queries and events plus a periodic liveness log.
type SampleJob struct {
	mediator  *mediator.Mediator
	logger    logging.Logger
	heartbeat time.Duration
	limiter   *rate.Limiter
}

// NewSampleJob creates a job dispatching at most perSecond sample messages
func NewSampleJob(m *mediator.Mediator, logger logging.Logger, heartbeat time.Duration, perSecond float64) *SampleJob {
	return &SampleJob{
		mediator:  m,
		logger:    logger,
		heartbeat: heartbeat,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Start runs the startup sequence
func (j *SampleJob) Start(ctx context.Context) error {
	if _, err := mediator.DispatchBlocking[mediator.Unit](ctx, j.mediator, PrintThing{Thing: "1 - sync"}); err != nil {
		return fmt.Errorf("blocking dispatch failed: %w", err)
	}
	if _, err := mediator.DispatchAsync[mediator.Unit](ctx, j.mediator, PrintThing{Thing: "2 - async"}); err != nil {
		return fmt.Errorf("async dispatch failed: %w", err)
	}

	_, err := mediator.DispatchAsyncWithCallback[mediator.Unit](ctx, j.mediator, PrintThing{Thing: "3 - callback"},
		func(req mediator.Request[mediator.Unit], _ mediator.Unit, err error) {
			if err != nil {
				j.logger.Error("callback command failed", "error", err)
				return
			}
			j.logger.Debug("callback command finished", "command", req.(PrintThing).Thing)
		})
	if err != nil {
		return fmt.Errorf("callback dispatch failed: %w", err)
	}

	future := PrintThing{Thing: "4 - future"}
	j.logger.Info("launching future command", "thing", future.Thing)
	f, err := mediator.DispatchAsync[mediator.Unit](ctx, j.mediator, future)
	if err != nil {
		return fmt.Errorf("future dispatch failed: %w", err)
	}
	if _, err := f.Get(ctx); err != nil {
		return fmt.Errorf("future command failed: %w", err)
	}
	j.logger.Info("future command finished", "thing", future.Thing)

	if err := j.mediator.Publish(ctx, NumberEvent{Number: 5}); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	if err := j.mediator.Publish(ctx, StringEvent{Value: "abc"}); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Run blocks until ctx is done
func (j *SampleJob) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.heartbeat)
	defer ticker.Stop()

	pace := make(chan int)
	go j.produce(ctx, pace)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.logger.Info("app still alive", "stats", j.mediator.Stats())
		case n := <-pace:
			j.step(ctx, n)
		}
	}
}

func (j *SampleJob) produce(ctx context.Context, pace chan<- int) {
	for n := 0; ; n++ {
		if err := j.limiter.Wait(ctx); err != nil {
			return
		}
		select {
		case pace <- n:
		case <-ctx.Done():
			return
		}
	}
}

func (j *SampleJob) step(ctx context.Context, n int) {
	next, err := mediator.DispatchBlocking[int](ctx, j.mediator, FindNextNumber{Number: n})
	if err != nil {
		j.logger.Warn("sample query failed", "number", n, "error", err)
		return
	}
	if err := j.mediator.Publish(ctx, NumberEvent{Number: int64(next)}); err != nil {
		j.logger.Warn("sample publish failed", "number", next, "error", err)
	}
}
