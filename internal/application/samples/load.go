package samples

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/cosminstn/disruptor-mediator/internal/application/mediator"
)

// LoadOptions configures a load run
type LoadOptions struct {
	// Concurrent producers
	Producers int
	// Requests per producer
	Requests int
	// Overall dispatch rate; zero means unlimited
	Rate float64
	// Spread requests round-robin across this many execution groups
	Groups int
}

// LoadResult summarizes a load run
type LoadResult struct {
	Dispatched int64
	Failed     int64
	Elapsed    time.Duration
	// Distinct worker IDs that answered, per execution group
	Workers map[int]map[string]int
}

// Throughput returns handled requests per second
func (r LoadResult) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Dispatched-r.Failed) / r.Elapsed.Seconds()
}

// RunLoad fires HandlerThread queries from concurrent producers and
// records which worker answered each
func RunLoad(ctx context.Context, m *mediator.Mediator, opts LoadOptions) (LoadResult, error) {
	if opts.Producers < 1 || opts.Requests < 1 {
		return LoadResult{}, fmt.Errorf("producers and requests must be positive")
	}
	groups := opts.Groups
	if groups < 1 {
		groups = 1
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), opts.Producers)
	}

	var (
		dispatched atomic.Int64
		failed     atomic.Int64
		mu         sync.Mutex
		wg         sync.WaitGroup
	)
	workers := make(map[int]map[string]int, groups)

	start := time.Now()
	for p := 0; p < opts.Producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < opts.Requests; i++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				group := (p*opts.Requests+i)%groups + 1
				dispatched.Add(1)

				id, err := mediator.DispatchBlocking[string](ctx, m, HandlerThread{}, mediator.WithExecutionGroup(group))
				if err != nil {
					failed.Add(1)
					continue
				}

				mu.Lock()
				if workers[group] == nil {
					workers[group] = make(map[string]int)
				}
				workers[group][id]++
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	return LoadResult{
		Dispatched: dispatched.Load(),
		Failed:     failed.Load(),
		Elapsed:    time.Since(start),
		Workers:    workers,
	}, ctx.Err()
}
