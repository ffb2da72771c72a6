package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/cosminstn/disruptor-mediator/internal/application/logging"
	"github.com/cosminstn/disruptor-mediator/internal/application/mediator"
	"github.com/cosminstn/disruptor-mediator/internal/application/samples"
)

// NewLoadCommand creates the load command
func NewLoadCommand() *cobra.Command {
	var (
		producers  int
		requests   int
		groups     int
		bufferSize int
		rateLimit  float64
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Run a local load test against an in-process mediator",
		Long: `Start a mediator with the sample handlers, fire queries from concurrent
producers across execution groups and report throughput and which worker
served each group.

Example:
  mediator load --producers 10 --requests 1000 --groups 2 --rate 5000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewNopLogger()
			if verbose {
				logger = logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
			}

			registry := mediator.NewRegistry(mediator.StaticBindings(samples.Bindings(logger)...))
			m, err := mediator.New(registry,
				mediator.WithExecutionGroups(groups),
				mediator.WithBufferSize(bufferSize),
				mediator.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := m.Initialize(ctx); err != nil {
				return err
			}
			defer m.Close(context.Background())

			result, err := samples.RunLoad(ctx, m, samples.LoadOptions{
				Producers: producers,
				Requests:  requests,
				Rate:      rateLimit,
				Groups:    groups,
			})
			if err != nil {
				return fmt.Errorf("load run aborted: %w", err)
			}

			printLoadResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().IntVar(&producers, "producers", 10, "Concurrent producers")
	cmd.Flags().IntVar(&requests, "requests", 100, "Requests per producer")
	cmd.Flags().IntVar(&groups, "groups", 1, "Execution groups")
	cmd.Flags().IntVar(&bufferSize, "buffer-size", mediator.DefaultBufferSize, "Ring buffer size (power of two)")
	cmd.Flags().Float64Var(&rateLimit, "rate", 0, "Overall dispatches per second (0 = unlimited)")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Abort the run after this long")

	return cmd
}

func printLoadResult(cmd *cobra.Command, result samples.LoadResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Dispatched: %d\n", result.Dispatched)
	fmt.Fprintf(out, "Failed:     %d\n", result.Failed)
	fmt.Fprintf(out, "Elapsed:    %s\n", result.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "Throughput: %.0f req/s\n", result.Throughput())

	groups := make([]int, 0, len(result.Workers))
	for g := range result.Workers {
		groups = append(groups, g)
	}
	sort.Ints(groups)
	for _, g := range groups {
		for id, n := range result.Workers[g] {
			fmt.Fprintf(out, "  group %d: worker %s handled %d\n", g, id, n)
		}
	}
}
