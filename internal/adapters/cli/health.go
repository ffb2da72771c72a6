package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"

	daemongrpc "github.com/cosminstn/disruptor-mediator/internal/adapters/grpc"
)

// NewHealthCommand creates the health command
func NewHealthCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check daemon health status",
		Long:  `Verify that the daemon is running and its mediator accepts dispatches.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemongrpc.NewHealthClient(socketPath)
			if err != nil {
				return fmt.Errorf("failed to connect to daemon: %w", err)
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			health, err := client.Check(ctx, daemongrpc.ServiceName)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := protojson.Marshal(health)
				if err != nil {
					return fmt.Errorf("failed to encode health response: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "Mediator status: %s\n", health.GetStatus())
			if verbose {
				fmt.Fprintf(out, "  Socket:  %s\n", socketPath)
				fmt.Fprintf(out, "  Service: %s\n", daemongrpc.ServiceName)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw health response as JSON")

	return cmd
}
