package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	socketPath string
	configPath string
	verbose    bool
)

// NewRootCommand creates the root command for the CLI
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mediator",
		Short: "Mediator CLI - inspect and exercise the disruptor mediator",
		Long: `Mediator CLI talks to a running mediator daemon over its Unix socket,
reads the handler failure journal and runs local load tests.

Examples:
  mediator health
  mediator failures list --handler printThingHandler --limit 20
  mediator failures purge --older-than 168h
  mediator load --producers 10 --requests 1000 --groups 2
  mediator config show`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", getDefaultSocketPath(),
		"Path to daemon Unix socket")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to mediator.yaml (default: search ., ./configs, /etc/disruptor-mediator)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose output")

	rootCmd.AddCommand(NewHealthCommand())
	rootCmd.AddCommand(NewFailuresCommand())
	rootCmd.AddCommand(NewLoadCommand())
	rootCmd.AddCommand(NewConfigCommand())

	return rootCmd
}

// getDefaultSocketPath returns the default socket path
func getDefaultSocketPath() string {
	if path := os.Getenv("MEDIATOR_SOCKET"); path != "" {
		return path
	}
	return "/tmp/mediator-daemon.sock"
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
