package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cosminstn/disruptor-mediator/internal/adapters/persistence"
	"github.com/cosminstn/disruptor-mediator/internal/infrastructure/config"
	"github.com/cosminstn/disruptor-mediator/internal/infrastructure/database"
)

// NewFailuresCommand creates the failures command with subcommands
func NewFailuresCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Inspect the handler failure journal",
		Long: `Read or prune the journal of failed handler invocations written by the daemon.

Examples:
  mediator failures list
  mediator failures list --handler stringEventHandler --since 1h
  mediator failures purge --older-than 168h`,
	}

	cmd.AddCommand(newFailuresListCommand())
	cmd.AddCommand(newFailuresPurgeCommand())

	return cmd
}

func newFailuresListCommand() *cobra.Command {
	var (
		handler     string
		messageType string
		since       time.Duration
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent handler failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeDB, err := openFailureRepository()
			if err != nil {
				return err
			}
			defer closeDB()

			filter := persistence.FailureFilter{
				Handler:     handler,
				MessageType: messageType,
				Limit:       limit,
			}
			if since > 0 {
				cutoff := time.Now().Add(-since)
				filter.Since = &cutoff
			}

			records, err := repo.ListRecent(context.Background(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No failures recorded")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "LAST SEEN\tHANDLER\tMESSAGE\tKIND\tGROUP\tCOUNT\tPANIC\tERROR")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%t\t%s\n",
					r.LastSeenAt.Format(time.RFC3339), r.Handler, r.MessageType, r.Kind,
					r.Group, r.Occurrences, r.Panicked, r.Error)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&handler, "handler", "", "Only failures of this handler")
	cmd.Flags().StringVar(&messageType, "message", "", "Only failures for this message type")
	cmd.Flags().DurationVar(&since, "since", 0, "Only failures seen within this window (e.g. 1h)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of failures to show")

	return cmd
}

func newFailuresPurgeCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete failures last seen before a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			repo, closeDB, err := openFailureRepository()
			if err != nil {
				return err
			}
			defer closeDB()

			purged, err := repo.Purge(context.Background(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d failure(s)\n", purged)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Age cutoff")

	return cmd
}

func openFailureRepository() (*persistence.GormFailureRepository, func(), error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		database.Close(db)
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return persistence.NewGormFailureRepository(db, nil), func() { database.Close(db) }, nil
}
