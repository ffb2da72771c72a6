package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/cosminstn/disruptor-mediator/internal/infrastructure/config"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
		Long: `Inspect mediator configuration.

Configuration is loaded from multiple sources with priority:
1. Environment variables (MEDIATOR_* prefix, DATABASE_URL)
2. Config file (mediator.yaml)
3. Default values

Examples:
  mediator config show
  mediator config show --config ./configs/mediator.yaml
  mediator config get Mediator.BufferSize`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigGetCommand())

	return cmd
}

// newConfigShowCommand creates the config show subcommand
func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := effectiveConfigJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

// newConfigGetCommand creates the config get subcommand
func newConfigGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Print one configuration value",
		Long: `Print one value of the effective configuration.

The path uses gjson syntax over the JSON form printed by "config show",
for example Mediator.ExecutionGroups or Database.Type.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := effectiveConfigJSON()
			if err != nil {
				return err
			}

			value := gjson.GetBytes(data, args[0])
			if !value.Exists() {
				return fmt.Errorf("no configuration value at %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), value.String())
			return nil
		},
	}
}

// effectiveConfigJSON loads the configuration with credentials masked
func effectiveConfigJSON() ([]byte, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// never print credentials
	if cfg.Database.Password != "" {
		cfg.Database.Password = "********"
	}
	if cfg.Database.URL != "" {
		cfg.Database.URL = "********"
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}
