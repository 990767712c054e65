package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newConfigCmd())
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective kernel configuration",
		Long: `The config command validates and prints the configuration kernctl would
boot with: the --config file layered over the defaults.

Example:
  kernctl config
  kernctl config --config kern.yaml
  kernctl config --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig()
		},
	}
}

func runConfig() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cfg)
	}
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}
