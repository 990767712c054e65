package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kernkit/internal/logger"
	"github.com/joshuapare/kernkit/kern"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "kernctl",
	Short: "Run and inspect the cooperative kernel substrate",
	Long: `kernctl boots the kernel substrate (heap allocator, ring buffer, lock and
round-robin task scheduler) on a simulated single-core machine. It can run the
scheduling demo, exercise the heap allocator and keyboard ring buffer, and print
the effective configuration.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger()
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Kernel config file (YAML)")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "Log kernel events to stderr at this level (debug, info, warn, error)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogger() {
	if logLevel == "" {
		return
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		printError("bad --log-level %q, using info\n", logLevel)
		level = slog.LevelInfo
	}
	logger.Init(logger.Options{Enabled: true, Writer: os.Stderr, Level: level, JSON: jsonOut})
}

// loadConfig returns the --config file, or the defaults.
func loadConfig() (*kern.Config, error) {
	if configPath == "" {
		return kern.DefaultConfig(), nil
	}
	printVerbose("Loading config: %s\n", configPath)
	return kern.LoadConfig(configPath)
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
