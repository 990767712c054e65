package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// VersionInfo is the version command's report.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Built     string `json:"built"`
	GoVersion string `json:"goVersion"`
	Heap      string `json:"heap"`
	Stacks    string `json:"stacks"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information and the boot memory layout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVersion()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	info := VersionInfo{Version: version, Commit: commit, Built: date}
	// ldflags win; go install builds fall back to the embedded vcs stamp
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "none" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.Built == "unknown" {
					info.Built = s.Value
				}
			}
		}
	}
	info.Heap = fmt.Sprintf("0x%x+0x%x", cfg.Heap.Base, cfg.Heap.Size)
	slabs := uint32(0)
	if cfg.Stack.SlabSize > 0 {
		slabs = (cfg.Stack.Top - cfg.Stack.Base) / cfg.Stack.SlabSize
	}
	info.Stacks = fmt.Sprintf("0x%x-0x%x (%d x 0x%x)",
		cfg.Stack.Base, cfg.Stack.Top, slabs, cfg.Stack.SlabSize)

	if jsonOut {
		return printJSON(info)
	}
	fmt.Printf("kernctl %s\n", info.Version)
	fmt.Printf("  commit: %s\n", info.Commit)
	fmt.Printf("  built: %s\n", info.Built)
	if info.GoVersion != "" {
		fmt.Printf("  go: %s\n", info.GoVersion)
	}
	fmt.Printf("  heap: %s\n", info.Heap)
	fmt.Printf("  stacks: %s\n", info.Stacks)
	return nil
}
