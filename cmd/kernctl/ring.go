package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kernkit/kern"
)

var (
	ringPolicy string
	ringPop    int
)

func init() {
	cmd := newRingCmd()
	cmd.Flags().StringVar(&ringPolicy, "policy", "", "Overflow policy override (overwrite, reject)")
	cmd.Flags().IntVar(&ringPop, "pop", -1, "Characters to read back (-1 for all)")
	rootCmd.AddCommand(cmd)
}

func newRingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ring <keys>",
		Short: "Type keys into the keyboard ring buffer and read them back",
		Long: `The ring command types the given text through the keyboard interrupt into
the 16-byte keyboard ring buffer, then pops characters back out. Text longer
than the buffer shows the overflow policy at work.

Example:
  kernctl ring hello
  kernctl ring "the quick brown fox" --policy reject
  kernctl ring abc --pop 1 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRing(args)
		},
	}
}

// RingReport is the ring command output.
type RingReport struct {
	Policy    string `json:"policy"`
	Typed     int    `json:"typed"`
	Read      string `json:"read"`
	Remaining int    `json:"remaining"`
	Overruns  uint64 `json:"overruns"`
	Dropped   uint64 `json:"dropped"`
}

func runRing(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if ringPolicy != "" {
		cfg.Keyboard.Overflow = ringPolicy
	}
	k, err := kern.New(cfg)
	if err != nil {
		return err
	}
	defer k.Close()

	report := exerciseRing(k, args[0], ringPop)
	if jsonOut {
		return printJSON(report)
	}
	printInfo("typed %d keys, read %q\n", report.Typed, report.Read)
	printInfo("remaining %d, overruns %d, dropped %d (policy %s)\n",
		report.Remaining, report.Overruns, report.Dropped, report.Policy)
	return nil
}

func exerciseRing(k *kern.Kernel, keys string, pop int) RingReport {
	k.Type(keys)

	var sb strings.Builder
	for pop != 0 {
		c, ok := k.Keyboard.PopFront()
		if !ok {
			break
		}
		sb.WriteByte(c)
		pop--
	}
	return RingReport{
		Policy:    k.Config().Keyboard.Overflow,
		Typed:     len(keys),
		Read:      sb.String(),
		Remaining: k.Keyboard.Len(),
		Overruns:  k.Keyboard.Overruns(),
		Dropped:   k.KeysDropped(),
	}
}
