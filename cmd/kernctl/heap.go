package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kernkit/kern"
	"github.com/joshuapare/kernkit/kern/alloc"
)

var (
	heapAllocs string
	heapFrees  string
)

func init() {
	cmd := newHeapCmd()
	cmd.Flags().StringVar(&heapAllocs, "alloc", "64,128,32", "Comma-separated allocation sizes in bytes")
	cmd.Flags().StringVar(&heapFrees, "free", "", "Comma-separated indexes (into --alloc) to free afterwards")
	rootCmd.AddCommand(cmd)
}

func newHeapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "heap",
		Short: "Exercise the heap allocator and dump the free list",
		Long: `The heap command allocates the given sizes from a fresh heap, frees the
selected ones, and prints every allocation, the free list and the allocator
statistics.

Example:
  kernctl heap
  kernctl heap --alloc 16,16,16 --free 0,2
  kernctl heap --alloc 100000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeap()
		},
	}
}

// HeapAllocation is one --alloc entry.
type HeapAllocation struct {
	Size  int    `json:"size"`
	Addr  string `json:"addr,omitempty"`
	Freed bool   `json:"freed,omitempty"`
	Error string `json:"error,omitempty"`
}

// HeapReport is the heap command output.
type HeapReport struct {
	Base        string           `json:"base"`
	Size        int              `json:"size"`
	Allocations []HeapAllocation `json:"allocations"`
	FreeList    []HeapBlock      `json:"freeList"`
	Stats       alloc.Stats      `json:"stats"`
}

// HeapBlock is a free block.
type HeapBlock struct {
	Addr  string `json:"addr"`
	Bytes int    `json:"bytes"`
}

func runHeap() error {
	sizes, err := parseInts(heapAllocs)
	if err != nil {
		return fmt.Errorf("bad --alloc: %w", err)
	}
	frees, err := parseInts(heapFrees)
	if err != nil {
		return fmt.Errorf("bad --free: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	k, err := kern.New(cfg)
	if err != nil {
		return err
	}
	defer k.Close()

	report, err := exerciseHeap(k.Alloc, sizes, frees)
	if err != nil {
		return err
	}
	report.Size = cfg.Heap.Size

	if jsonOut {
		return printJSON(report)
	}
	printInfo("heap %s+%x\n", report.Base, report.Size)
	for i, a := range report.Allocations {
		switch {
		case a.Error != "":
			printInfo("  [%d] alloc %d: %s\n", i, a.Size, a.Error)
		case a.Freed:
			printInfo("  [%d] alloc %d -> %s (freed)\n", i, a.Size, a.Addr)
		default:
			printInfo("  [%d] alloc %d -> %s\n", i, a.Size, a.Addr)
		}
	}
	printInfo("free list:\n")
	for _, b := range report.FreeList {
		printInfo("  %s %d bytes\n", b.Addr, b.Bytes)
	}
	printInfo("%d/%d units free in %d blocks, %d splits, %d coalesces, %d failures\n",
		report.Stats.FreeUnits, report.Stats.TotalUnits, report.Stats.FreeBlockCt,
		report.Stats.Splits, report.Stats.Coalesces, report.Stats.Failures)
	return nil
}

func exerciseHeap(a *alloc.Allocator, sizes, frees []int) (*HeapReport, error) {
	report := &HeapReport{Base: fmt.Sprintf("0x%x", a.Base())}
	addrs := make([]alloc.Addr, len(sizes))
	for i, size := range sizes {
		entry := HeapAllocation{Size: size}
		addr, err := a.Alloc(size)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Addr = fmt.Sprintf("0x%x", addr)
			addrs[i] = addr
		}
		report.Allocations = append(report.Allocations, entry)
	}

	for _, i := range frees {
		if i < 0 || i >= len(sizes) {
			return nil, fmt.Errorf("--free index %d out of range [0, %d)", i, len(sizes))
		}
		if addrs[i] == alloc.Null || report.Allocations[i].Freed {
			continue
		}
		if err := a.Free(addrs[i]); err != nil {
			return nil, fmt.Errorf("failed to free [%d]: %w", i, err)
		}
		report.Allocations[i].Freed = true
	}

	blocks, err := a.FreeBlocks()
	if err != nil {
		return nil, err
	}
	for _, b := range blocks {
		report.FreeList = append(report.FreeList, HeapBlock{Addr: fmt.Sprintf("0x%x", b.Addr), Bytes: b.Bytes()})
	}
	report.Stats, err = a.Stats()
	if err != nil {
		return nil, err
	}
	return report, nil
}

func parseInts(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(f), 0, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, int(n))
	}
	return out, nil
}
