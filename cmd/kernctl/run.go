package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joshuapare/kernkit/kern"
	"github.com/joshuapare/kernkit/kern/alloc"
	"github.com/joshuapare/kernkit/kern/task"
	"github.com/joshuapare/kernkit/kern/tracing"
)

var (
	runWorkers   int
	runRounds    int
	runInput     string
	runTrace     bool
	runTraceFile string
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().IntVar(&runWorkers, "workers", 2, "Worker tasks to spawn next to the idle task")
	cmd.Flags().IntVar(&runRounds, "rounds", 3, "Yields per worker before it exits")
	cmd.Flags().StringVar(&runInput, "input", "", "Keys to type; a shell task reads them back as a line")
	cmd.Flags().BoolVar(&runTrace, "trace", false, "Export scheduler spans through OpenTelemetry")
	cmd.Flags().StringVar(&runTraceFile, "trace-file", "", "Write spans to this file instead of stderr")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Boot the kernel and run the scheduling demo",
		Long: `The run command boots the kernel as task 0, spawns an idle task and a
number of worker tasks, and yields until all of them have exited. The console
screen is printed afterwards, followed by scheduler and heap statistics.

Example:
  kernctl run
  kernctl run --workers 4 --rounds 2
  kernctl run --input "hello\n"
  kernctl run --trace --trace-file spans.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun()
		},
	}
}

// RunReport summarizes one boot.
type RunReport struct {
	BootID   string      `json:"bootId"`
	Tasks    int         `json:"tasks"`
	Switches int         `json:"switches"`
	Order    []task.ID   `json:"order"`
	Line     string      `json:"line,omitempty"`
	Screen   []string    `json:"screen"`
	Heap     alloc.Stats `json:"heap"`
}

func runRun() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runWorkers < 0 || runRounds < 0 {
		return fmt.Errorf("--workers and --rounds must be >= 0")
	}

	bootID := uuid.New()
	opts := []kern.Option{kern.WithBootID(bootID)}
	var shutdown func() error
	if runTrace {
		obs, stop, err := newTraceObserver(bootID.String())
		if err != nil {
			return err
		}
		opts = append(opts, kern.WithObserver(obs))
		shutdown = stop
		defer func() {
			if shutdown != nil {
				_ = shutdown()
			}
		}()
	}

	k, err := kern.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer k.Close()

	report, err := demo(k, runWorkers, runRounds, unescape(runInput))
	if err != nil {
		return err
	}
	if shutdown != nil {
		stop := shutdown
		shutdown = nil
		if err := stop(); err != nil {
			return fmt.Errorf("failed to flush trace: %w", err)
		}
	}

	if jsonOut {
		return printJSON(report)
	}
	printInfo("%s\n", k.Console.Screen().String())
	printInfo("\nboot %s: %d tasks, %d switches\n", report.BootID, report.Tasks, report.Switches)
	printInfo("dispatch order: %v\n", report.Order)
	printVerbose("heap: %d/%d units free in %d blocks, %d allocs, %d frees\n",
		report.Heap.FreeUnits, report.Heap.TotalUnits, report.Heap.FreeBlockCt,
		report.Heap.AllocCalls, report.Heap.FreeCalls)
	return nil
}

// demo runs the init/idle sequence plus workers and an optional shell task.
func demo(k *kern.Kernel, workers, rounds int, input string) (*RunReport, error) {
	report := &RunReport{BootID: k.BootID.String()}
	con := k.Console

	record := func() {
		id, _ := k.Sched.CurrentID()
		report.Order = append(report.Order, id)
	}

	var spawnErr error
	spawn := func(fn func()) {
		if spawnErr != nil {
			return
		}
		if _, err := k.Spawn(fn); err != nil {
			spawnErr = err
			return
		}
		report.Tasks++
	}

	err := k.Run(func(k *kern.Kernel) {
		con.Screen().Clear()
		con.Printf("stack @%x\n", k.Machine.StackPointer())

		spawn(func() {
			record()
			con.Printf("idle: running\n")
			con.Printf("idle: yielding\n")
			k.Yield()
			record()
			con.Printf("idle: exiting\n")
		})
		for w := 1; w <= workers; w++ {
			spawn(func() {
				for r := 0; r < rounds; r++ {
					record()
					id, _ := k.Sched.CurrentID()
					con.Printf("worker %d (task %d): round %d\n", w, id, r)
					k.Yield()
				}
			})
		}
		if input != "" {
			spawn(func() {
				record()
				line, err := con.ReadLine(64)
				if err != nil {
					con.Printf("shell: %v\n", err)
					return
				}
				report.Line = line
				con.Printf("shell: got %q\n", line)
			})
		}

		con.Printf("init: yielding\n")
		k.Yield()
		record()
		con.Printf("init: resumed\n")
		if input != "" {
			k.Type(input)
		}
	})
	if err != nil {
		return nil, err
	}
	if spawnErr != nil {
		return nil, fmt.Errorf("failed to spawn task: %w", spawnErr)
	}

	report.Switches = k.Machine.Switches()
	report.Screen = k.Console.Screen().Lines()
	for len(report.Screen) > 0 && report.Screen[len(report.Screen)-1] == "" {
		report.Screen = report.Screen[:len(report.Screen)-1]
	}
	report.Heap, err = k.Alloc.Stats()
	if err != nil {
		return nil, fmt.Errorf("failed to read heap stats: %w", err)
	}
	return report, nil
}

func newTraceObserver(bootID string) (*tracing.Observer, func() error, error) {
	var w io.Writer = os.Stderr
	var f *os.File
	if runTraceFile != "" {
		var err error
		f, err = os.Create(runTraceFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create trace file: %w", err)
		}
		w = f
	}
	tp, err := tracing.NewProvider(w, "kernctl", version, bootID)
	if err != nil {
		if f != nil {
			f.Close()
		}
		return nil, nil, err
	}
	obs := tracing.NewObserver(tp)
	stop := func() error {
		obs.Close()
		err := tp.Shutdown(context.Background())
		if f != nil {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}
		return err
	}
	return obs, stop, nil
}

// unescape turns the two-character sequence \n into a newline so --input
// can end a line from the shell.
func unescape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == 'n' {
			out = append(out, '\n')
			i++
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
