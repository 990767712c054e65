package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunCommand(t *testing.T) {
	tests := []struct {
		name           string
		workers        int
		rounds         int
		input          string
		wantErr        bool
		wantContain    []string
		wantNotContain []string
	}{
		{
			name:    "idle only",
			workers: 0,
			rounds:  0,
			wantContain: []string{
				"stack @8fff0",
				"init: yielding",
				"idle: running",
				"idle: yielding",
				"init: resumed",
				"idle: exiting",
				"1 tasks",
			},
			wantNotContain: []string{"worker"},
		},
		{
			name:    "workers",
			workers: 2,
			rounds:  2,
			wantContain: []string{
				"worker 1 (task 2): round 0",
				"worker 2 (task 3): round 1",
				"3 tasks",
			},
		},
		{
			name:        "shell reads typed line",
			workers:     0,
			rounds:      0,
			input:       `hello\n`,
			wantContain: []string{`shell: got "hello"`},
		},
		{
			name:    "negative workers",
			workers: -1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			runWorkers = tt.workers
			runRounds = tt.rounds
			runInput = tt.input

			output, err := captureOutput(t, runRun)

			if (err != nil) != tt.wantErr {
				t.Errorf("runRun() error = %v, wantErr %v\nOutput: %s", err, tt.wantErr, output)
				return
			}
			assertContains(t, output, tt.wantContain)
			assertNotContains(t, output, tt.wantNotContain)
		})
	}
}

func TestRunDispatchOrder(t *testing.T) {
	resetFlags()
	jsonOut = true
	runWorkers = 1
	runRounds = 2

	output, err := captureOutput(t, runRun)
	if err != nil {
		t.Fatalf("runRun() error = %v", err)
	}

	var report RunReport
	assertJSON(t, output, &report)

	// idle, worker, root, then the exits drain in FIFO order
	want := []uint32{1, 2, 0, 1, 2}
	if len(report.Order) != len(want) {
		t.Fatalf("order = %v, want %v", report.Order, want)
	}
	for i := range want {
		if report.Order[i] != want[i] {
			t.Fatalf("order = %v, want %v", report.Order, want)
		}
	}
	if report.Tasks != 2 {
		t.Errorf("tasks = %d, want 2", report.Tasks)
	}
	if report.Heap.Failures != 0 {
		t.Errorf("heap failures = %d", report.Heap.Failures)
	}
}

func TestRunTraceFile(t *testing.T) {
	resetFlags()
	runWorkers = 1
	runRounds = 1
	runTrace = true
	runTraceFile = filepath.Join(t.TempDir(), "spans.json")

	if _, err := captureOutput(t, runRun); err != nil {
		t.Fatalf("runRun() error = %v", err)
	}

	data, err := os.ReadFile(runTraceFile)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	assertContains(t, string(data), []string{"task 1", "task 2", "dispatch", "kern.boot_id"})
}

func TestUnescape(t *testing.T) {
	if got := unescape(`a\nb\\`); got != "a\nb\\\\" {
		t.Errorf("unescape = %q", got)
	}
}
