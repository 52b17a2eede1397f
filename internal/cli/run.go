package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Yurzi/cirno/internal/inputlist"
	"github.com/Yurzi/cirno/internal/monitor"
	"github.com/Yurzi/cirno/internal/procprobe"
	"github.com/Yurzi/cirno/internal/rundir"
	"github.com/Yurzi/cirno/internal/scheduler"
	"github.com/Yurzi/cirno/internal/types"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <input_list>",
	Short: "Run every command in input_list under the scheduler",
	Long: `Run reads input_list, a file of one shell command per line, and runs
each line as a child process under the scheduler. Concurrency is
bounded by --workers (soft cap, health-gated) and --force-workers (a
floor admitted unconditionally). Tasks exceeding --timeout seconds
enter a graduated shutdown: repeated SIGALRM nudges, then SIGINT and
SIGALRM once --timeout-wait seconds have passed, then SIGKILL on the
next tick. A final report is written to
<run-dir>/cirno_task_pair.log.

Example usage:
  cirno run jobs.txt --workers 4
  cirno run jobs.txt --workers 8 --force-workers 2 --timeout 7200
  cirno run jobs.txt --workers 4 --with-gpu --gpu-mem-thres 0.5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd, args[0])
	},
	DisableFlagsInUseLine: true,
}

func init() {
	runCmd.Flags().IntP("workers", "w", 0, "soft concurrency cap (required)")
	runCmd.Flags().IntP("force-workers", "f", types.DefaultForceWorkers, "concurrency floor, bypassing health checks")
	runCmd.Flags().Float64P("timeout", "t", -1.0, "per-task seconds; <= 0 disables")
	runCmd.Flags().Float64("timeout-wait", types.DefaultTimeoutWait, "graceful-shutdown seconds after timeout")
	runCmd.Flags().Float64("tick-rate", types.DefaultTickRate, "scheduler loop frequency in Hz")
	runCmd.Flags().Float64("high-mem-thres", types.DefaultHighMemThreshold, "fraction of total RAM; Bad above this")
	runCmd.Flags().Float64("low-mem-thres", types.DefaultLowMemThreshold, "fraction of total RAM; Health at or below this")
	runCmd.Flags().Int64P("per-task-mem", "p", int64(types.DefaultPerTaskMem), "bytes; per-task memory floor")
	runCmd.Flags().Int64P("reversed-mem", "r", 0, "bytes reserved from the high threshold")
	runCmd.Flags().Float64P("load-avg-thres", "l", types.DefaultLoadAvgThreshold, "per-CPU 5-minute load average threshold")
	runCmd.Flags().StringP("run-dir", "d", types.DefaultRunDir, "runtime and log directory")
	runCmd.Flags().Bool("with-gpu", false, "enable the GPU admission term")
	runCmd.Flags().Float64("gpu-mem-thres", types.DefaultGPUMemThreshold, "per-card free-memory fraction threshold")
	runCmd.Flags().Bool("with-task-name", false, "treat the first whitespace token of each line as the task name")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, inputListPath string) error {
	bindAllFlags()
	cfg := buildConfig(inputListPath)
	if cfg.Workers <= 0 {
		return fmt.Errorf("cli: --workers is required and must be positive")
	}

	dir, err := rundir.Ensure(cfg.RunDir)
	if err != nil {
		return err
	}

	printRunHeader(cfg)

	f, err := os.Open(cfg.InputList)
	if err != nil {
		return fmt.Errorf("cli: open input list: %w", err)
	}
	entries, err := inputlist.Parse(f, cfg.WithTaskName)
	f.Close()
	if err != nil {
		return err
	}

	total, err := monitor.TotalMemory()
	if err != nil {
		return fmt.Errorf("cli: read total memory: %w", err)
	}

	mon, err := monitor.New(monitor.Config{
		HighMemFrac:  cfg.HighMemThreshold,
		LowMemFrac:   cfg.LowMemThreshold,
		PerTaskMem:   cfg.PerTaskMem,
		ReservedMem:  cfg.ReservedMem,
		LoadAvgThres: cfg.LoadAvgThreshold,
		WithGPU:      cfg.WithGPU,
		GPUMemThres:  cfg.GPUMemThresh,
	}, total, os.Getpid(), procprobe.OSProber{})
	if err != nil {
		return fmt.Errorf("cli: construct monitor: %w", err)
	}

	stop := &scheduler.StopFlag{}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigCh {
			stop.Set()
		}
	}()
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
	}()

	sched := scheduler.New(scheduler.Config{
		MaxWorkers:   cfg.Workers,
		ForceWorkers: cfg.ForceWorkers,
		Timeout:      cfg.Timeout,
		TimeoutWait:  cfg.TimeoutWait,
		TickTime:     cfg.TickTime(),
	}, mon, dir, stop, os.Getpid())
	sched.Submit(entries)

	if err := sched.Run(); err != nil {
		return fmt.Errorf("cli: scheduler: %w", err)
	}

	snap := sched.Snapshot()
	order := []string{"Waiting", "Running", "Timeout", "Killed", "Exited"}
	counts := map[string]int{
		"Waiting": snap.Waiting,
		"Running": snap.Running,
		"Timeout": snap.Timeout,
		"Killed":  snap.ForceStop,
		"Exited":  snap.Exited,
	}
	fmt.Print(DrawPoolBox("final pool state", order, counts))
	sched.PrintSummary()
	return nil
}

// printRunHeader prints the run banner before the scheduler starts,
// giving the operator a glance at host and concurrency bounds.
func printRunHeader(cfg *types.Config) {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	fmt.Println(FormatHeader("cirno"))
	fmt.Printf("%s %s\n", FormatDim("host:"), FormatHost(host))
	fmt.Printf("%s %s\n", FormatDim("input:"), cfg.InputList)
	fmt.Printf("%s %s  %s %s\n", FormatDim("workers:"), FormatMetric(cfg.Workers), FormatDim("force-workers:"), FormatMetric(cfg.ForceWorkers))
}

func durationFromSeconds(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
