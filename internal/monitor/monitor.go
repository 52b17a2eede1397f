// Package monitor samples host memory, load average, and optional GPU
// free-memory fractions, and classifies the host into Health/Normal/Bad —
// the admission oracle the Scheduler consults before spawning a new Task.
//
// System-wide memory and load sampling go through
// github.com/shirou/gopsutil/v4, the same library the wider example pack
// (amdgputop-web, straggler-shield, rawwerks-srps-arch) reaches for; this
// is deliberately different from internal/procprobe, which hand-parses
// individual /proc/<pid> entries: pid-reuse-proof identity needs exact
// control over that per-process parsing, not system aggregates.
package monitor

import (
	"context"
	"fmt"
	"runtime"

	"github.com/Yurzi/cirno/internal/procprobe"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// HealthState is the three-way admission verdict Monitor.IsOK returns.
type HealthState int

const (
	Health HealthState = iota
	Normal
	Bad
)

func (h HealthState) String() string {
	switch h {
	case Health:
		return "Health"
	case Normal:
		return "Normal"
	case Bad:
		return "Bad"
	default:
		return "Unknown"
	}
}

// Config is the subset of CLI flags Monitor needs, kept separate from
// types.Config so this package has no import-cycle dependency on cli.
type Config struct {
	HighMemFrac  float64
	LowMemFrac   float64
	PerTaskMem   uint64
	ReservedMem  uint64
	LoadAvgThres float64
	WithGPU      bool
	GPUMemThres  float64
}

// Monitor holds the absolute thresholds derived once at construction and
// the live state needed to classify host health on every tick.
type Monitor struct {
	cfg Config

	high uint64 // absolute byte threshold; predicted > high => Bad
	low  uint64 // absolute byte threshold; predicted <= low => Health

	selfPid int
	prober  procprobe.Prober

	gpu GPUProvider
}

// New constructs a Monitor. total is the host's total physical memory in
// bytes; selfPid is the supervisor's own pid. Its descendant tree
// transitively includes every Task's subtree (Tasks are spawned as child
// processes), so summing resident memory over selfPid's tree alone gives
// "self plus all Tasks' subtrees".
func New(cfg Config, total uint64, selfPid int, prober procprobe.Prober) (*Monitor, error) {
	high := uint64(cfg.HighMemFrac * float64(total))
	if cfg.ReservedMem < total && high > total-cfg.ReservedMem {
		high = total - cfg.ReservedMem
	}
	low := uint64(cfg.LowMemFrac * float64(total))
	if low > high {
		low = high
	}

	var gpu GPUProvider
	if cfg.WithGPU {
		gpu = NewNvidiaProvider()
		if _, err := gpu.Query(context.Background()); err != nil {
			panic(fmt.Sprintf("monitor: --with-gpu was requested but the GPU probe failed: %v", err))
		}
	}

	return &Monitor{
		cfg:     cfg,
		high:    high,
		low:     low,
		selfPid: selfPid,
		prober:  prober,
		gpu:     gpu,
	}, nil
}

// SetPerTaskMem overrides the configured per-task memory floor at
// runtime, used by the scheduler's control-file reconfiguration
// (control file key "per-task-mem").
func (m *Monitor) SetPerTaskMem(bytes uint64) {
	m.cfg.PerTaskMem = bytes
}

// SetGPUProvider overrides the GPU probe Monitor consults during IsOK,
// independent of cfg.WithGPU. This is the seam an alternate vendor
// provider (or a test double, since nvidia-smi cannot be faked) plugs
// into without going through New's --with-gpu startup probe.
func (m *Monitor) SetGPUProvider(p GPUProvider) {
	m.gpu = p
}

// TotalMemory reads the host's total physical memory via gopsutil. A
// thin wrapper so callers (internal/cli) don't import gopsutil directly.
func TotalMemory() (uint64, error) {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("monitor: read total memory: %w", err)
	}
	return stat.Total, nil
}

// IsOK implements the five-step admission algorithm.
func (m *Monitor) IsOK(runningCount int) (HealthState, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Bad, fmt.Errorf("monitor: sample memory: %w", err)
	}

	avg, err := load.Avg()
	if err != nil {
		return Bad, fmt.Errorf("monitor: sample load average: %w", err)
	}
	cpuCount := runtime.NumCPU()
	if cpuCount < 1 {
		cpuCount = 1
	}
	perCPULoad := avg.Load5 / float64(cpuCount)
	if perCPULoad > 2*m.cfg.LoadAvgThres {
		return Bad, nil
	}

	observed, err := m.observedPerTaskMem(runningCount)
	if err != nil {
		return Bad, err
	}
	perTask := m.cfg.PerTaskMem
	if observed > perTask {
		perTask = observed
	}

	predicted := vm.Used + perTask
	var verdict HealthState
	switch {
	case predicted <= m.low:
		verdict = Health
	case predicted > m.high:
		verdict = Bad
	default:
		verdict = Normal
	}

	if verdict == Health && m.gpu != nil {
		ok, err := m.gpuOK(context.Background())
		if err != nil || !ok {
			verdict = Normal
		}
	}

	return verdict, nil
}

// observedPerTaskMem sums resident memory over the supervisor's own
// descendant tree (self plus every Task's subtree) and divides by
// runningCount.
func (m *Monitor) observedPerTaskMem(runningCount int) (uint64, error) {
	total, err := procprobe.TreeResidentBytes(m.prober, m.selfPid)
	if err != nil {
		return 0, fmt.Errorf("monitor: sum descendant memory: %w", err)
	}
	if runningCount == 0 {
		return 0, nil
	}
	return total / uint64(runningCount), nil
}

func (m *Monitor) gpuOK(ctx context.Context) (bool, error) {
	cards, err := m.gpu.Query(ctx)
	if err != nil {
		return false, err
	}
	for _, c := range cards {
		if c.Total == 0 {
			continue
		}
		if float64(c.Free)/float64(c.Total) >= m.cfg.GPUMemThres {
			return true, nil
		}
	}
	return false, nil
}
