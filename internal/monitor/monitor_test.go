package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/Yurzi/cirno/internal/procprobe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	tree []procprobe.Process
	rss  map[int]uint64
}

func (f *fakeProber) DescendantTree(root int) ([]procprobe.Process, error) {
	return f.tree, nil
}

func (f *fakeProber) ReadResidentBytes(pid int) (uint64, error) {
	return f.rss[pid], nil
}

func (f *fakeProber) IsAlive(p procprobe.Process) bool {
	return true
}

const gib = uint64(1) << 30

func newTestMonitor(t *testing.T, cfg Config, total uint64, prober procprobe.Prober) *Monitor {
	t.Helper()
	m, err := New(cfg, total, 1, prober)
	require.NoError(t, err)
	return m
}

func TestNew_DerivesAbsoluteThresholds(t *testing.T) {
	cfg := Config{HighMemFrac: 0.9, LowMemFrac: 0.7, ReservedMem: 0}
	m := newTestMonitor(t, cfg, 100*gib, &fakeProber{})

	assert.Equal(t, uint64(90*gib), m.high)
	assert.Equal(t, uint64(70*gib), m.low)
}

func TestNew_ReservedMemCapsHigh(t *testing.T) {
	cfg := Config{HighMemFrac: 0.95, LowMemFrac: 0.7, ReservedMem: 10 * gib}
	m := newTestMonitor(t, cfg, 100*gib, &fakeProber{})

	assert.Equal(t, uint64(90*gib), m.high)
}

func TestNew_LowNeverExceedsHigh(t *testing.T) {
	cfg := Config{HighMemFrac: 0.5, LowMemFrac: 0.9, ReservedMem: 0}
	m := newTestMonitor(t, cfg, 100*gib, &fakeProber{})

	assert.Equal(t, m.high, m.low)
}

func TestIsOK_StructureNoGPU(t *testing.T) {
	cfg := Config{
		HighMemFrac:  0.9,
		LowMemFrac:   0.7,
		PerTaskMem:   4 * gib,
		LoadAvgThres: 0.8,
	}
	prober := &fakeProber{
		tree: []procprobe.Process{{Pid: 1}},
		rss:  map[int]uint64{1: gib},
	}
	m := newTestMonitor(t, cfg, 64*gib, prober)

	state, err := m.IsOK(1)
	require.NoError(t, err)
	assert.Contains(t, []HealthState{Health, Normal, Bad}, state)
}

func TestIsOK_ZeroRunningCountDoesNotDivideByZero(t *testing.T) {
	cfg := Config{HighMemFrac: 0.9, LowMemFrac: 0.7, PerTaskMem: 4 * gib}
	m := newTestMonitor(t, cfg, 64*gib, &fakeProber{})

	state, err := m.IsOK(0)
	require.NoError(t, err)
	assert.Contains(t, []HealthState{Health, Normal, Bad}, state)
}

// fakeGPUProvider lets tests drive Monitor's GPU downgrade rule without
// nvidia-smi, which New's --with-gpu startup probe would otherwise
// require and which can't report a controlled free-memory fraction.
type fakeGPUProvider struct {
	cards []GPUCard
	err   error
}

func (f fakeGPUProvider) Query(ctx context.Context) ([]GPUCard, error) {
	return f.cards, f.err
}

func TestIsOK_GPUBelowThresholdDowngradesHealthToNormal(t *testing.T) {
	// Generous thresholds against a large total so the memory/load terms
	// alone would classify Health, isolating the GPU rule.
	cfg := Config{HighMemFrac: 0.99, LowMemFrac: 0.99, PerTaskMem: 1, LoadAvgThres: 100, GPUMemThres: 0.5}
	m := newTestMonitor(t, cfg, 1<<40, &fakeProber{})
	m.SetGPUProvider(fakeGPUProvider{cards: []GPUCard{{Index: 0, Total: 1000, Free: 10}}}) // 1% free

	state, err := m.IsOK(0)
	require.NoError(t, err)
	assert.Equal(t, Normal, state, "a free-memory fraction below gpu-mem-thres downgrades Health to Normal")
}

func TestIsOK_GPUAboveThresholdStaysHealth(t *testing.T) {
	cfg := Config{HighMemFrac: 0.99, LowMemFrac: 0.99, PerTaskMem: 1, LoadAvgThres: 100, GPUMemThres: 0.5}
	m := newTestMonitor(t, cfg, 1<<40, &fakeProber{})
	m.SetGPUProvider(fakeGPUProvider{cards: []GPUCard{{Index: 0, Total: 1000, Free: 900}}}) // 90% free

	state, err := m.IsOK(0)
	require.NoError(t, err)
	assert.Equal(t, Health, state, "a free-memory fraction at or above gpu-mem-thres leaves Health untouched")
}

func TestIsOK_GPUQueryErrorDowngradesHealthToNormal(t *testing.T) {
	cfg := Config{HighMemFrac: 0.99, LowMemFrac: 0.99, PerTaskMem: 1, LoadAvgThres: 100}
	m := newTestMonitor(t, cfg, 1<<40, &fakeProber{})
	m.SetGPUProvider(fakeGPUProvider{err: errors.New("nvidia-smi: device unavailable")})

	state, err := m.IsOK(0)
	require.NoError(t, err, "a failed GPU probe downgrades rather than propagating an error")
	assert.Equal(t, Normal, state)
}

func TestHealthState_String(t *testing.T) {
	assert.Equal(t, "Health", Health.String())
	assert.Equal(t, "Normal", Normal.String())
	assert.Equal(t, "Bad", Bad.String())
}

func TestNvidiaProvider_Query(t *testing.T) {
	if testing.Short() {
		t.Skip("depends on nvidia-smi being present on the host")
	}
	p := NewNvidiaProvider()
	if _, err := p.Query(context.Background()); err != nil {
		t.Skip("no nvidia-smi available in this environment")
	}
}
