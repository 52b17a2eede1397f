package monitor

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// GPUCard is one row of nvidia-smi's CSV output.
type GPUCard struct {
	Index int
	Name  string
	Total uint64 // MiB
	Free  uint64 // MiB
	Used  uint64 // MiB
}

// GPUProvider abstracts the vendor probe so a future AMD provider (an
// fdinfo-based sampler, in the style of the wider pack's AMD tooling)
// has an interface to implement without touching Monitor.
type GPUProvider interface {
	Query(ctx context.Context) ([]GPUCard, error)
}

// NvidiaProvider queries nvidia-smi for per-card memory totals.
type NvidiaProvider struct{}

// NewNvidiaProvider constructs the only GPU provider cirno ships today.
func NewNvidiaProvider() *NvidiaProvider {
	return &NvidiaProvider{}
}

// Query invokes nvidia-smi and parses its CSV output.
func (n *NvidiaProvider) Query(ctx context.Context) ([]GPUCard, error) {
	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=index,gpu_name,memory.total,memory.free,memory.used",
		"--format=csv,noheader,nounits")

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("monitor: nvidia-smi query failed: %w", err)
	}

	var cards []GPUCard
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 5 {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		index, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		total, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			continue
		}
		free, err := strconv.ParseUint(fields[3], 10, 64)
		if err != nil {
			continue
		}
		used, err := strconv.ParseUint(fields[4], 10, 64)
		if err != nil {
			continue
		}

		cards = append(cards, GPUCard{
			Index: index,
			Name:  fields[1],
			Total: total,
			Free:  free,
			Used:  used,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}
