package health

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostSampler samples the local host with gopsutil.
type HostSampler struct {
	// Path is the filesystem measured for disk usage.
	Path string
	// Interval is the CPU sampling window.
	Interval time.Duration
}

func NewHostSampler() *HostSampler {
	return &HostSampler{Path: "/", Interval: 100 * time.Millisecond}
}

func (h *HostSampler) Sample(ctx context.Context) (Resources, error) {
	cpus, err := cpu.PercentWithContext(ctx, h.Interval, false)
	if err != nil {
		return Resources{}, fmt.Errorf("sample cpu: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Resources{}, fmt.Errorf("sample memory: %w", err)
	}
	usage, err := disk.UsageWithContext(ctx, h.Path)
	if err != nil {
		return Resources{}, fmt.Errorf("sample disk: %w", err)
	}

	var cpuPercent float64
	if len(cpus) > 0 {
		cpuPercent = cpus[0]
	}
	return Resources{
		CPUPercent:    cpuPercent,
		MemoryPercent: vm.UsedPercent,
		DiskPercent:   usage.UsedPercent,
	}, nil
}
