package system

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// HostStats is a point-in-time view of the machine and this process, used
// by the export performance report.
type HostStats struct {
	CPUs          int
	CPUPercent    float64
	MemTotal      uint64
	MemUsedPct    float64
	ProcessRSS    uint64
	ProcessCPUPct float64
}

// CollectHostStats samples CPU usage over window. Fields that cannot be read
// on this platform are left zero.
func CollectHostStats(ctx context.Context, window time.Duration) (HostStats, error) {
	var s HostStats

	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return s, fmt.Errorf("cpu count: %w", err)
	}
	s.CPUs = n

	if pct, err := cpu.PercentWithContext(ctx, window, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemTotal = vm.Total
		s.MemUsedPct = vm.UsedPercent
	}
	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
			s.ProcessRSS = mi.RSS
		}
		if pct, err := p.CPUPercentWithContext(ctx); err == nil {
			s.ProcessCPUPct = pct
		}
	}
	return s, nil
}

// String formats the stats for the performance report.
func (s HostStats) String() string {
	return fmt.Sprintf("CPUs: %d | CPU: %.1f%% | Mem: %.1f%% of %s | RSS: %s | Process CPU: %.1f%%",
		s.CPUs, s.CPUPercent, s.MemUsedPct, FormatBytes(s.MemTotal), FormatBytes(s.ProcessRSS), s.ProcessCPUPct)
}

// FormatBytes renders n with a binary unit.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
