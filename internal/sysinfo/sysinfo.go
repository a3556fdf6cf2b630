// Package sysinfo collects host-level metrics for the operator info
// endpoint. These readings come from the OS, not the EC, so they bypass the
// hardware channel entirely.
package sysinfo

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Info is a snapshot of the host the server runs on.
type Info struct {
	Hostname      string  `json:"hostname"`
	OS            string  `json:"os"`
	Platform      string  `json:"platform"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
	Board         string  `json:"board,omitempty"`
	CPUCount      int     `json:"cpu_count"`
	CPUUsage      float64 `json:"cpu_usage_percent"`
	MemoryTotalMB uint64  `json:"memory_total_mb"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	MemoryUsage   float64 `json:"memory_usage_percent"`
}

// Collect gathers host, CPU and memory information.
func Collect(ctx context.Context) (*Info, error) {
	hostInfo, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, err
	}
	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Hostname:      hostInfo.Hostname,
		OS:            hostInfo.OS,
		Platform:      hostInfo.Platform,
		UptimeSeconds: hostInfo.Uptime,
		Board:         boardName(),
		CPUCount:      counts,
		MemoryTotalMB: memInfo.Total / (1024 * 1024),
		MemoryUsedMB:  memInfo.Used / (1024 * 1024),
		MemoryUsage:   memInfo.UsedPercent,
	}

	// Usage over an instant window; fine for a point-in-time status page.
	if usage, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(usage) > 0 {
		info.CPUUsage = usage[0]
	}

	return info, nil
}
