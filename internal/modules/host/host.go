package host

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Status снимок состояния узла для health-проверки.
type Status struct {
	Hostname    string  `json:"hostname"`
	Platform    string  `json:"platform"`
	PlatformVer string  `json:"platform_version"`
	Kernel      string  `json:"kernel"`
	UptimeSec   uint64  `json:"uptime_sec"`
	BootTime    string  `json:"boot_time"`
	MemTotal    uint64  `json:"mem_total"`
	MemUsed     uint64  `json:"mem_used"`
	MemUsedPct  float64 `json:"mem_used_pct"`
	Load1       float64 `json:"load1"`
	Load5       float64 `json:"load5"`
	Load15      float64 `json:"load15"`
}

// Probe собирает базовые метрики узла через gopsutil.
type Probe struct{}

// NewProbe создает probe.
func NewProbe() *Probe { return &Probe{} }

// Status возвращает текущее состояние узла.
func (p *Probe) Status(ctx context.Context) (Status, error) {
	hInfo, err := host.InfoWithContext(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("host info: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("memory info: %w", err)
	}
	ld, err := load.AvgWithContext(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("load info: %w", err)
	}
	return Status{
		Hostname:    hInfo.Hostname,
		Platform:    hInfo.Platform,
		PlatformVer: hInfo.PlatformVersion,
		Kernel:      hInfo.KernelVersion,
		UptimeSec:   hInfo.Uptime,
		BootTime:    time.Unix(int64(hInfo.BootTime), 0).UTC().Format(time.RFC3339),
		MemTotal:    vm.Total,
		MemUsed:     vm.Used,
		MemUsedPct:  vm.UsedPercent,
		Load1:       ld.Load1,
		Load5:       ld.Load5,
		Load15:      ld.Load15,
	}, nil
}
