package observability

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats сводка о процессе редактора
type ProcessStats struct {
	Uptime     time.Duration
	RSSMB      float64
	HeapMB     float64
	CPUPercent float64
	Goroutines int
	NumGC      uint32
}

// ProcessMonitor снимает статистику текущего процесса
type ProcessMonitor struct {
	startTime time.Time
	proc      *process.Process
}

func NewProcessMonitor() (*ProcessMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("ошибка доступа к процессу: %w", err)
	}
	return &ProcessMonitor{startTime: time.Now(), proc: proc}, nil
}

// Snapshot возвращает текущую статистику. Ошибки gopsutil не фатальны:
// недоступные поля остаются нулевыми.
func (pm *ProcessMonitor) Snapshot() ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s := ProcessStats{
		Uptime:     time.Since(pm.startTime),
		HeapMB:     float64(m.HeapAlloc) / 1024 / 1024,
		Goroutines: runtime.NumGoroutine(),
		NumGC:      m.NumGC,
	}

	if mem, err := pm.proc.MemoryInfo(); err == nil {
		s.RSSMB = float64(mem.RSS) / 1024 / 1024
	}

	if cpuPercent, err := pm.proc.CPUPercent(); err == nil {
		s.CPUPercent = cpuPercent
	} else if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		// Если не удалось получить метрику процесса, берём системную
		s.CPUPercent = percents[0]
	}

	return s
}

// FormatUptime форматирует длительность работы
func FormatUptime(uptime time.Duration) string {
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}
