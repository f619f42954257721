package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"pairchat/observability"
)

// MonitoringWorker periodically logs coordinator counters together with the
// process's own RSS and CPU usage.
type MonitoringWorker struct {
	log      *slog.Logger
	metrics  *observability.Metrics
	interval time.Duration
}

func NewMonitoringWorker(log *slog.Logger, metrics *observability.Metrics, interval time.Duration) *MonitoringWorker {
	return &MonitoringWorker{log: log, metrics: metrics, interval: interval}
}

func (w *MonitoringWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping monitoring")
			return nil
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			attrs := []any{
				"rss_mb", rss / (1 << 20),
				"cpu_percent", cpu,
			}
			for key, value := range w.metrics.Snapshot() {
				attrs = append(attrs, key, value)
			}
			w.log.Info("Coordinator stats", attrs...)
		}
	}
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
