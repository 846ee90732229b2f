package collector

import (
	"context"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/vitalis-app/sentinel/internal/models"
)

// normalizedStatuses folds raw gopsutil process states into a small set.
var normalizedStatuses = map[string]string{
	"running":               "running",
	"sleeping":              "sleeping",
	"idle":                  "idle",
	"stopped":               "stopped",
	"zombie":                "zombie",
	"wait":                  "sleeping",
	"lock":                  "sleeping",
	"sleep":                 "sleeping",
	"disk-sleep":            "sleeping",
	"tracing-stop":          "stopped",
	"dead":                  "zombie",
	"wake-kill":             "sleeping",
	"waking":                "running",
	"parked":                "idle",
	"idle-interrupt":        "idle",
	"suspended":             "stopped",
	"uninterruptible-sleep": "sleeping",
}

// normalizeStatus maps a raw status. An empty status (common on Windows) is
// inferred from CPU activity.
func normalizeStatus(raw string, cpuPct float64) string {
	if raw != "" {
		key := strings.ToLower(strings.TrimSpace(raw))
		if mapped, ok := normalizedStatuses[key]; ok {
			return mapped
		}
		return key
	}

	if cpuPct > 0 {
		return "running"
	}
	return "idle"
}

// ProcessInspector lists the heaviest processes. It backs the
// analyze_top_processes suggestion attached to critical notifications.
type ProcessInspector struct {
	topN int
}

// NewProcessInspector creates an inspector returning at most topN processes.
func NewProcessInspector(topN int) *ProcessInspector {
	if topN <= 0 {
		topN = 5
	}
	return &ProcessInspector{topN: topN}
}

// TopProcesses returns the heaviest processes, ordered by CPU when by is
// "cpu" and by memory otherwise. Processes that cannot be inspected are
// skipped.
func (pi *ProcessInspector) TopProcesses(ctx context.Context, by string) ([]models.ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]models.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, _ := p.NameWithContext(ctx)
		cpuPct, _ := p.CPUPercentWithContext(ctx)
		memPct, _ := p.MemoryPercentWithContext(ctx)
		status, _ := p.StatusWithContext(ctx)

		rawStatus := ""
		if len(status) > 0 {
			rawStatus = status[0]
		}

		infos = append(infos, models.ProcessInfo{
			PID:    p.Pid,
			Name:   name,
			CPU:    cpuPct,
			Memory: float64(memPct),
			Status: normalizeStatus(rawStatus, cpuPct),
		})
	}

	rankProcesses(infos, by)
	if len(infos) > pi.topN {
		infos = infos[:pi.topN]
	}
	return infos, nil
}

func rankProcesses(infos []models.ProcessInfo, by string) {
	if by == "cpu" {
		sort.SliceStable(infos, func(i, j int) bool { return infos[i].CPU > infos[j].CPU })
		return
	}
	sort.SliceStable(infos, func(i, j int) bool { return infos[i].Memory > infos[j].Memory })
}
