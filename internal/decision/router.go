package decision

import "github.com/vitalis-app/sentinel/internal/models"

// Command identifiers understood by notification consumers.
const (
	CommandAnalyzeTopProcesses = "analyze_top_processes"
	CommandOpenAnalytics       = "open_analytics"
	CommandReduceLoad          = "reduce_load"
	CommandWatchTrend          = "watch_trend"
)

// Commands maps actions to the command identifiers attached to a
// notification. Actions without a command, such as notify, are skipped.
func Commands(actions []models.Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		switch a.Type {
		case models.ActionSuggestFix:
			out = append(out, CommandAnalyzeTopProcesses)
		case models.ActionAnalyze:
			out = append(out, CommandOpenAnalytics)
		case models.ActionPreventOverload:
			out = append(out, CommandReduceLoad)
		case models.ActionMonitorOverload:
			out = append(out, CommandWatchTrend)
		case models.ActionNotify:
		}
	}
	return out
}
