package report

import (
	"strings"

	"fintrack/internal/alerts"
	"fintrack/internal/core"
)

// MaxLiveAlerts caps the backend alerts listed in one report.
const MaxLiveAlerts = 10

// LiveAlerts renders alerts reported by the backend. An empty list renders
// the same "no alerts" line as AlertsFallback; callers that want synthetic
// alerts instead use AlertsFallback directly.
func LiveAlerts(r core.DateRange, list []alerts.Alert) string {
	b := &builder{}
	b.add("%s", titleAlerts)
	b.period(r)

	n := 0
	for _, a := range list {
		line := liveAlertLine(a)
		if line == "" {
			continue
		}
		if n == MaxLiveAlerts {
			break
		}
		b.add("%d. %s", n+1, line)
		n++
	}
	if n == 0 {
		b.add("%s", MsgNoAlerts)
	}
	return b.String()
}

func liveAlertLine(a alerts.Alert) string {
	title, msg := a.Title(), a.Message()
	var parts []string
	if sev := a.Severity(); sev != "" {
		parts = append(parts, "["+strings.ToUpper(sev)+"]")
	}
	switch {
	case title != "" && msg != "":
		parts = append(parts, title+": "+msg)
	case title != "":
		parts = append(parts, title)
	case msg != "":
		parts = append(parts, msg)
	default:
		return ""
	}
	return strings.Join(parts, " ")
}
