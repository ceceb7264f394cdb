package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tobert/traceview/internal/model"
	"github.com/tobert/traceview/internal/timeline"
)

// CollectServiceStats counts spans and error spans per service across
// traces, busiest first.
func CollectServiceStats(traces []model.Trace) []ServiceStats {
	byName := make(map[string]*ServiceStats)
	var order []string
	for ti := range traces {
		for si := range traces[ti].Spans {
			s := &traces[ti].Spans[si]
			st, ok := byName[s.ServiceName]
			if !ok {
				st = &ServiceStats{Name: s.ServiceName}
				byName[s.ServiceName] = st
				order = append(order, s.ServiceName)
			}
			st.SpanCount++
			if isError(s) {
				st.ErrorCount++
			}
		}
	}

	out := make([]ServiceStats, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SpanCount > out[j].SpanCount })
	return out
}

// ServiceSummary renders a horizontal bar chart of services.
// Width controls total line width; 0 uses default (80).
func ServiceSummary(services []ServiceStats, width int) string {
	if len(services) == 0 {
		return ""
	}

	totalSpans := 0
	maxCount := 0
	maxNameLen := 0
	for _, s := range services {
		totalSpans += s.SpanCount
		maxCount = max(maxCount, s.SpanCount)
		maxNameLen = max(maxNameLen, len([]rune(s.Name)))
	}
	maxNameLen = min(maxNameLen, 20)

	barBudget := 20
	if width > 0 {
		barBudget = min(max(width-maxNameLen-30, 5), 40)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Services (%d, %d spans)\n", len(services), totalSpans)

	for _, s := range services {
		name := []rune(s.Name)
		if len(name) > maxNameLen {
			name = append(name[:maxNameLen-1], '…')
		}

		barLen := 0
		if maxCount > 0 {
			barLen = s.SpanCount * barBudget / maxCount
		}
		if barLen < 1 && s.SpanCount > 0 {
			barLen = 1
		}

		errStr := ""
		if s.ErrorCount > 0 {
			errStr = fmt.Sprintf(" (%d errors)", s.ErrorCount)
		}

		fmt.Fprintf(&b, "  %-*s  %s%s  %d spans%s\n", maxNameLen, string(name),
			strings.Repeat("#", barLen), strings.Repeat(" ", barBudget-barLen), s.SpanCount, errStr)
	}

	return b.String()
}

// TraceList renders a compact table of loaded traces with their index,
// span count and duration.
func TraceList(traces []model.Trace, unit timeline.TimeUnit) string {
	if len(traces) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Traces (%d)\n", len(traces))
	for i := range traces {
		tr := &traces[i]
		icon := "·"
		for si := range tr.Spans {
			if isError(&tr.Spans[si]) {
				icon = "✗"
				break
			}
		}
		label := []rune(tr.TraceName)
		if len(label) > 40 {
			label = append(label[:39], '…')
		}
		fmt.Fprintf(&b, "  %s %3d  %-40s  %5d spans  %10s\n", icon, i, string(label), tr.TotalSpans,
			timeline.FormatTime(tr.TotalDuration, unit))
	}
	return b.String()
}

// StoreOverview renders the live span buffer fill level.
func StoreOverview(spans, capacity, traces int) string {
	barWidth := 20
	filled := 0
	if capacity > 0 {
		filled = min(spans*barWidth/capacity, barWidth)
	}
	bar := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)
	return fmt.Sprintf("Span buffer [%s]  %s / %s spans, %s traces\n",
		bar, formatCount(spans), formatCount(capacity), formatCount(traces))
}

func formatCount(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1_000_000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1_000_000, (n%1_000_000)/1000, n%1000)
}
