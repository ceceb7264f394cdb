package timeline

import "github.com/tobert/traceview/internal/model"

// Passes reports whether span satisfies all four filters in cfg: the
// duration range, the start time range and the service and operation
// substrings.
func Passes(span *model.Span, cfg *ViewerConfig) bool {
	if span.Duration < cfg.MinDurationFilter || span.Duration > cfg.MaxDurationFilter {
		return false
	}
	if span.StartTime < cfg.MinTimeFilter || span.StartTime > cfg.MaxTimeFilter {
		return false
	}
	if !ContainsFold(span.ServiceName, cfg.ServiceFilter) {
		return false
	}
	return ContainsFold(span.OperationName, cfg.OperationFilter)
}
