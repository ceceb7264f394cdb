package viz

import (
	"fmt"
	"strings"

	"github.com/tobert/traceview/internal/model"
	"github.com/tobert/traceview/internal/timeline"
)

const (
	defaultWidth    = 80
	defaultMaxSpans = 50
	defaultBarWidth = 20
)

// Waterfall renders an ASCII waterfall of one trace. Spans appear in the
// trace's start order with tree connectors derived from their depth.
func Waterfall(tr *model.Trace, opts Options) string {
	if tr == nil || len(tr.Spans) == 0 {
		return ""
	}
	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}
	maxSpans := opts.MaxSpans
	if maxSpans <= 0 {
		maxSpans = defaultMaxSpans
	}
	view := opts.View
	if !view.Valid() {
		view = timeline.FullView(tr.TotalDuration)
	}

	var spans []*model.Span
	for i := range tr.Spans {
		s := &tr.Spans[i]
		if opts.Filter != nil && !opts.Filter(s) {
			continue
		}
		spans = append(spans, s)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Trace %s (%d of %d spans, %s)\n", shortID(tr.TraceName), len(spans), tr.TotalSpans,
		timeline.FormatTime(tr.TotalDuration, opts.Unit))
	if len(spans) == 0 {
		b.WriteString("  (no spans match the current filters)\n")
		return b.String()
	}

	overflow := 0
	if len(spans) > maxSpans {
		overflow = len(spans) - maxSpans
		spans = spans[:maxSpans]
	}

	prefixes := treePrefixes(spans)

	maxDurErrLen := 0
	for _, s := range spans {
		n := len(timeline.FormatTime(s.Duration, opts.Unit))
		if isError(s) {
			n += len(" !! ERR")
		}
		maxDurErrLen = max(maxDurErrLen, n)
	}

	for i, s := range spans {
		renderSpanRow(&b, s, prefixes[i], view, width, maxDurErrLen, opts.Unit)
	}

	if overflow > 0 {
		fmt.Fprintf(&b, "  ... +%d more spans\n", overflow)
	}
	return b.String()
}

func shortID(name string) string {
	if len([]rune(name)) > 40 {
		return string([]rune(name)[:39]) + "…"
	}
	return name
}

type prefix struct {
	text string
	cols int
}

// treePrefixes computes box-drawing connectors from the depth sequence.
// A level stays open while a later span at that depth follows before any
// shallower one.
func treePrefixes(spans []*model.Span) []prefix {
	out := make([]prefix, len(spans))
	var open []bool
	for i := len(spans) - 1; i >= 0; i-- {
		d := int(spans[i].Depth)
		for len(open) <= d {
			open = append(open, false)
		}

		var p strings.Builder
		cols := 1
		p.WriteString(" ")
		for k := 1; k < d; k++ {
			if open[k] {
				p.WriteString("│ ")
			} else {
				p.WriteString("  ")
			}
			cols += 2
		}
		if d > 0 {
			if open[d] {
				p.WriteString("├─ ")
			} else {
				p.WriteString("└─ ")
			}
			cols += 3
		}
		out[i] = prefix{text: p.String(), cols: cols}

		open[d] = true
		for k := d + 1; k < len(open); k++ {
			open[k] = false
		}
	}
	return out
}

func renderSpanRow(b *strings.Builder, s *model.Span, p prefix, view timeline.Viewport, width, maxDurErrLen int, unit timeline.TimeUnit) {
	label := s.ServiceName + "." + s.OperationName

	errSuffix := ""
	if isError(s) {
		errSuffix = " !! ERR"
	}
	durErr := timeline.FormatTime(s.Duration, unit) + errSuffix

	// Layout: prefix + label + " [" + bar + "] " + durErr
	fixedCols := p.cols + 2 + defaultBarWidth + 2 + maxDurErrLen
	labelBudget := max(width-fixedCols, 8)
	runes := []rune(label)
	if len(runes) > labelBudget {
		runes = append(runes[:labelBudget-1], '…')
	}
	paddedLabel := string(runes) + strings.Repeat(" ", max(0, labelBudget-len(runes)))

	bar := buildBar(s.StartTime, s.End(), view, defaultBarWidth)
	paddedDurErr := durErr + strings.Repeat(" ", max(0, maxDurErrLen-len(durErr)))

	fmt.Fprintf(b, "%s%s [%s] %s\n", p.text, paddedLabel, bar, paddedDurErr)
}

// buildBar marks the cells of the window covered by [start,end]. Spans
// outside the window show an arrow at the edge they lie beyond.
func buildBar(start, end float64, view timeline.Viewport, barWidth int) string {
	bar := []byte(strings.Repeat(".", barWidth))
	rng := view.Range()
	if rng <= 0 {
		return strings.Repeat("#", barWidth)
	}
	if end < view.Start {
		bar[0] = '<'
		return string(bar)
	}
	if start > view.End {
		bar[barWidth-1] = '>'
		return string(bar)
	}

	startPos := int((start - view.Start) / rng * float64(barWidth))
	endPos := int((end - view.Start) / rng * float64(barWidth))
	startPos = min(max(startPos, 0), barWidth-1)
	endPos = min(max(endPos, startPos+1), barWidth)

	for i := startPos; i < endPos; i++ {
		bar[i] = '#'
	}
	return string(bar)
}
