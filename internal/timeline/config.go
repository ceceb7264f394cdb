package timeline

// ViewerConfig holds the layout constants and the live filter state.
// Pixel values are in surface pixels, times in nanoseconds.
type ViewerConfig struct {
	SpanHeight       float64 `json:"span_height"`
	SpanSpacing      float64 `json:"span_spacing"`
	MinSpanWidth     float64 `json:"min_span_width"`
	DepthIndentation float64 `json:"depth_indentation"`
	MinTextWidth     float64 `json:"min_text_width"`
	TextOffsetX      float64 `json:"text_offset_x"`
	TextOffsetY      float64 `json:"text_offset_y"`

	MinimapSpanHeight    float64 `json:"minimap_span_height"`
	MinimapMinWidth      float64 `json:"minimap_min_width"`
	MinimapTopMargin     float64 `json:"minimap_top_margin"`
	MinimapDepthIndent   float64 `json:"minimap_depth_indent"`
	MinimapRowGap        float64 `json:"minimap_row_gap"`
	MinimapDockMinWidth  float64 `json:"minimap_dock_min_width"`
	MinimapDockMinHeight float64 `json:"minimap_dock_min_height"`
	MinimapBrightness    float64 `json:"minimap_brightness_factor"`
	DurationBufferRatio  float64 `json:"duration_buffer_percentage"`

	TimelineTicks         int     `json:"timeline_ticks"`
	TimelineTopMargin     float64 `json:"timeline_top_margin"`
	TimelineBottomMargin  float64 `json:"timeline_bottom_margin"`
	GridTextOffset        float64 `json:"grid_text_offset"`
	GridTextYOffset       float64 `json:"grid_text_y_offset"`
	TimelineContentOffset float64 `json:"timeline_content_offset"`
	TimelineContentMargin float64 `json:"timeline_content_margin"`
	SpanLabelMargin       float64 `json:"span_label_margin"`
	SpanLabelYOffset      float64 `json:"span_label_y_offset"`
	DetailsLineHeight     float64 `json:"details_line_height"`

	MinCanvasHeight    float64 `json:"min_canvas_height"`
	CanvasHeightBuffer float64 `json:"canvas_height_buffer"`
	MaxSpansForHeight  float64 `json:"max_spans_for_height"`

	MinSelectionWidth float64 `json:"min_selection_width"`
	ZoomFactorIn      float64 `json:"zoom_factor_in"`
	ZoomFactorOut     float64 `json:"zoom_factor_out"`
	ScrollPercentage  float64 `json:"scroll_percentage"`

	// Live filter state, edited through the Viewer setters.
	ServiceFilter      string  `json:"-"`
	OperationFilter    string  `json:"-"`
	MinDurationFilter  float64 `json:"-"`
	MaxDurationFilter  float64 `json:"-"`
	SliderMinBound     float64 `json:"-"`
	SliderMaxBound     float64 `json:"-"`
	MinTimeFilter      float64 `json:"-"`
	MaxTimeFilter      float64 `json:"-"`
	TimeSliderMinBound float64 `json:"-"`
	TimeSliderMaxBound float64 `json:"-"`
}

// DefaultViewerConfig returns the stock layout with filters spanning the
// placeholder range used before any trace is loaded.
func DefaultViewerConfig() ViewerConfig {
	cfg := ViewerConfig{
		SpanHeight:       20,
		SpanSpacing:      25,
		MinSpanWidth:     8,
		DepthIndentation: 20,
		MinTextWidth:     30,
		TextOffsetX:      4,
		TextOffsetY:      7,

		MinimapSpanHeight:    3,
		MinimapMinWidth:      2,
		MinimapTopMargin:     5,
		MinimapDepthIndent:   2,
		MinimapRowGap:        2,
		MinimapDockMinWidth:  100,
		MinimapDockMinHeight: 50,
		MinimapBrightness:    1.4,
		DurationBufferRatio:  1.05,

		TimelineTicks:         8,
		TimelineTopMargin:     20,
		TimelineBottomMargin:  20,
		GridTextOffset:        2,
		GridTextYOffset:       5,
		TimelineContentOffset: 60,
		TimelineContentMargin: 30,
		SpanLabelMargin:       5,
		SpanLabelYOffset:      8,
		DetailsLineHeight:     16,

		MinCanvasHeight:    100,
		CanvasHeightBuffer: 40,
		MaxSpansForHeight:  20,

		MinSelectionWidth: 10,
		ZoomFactorIn:      0.8,
		ZoomFactorOut:     1.25,
		ScrollPercentage:  0.1,
	}
	cfg.resetFilters()
	return cfg
}

func (c *ViewerConfig) resetFilters() {
	c.ServiceFilter = ""
	c.OperationFilter = ""
	c.MinDurationFilter, c.MaxDurationFilter = 0, 1000
	c.SliderMinBound, c.SliderMaxBound = 0, 1000
	c.MinTimeFilter, c.MaxTimeFilter = 0, 1000
	c.TimeSliderMinBound, c.TimeSliderMaxBound = 0, 1000
}

// initSliderBounds sets the slider ranges from data aggregates and moves
// every filter to the extremes. Only the duration maximum gets the
// buffer ratio.
func (c *ViewerConfig) initSliderBounds(minDur, maxDur, minTime, maxTime float64) {
	c.SliderMinBound = minDur
	c.SliderMaxBound = maxDur * c.DurationBufferRatio
	c.MinDurationFilter = c.SliderMinBound
	c.MaxDurationFilter = c.SliderMaxBound

	c.TimeSliderMinBound = minTime
	c.TimeSliderMaxBound = maxTime
	c.MinTimeFilter = c.TimeSliderMinBound
	c.MaxTimeFilter = c.TimeSliderMaxBound
}

// Colors is the palette used for everything that is not a span fill.
type Colors struct {
	SpanSelected  Color
	SpanBorder    Color
	SpanText      Color
	SpanLabel     Color
	GridLines     Color
	TimelineText  Color
	MinimapBg     Color
	MinimapGrid   Color
	MinimapSpan   Color
	MinimapWindow Color
	MinimapBorder Color
	Hover         Color
	PanelBg       Color
	PanelText     Color
	ZoomSelection Color
}

// DefaultColors returns the dark palette.
func DefaultColors() Colors {
	return Colors{
		SpanSelected:  RGBA(255, 215, 0, 255),
		SpanBorder:    RGBA(0, 0, 0, 255),
		SpanText:      RGBA(255, 255, 255, 255),
		SpanLabel:     RGBA(200, 200, 200, 255),
		GridLines:     RGBA(100, 100, 100, 255),
		TimelineText:  RGBA(200, 200, 200, 255),
		MinimapBg:     RGBA(30, 30, 30, 255),
		MinimapGrid:   RGBA(100, 100, 100, 255),
		MinimapSpan:   RGBA(255, 255, 255, 80),
		MinimapWindow: RGBA(0, 0, 0, 128),
		MinimapBorder: RGBA(255, 255, 0, 255),
		Hover:         RGBA(255, 255, 255, 100),
		PanelBg:       RGBA(25, 25, 25, 255),
		PanelText:     RGBA(220, 220, 220, 255),
		ZoomSelection: RGBA(255, 255, 0, 128),
	}
}
