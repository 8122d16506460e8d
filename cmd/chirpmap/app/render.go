package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 96.0
	fontSize       = 10.0
	tickMarkHeight = 5
	binsPerLabel   = 16
	pixelsPerLabel = 120

	// Default cell sizes in pixels
	defaultCellWidth  = 5
	defaultRowHeight  = 3
	defaultMarkerSize = 6

	// Default border sizes in pixels
	defaultTopBorder    = 30
	defaultLeftBorder   = 110
	defaultBottomBorder = 50
	defaultRightBorder  = 20

	defaultDatetimeFormat = time.DateTime
)

// ErrNothingToRender is returned when the trace has no rows
var ErrNothingToRender = errors.New("no pulses to render")

// BorderConfig defines the sizes of space around the trace
type BorderConfig struct {
	Top    int // Space for bin scale
	Left   int // Space for TSF scale
	Bottom int // Space for information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for trace visualization
type RenderConfig struct {
	DatetimeFormat string
	Location       *time.Location

	CellWidth     int // Pixels per bin column
	RowHeight     int // Pixels per pulse row
	FontSize      float64
	ColorTheme    ColorTheme
	NoAnnotations bool

	BorderConfig BorderConfig
}

// TraceRenderer draws max bin traces of pulses, one row per pulse
type TraceRenderer struct {
	colorMap *ColorMapper
	config   RenderConfig
}

// NewTraceRenderer creates a new trace renderer with the given configuration
func NewTraceRenderer(config RenderConfig) *TraceRenderer {
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.CellWidth <= 0 {
		config.CellWidth = defaultCellWidth
	}
	if config.RowHeight <= 0 {
		config.RowHeight = defaultRowHeight
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}

	if config.NoAnnotations {
		config.BorderConfig = BorderConfig{}
	} else {
		b := &config.BorderConfig
		if b.Top == 0 {
			b.Top = defaultTopBorder
		}
		if b.Left == 0 {
			b.Left = defaultLeftBorder
		}
		if b.Bottom == 0 {
			b.Bottom = defaultBottomBorder
		}
		if b.Right == 0 {
			b.Right = defaultRightBorder
		}
	}

	return &TraceRenderer{
		colorMap: NewColorMapper(config.ColorTheme, DefaultColorMapSize),
		config:   config,
	}
}

// Size returns the dimensions of the image rendered for trace
func (r *TraceRenderer) Size(trace *TraceData) image.Point {
	b := r.config.BorderConfig
	return image.Point{
		X: b.Left + defaultMarkerSize + BinColumns*r.config.CellWidth + b.Right,
		Y: b.Top + trace.Height()*r.config.RowHeight + b.Bottom,
	}
}

// Render creates an image of the trace with annotations
func (r *TraceRenderer) Render(trace *TraceData) (*image.RGBA, error) {
	if trace.Height() == 0 {
		return nil, ErrNothingToRender
	}

	img := image.NewRGBA(image.Rectangle{Max: r.Size(trace)})
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	b := r.config.BorderConfig
	plotArea := image.Rect(
		b.Left+defaultMarkerSize,
		b.Top,
		b.Left+defaultMarkerSize+BinColumns*r.config.CellWidth,
		b.Top+trace.Height()*r.config.RowHeight,
	)

	r.renderGrid(img, plotArea)
	r.renderRows(img, plotArea, trace)

	if r.config.NoAnnotations {
		return img, nil
	}

	ann, err := newAnnotator(r.config)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.annotate(img, plotArea, trace); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	return img, nil
}

// renderGrid marks the boundary between the lower and upper bin halves
func (r *TraceRenderer) renderGrid(img *image.RGBA, area image.Rectangle) {
	x := area.Min.X + (BinColumns/2)*r.config.CellWidth
	fill(img, image.Rect(x, area.Min.Y, x+1, area.Max.Y), gridColor)
}

func (r *TraceRenderer) renderRows(img *image.RGBA, area image.Rectangle, trace *TraceData) {
	h, w := r.config.RowHeight, r.config.CellWidth

	for y, row := range trace.Rows {
		top := area.Min.Y + y*h

		fill(img, image.Rect(area.Min.X-defaultMarkerSize, top, area.Min.X-1, top+h), verdictColor(row))

		for i, bin := range row.MaxBins {
			bin = max(0, min(bin, BinColumns-1))
			left := area.Min.X + bin*w
			fill(img, image.Rect(left, top, left+w, top+h), r.colorMap.SampleColor(i, len(row.MaxBins)))
		}
	}
}

func fill(img *image.RGBA, rect image.Rectangle, c color.Color) {
	draw.Draw(img, rect, image.NewUniform(c), image.Point{}, draw.Src)
}

type annotator struct {
	context  *freetype.Context
	config   RenderConfig
	fontFace font.Face
}

func newAnnotator(config RenderConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.White)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, area image.Rectangle, trace *TraceData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, image.Rectangle, *TraceData) error
	}{
		{"drawing bin scale", a.drawBinScale},
		{"drawing TSF scale", a.drawTSFScale},
		{"drawing info bar", a.drawInfoBar},
	}
	for _, op := range ops {
		if err := op.fn(img, area, trace); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawBinScale(img *image.RGBA, area image.Rectangle, _ *TraceData) error {
	textY := area.Min.Y - tickMarkHeight - 3

	for bin := 0; bin <= BinColumns; bin += binsPerLabel {
		x := area.Min.X + bin*a.config.CellWidth

		for y := area.Min.Y - tickMarkHeight; y < area.Min.Y; y++ {
			img.Set(x, y, color.White)
		}

		label := fmt.Sprintf("%d", bin)
		width := font.MeasureString(a.fontFace, label)
		if _, err := a.context.DrawString(label, freetype.Pt(x-width.Round()/2, textY)); err != nil {
			return fmt.Errorf("drawing bin label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTSFScale(img *image.RGBA, area image.Rectangle, trace *TraceData) error {
	rowsPerLabel := max(1, pixelsPerLabel/a.config.RowHeight)
	metrics := a.fontFace.Metrics()

	for y := 0; y < trace.Height(); y += rowsPerLabel {
		imgY := area.Min.Y + y*a.config.RowHeight

		for x := area.Min.X - defaultMarkerSize - tickMarkHeight; x < area.Min.X-defaultMarkerSize; x++ {
			img.Set(x, imgY, color.White)
		}

		textY := imgY + a.fontHeight()/2 - metrics.Descent.Round()
		label := fmt.Sprintf("%d", trace.Rows[y].TSF)
		if _, err := a.context.DrawString(label, freetype.Pt(5, textY)); err != nil {
			return fmt.Errorf("drawing TSF label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, area image.Rectangle, trace *TraceData) error {
	lines := infoLines(trace, a.config.Location, a.config.DatetimeFormat)

	lineHeight := a.context.PointToFixed(a.config.FontSize * 1.3).Round()
	pt := freetype.Pt(area.Min.X, area.Max.Y+lineHeight+3)
	for _, line := range lines {
		if _, err := a.context.DrawString(line, pt); err != nil {
			return fmt.Errorf("drawing info text: %w", err)
		}
		pt.Y += a.context.PointToFixed(a.config.FontSize * 1.3)
	}
	return nil
}

// infoLines summarises the trace for the info bar
func infoLines(trace *TraceData, loc *time.Location, layout string) []string {
	counts := fmt.Sprintf("Pulses: %s; checked: %s; chirps: %s",
		humanize.Comma(trace.Pulses),
		humanize.Comma(trace.Checked),
		humanize.Comma(trace.Chirps))

	freq := fmt.Sprintf("Freq: %d MHz", trace.FrequencyMin)
	if trace.FrequencyMax != trace.FrequencyMin {
		freq = fmt.Sprintf("Freq: %d - %d MHz", trace.FrequencyMin, trace.FrequencyMax)
	}

	if trace.Session != nil {
		counts += fmt.Sprintf(" (session: %s pulses; %s chirps)",
			humanize.Comma(trace.Session.Pulses),
			humanize.Comma(trace.Session.Chirps))
	}

	return []string{
		counts,
		fmt.Sprintf("%s; Time: %s - %s",
			freq,
			trace.TimestampStart.In(loc).Format(layout),
			trace.TimestampEnd.In(loc).Format(layout)),
	}
}
