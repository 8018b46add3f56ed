package app

import (
	"fmt"
	"image"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/roman-kulish/antenna-survey/internal/survey"
)

const (
	dpi      = 96.0
	fontSize = 10.0
	spacing  = 1.4
)

type annotatorConfig struct {
	DatetimeFormat string
	Location       *time.Location
	FontSize       float64
	Borders        BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingFull)
	ctx.SetSrc(image.White)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, p projection, legend image.Rectangle, data *PlotData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func() error
	}{
		{"drawing header", func() error { return a.drawHeader(data) }},
		{"drawing distance scale", func() error { return a.drawDistanceScale(p, data) }},
		{"drawing legend", func() error { return a.drawLegend(legend, data.Bounds) }},
		{"drawing info bar", func() error { return a.drawInfoBar(img, data) }},
	}
	for _, op := range ops {
		if err := op.fn(); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *annotator) lineHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawLines(lines []string, pt image.Point) error {
	fp := freetype.Pt(pt.X, pt.Y)
	for _, s := range lines {
		if _, err := a.context.DrawString(s, fp); err != nil {
			return err
		}
		fp.Y += a.context.PointToFixed(a.config.FontSize * spacing)
	}
	return nil
}

func (a *annotator) drawHeader(data *PlotData) error {
	s := data.Session

	valid := 0
	for _, sample := range data.Samples {
		if sample.Magnitude != nil {
			valid++
		}
	}

	readings := fmt.Sprintf("%s readings, %s valid", humanize.Comma(int64(len(data.Samples)+data.Unlocated)), humanize.Comma(int64(valid)))
	if data.Unlocated > 0 {
		readings += fmt.Sprintf(", %s without position", humanize.Comma(int64(data.Unlocated)))
	}

	lines := []string{
		fmt.Sprintf("Session %s; antenna %s at %s m",
			s.ID, s.Antenna, humanize.FtoaWithDigits(s.AntennaElevation, 1)),
		fmt.Sprintf("Orbit %s m, %d segments; %s",
			humanize.FtoaWithDigits(s.Radius, 1), s.PointCount, readings),
	}
	return a.drawLines(lines, image.Pt(a.config.Borders.Left, a.config.Borders.Top/2-a.lineHeight()/2))
}

func (a *annotator) drawDistanceScale(p projection, data *PlotData) error {
	step := data.ScaleStep()
	for d := step; d <= data.Extent; d += step {
		label := humanize.FtoaWithDigits(d, 1) + " m"
		pt := freetype.Pt(p.center.X+p.pixels(d)+3, p.center.Y-3)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing distance label: %w", err)
		}
	}

	width := font.MeasureString(a.fontFace, "N").Round()
	pt := freetype.Pt(p.center.X-width/2, p.center.Y-p.pixels(data.Extent)-3)
	if _, err := a.context.DrawString("N", pt); err != nil {
		return fmt.Errorf("drawing north label: %w", err)
	}
	return nil
}

func (a *annotator) drawLegend(legend image.Rectangle, bounds MagnitudeBounds) error {
	x := legend.Max.X + 5
	labels := []struct {
		value float64
		y     int
	}{
		{bounds.Max, legend.Min.Y + a.lineHeight()/2},
		{bounds.Min, legend.Max.Y},
	}
	if bounds.Mean > bounds.Min && bounds.Mean < bounds.Max {
		ratio := (bounds.Max - bounds.Mean) / (bounds.Max - bounds.Min)
		labels = append(labels, struct {
			value float64
			y     int
		}{bounds.Mean, legend.Min.Y + int(ratio*float64(legend.Dy())) + a.lineHeight()/2})
	}

	for _, l := range labels {
		if _, err := a.context.DrawString(formatMagnitude(l.value), freetype.Pt(x, l.y)); err != nil {
			return fmt.Errorf("drawing legend label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, data *PlotData) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Time: %s - %s",
		data.TimestampStart.In(a.config.Location).Format(a.config.DatetimeFormat),
		data.TimestampEnd.In(a.config.Location).Format(a.config.DatetimeFormat)))

	if strongest, weakest, ok := extremeSectors(data.Sectors); ok {
		sb.WriteString("; strongest ")
		sb.WriteString(formatSector(strongest))
		sb.WriteString(", weakest ")
		sb.WriteString(formatSector(weakest))
	}

	metrics := a.fontFace.Metrics()
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-a.lineHeight())/2 - metrics.Descent.Round()

	if _, err := a.context.DrawString(sb.String(), freetype.Pt(a.config.Borders.Left, textY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

// extremeSectors returns the sectors with the highest and lowest mean
// magnitude, skipping sectors without readings
func extremeSectors(sectors []survey.SectorSummary) (strongest, weakest survey.SectorSummary, ok bool) {
	for _, s := range sectors {
		if s.Count == 0 || math.IsNaN(s.Mean) {
			continue
		}
		if !ok {
			strongest, weakest, ok = s, s, true
			continue
		}
		if s.Mean > strongest.Mean {
			strongest = s
		}
		if s.Mean < weakest.Mean {
			weakest = s
		}
	}
	return strongest, weakest, ok
}

func formatSector(s survey.SectorSummary) string {
	return fmt.Sprintf("%03.0f°-%03.0f° %s", s.FromAzimuth, s.ToAzimuth, formatMagnitude(s.Mean))
}

func formatMagnitude(v float64) string {
	return fmt.Sprintf("%.1f dBm", v)
}
