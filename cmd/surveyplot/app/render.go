package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"
)

const (
	dotRadius     = 5
	antennaRadius = 7
	legendWidth   = 18

	// Default border sizes in pixels
	defaultTopBorder    = 60
	defaultLeftBorder   = 40
	defaultBottomBorder = 40
	defaultRightBorder  = 110

	defaultDatetimeFormat = time.DateTime
)

var (
	backgroundColor = color.RGBA{R: 18, G: 20, B: 28, A: 255}
	gridColor       = color.RGBA{R: 70, G: 74, B: 88, A: 255}
	ringColor       = color.RGBA{R: 230, G: 230, B: 230, A: 255}
	noDataColor     = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	antennaColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// BorderConfig defines the sizes of the space around the plot area
type BorderConfig struct {
	Top    int // Space for session details
	Left   int
	Bottom int // Space for information bar
	Right  int // Space for the magnitude legend
}

// RenderConfig holds all configuration options for survey visualization
type RenderConfig struct {
	DatetimeFormat string
	Location       *time.Location // Timezone for time display

	Size          int        // Plot area width and height in pixels
	FontSize      float64    // Font size in points
	ColorTheme    ColorTheme // Color scheme for magnitude values
	ColorMapSize  int        // Number of colors in gradient (0 for default)
	NoAnnotations bool

	BorderConfig BorderConfig
}

// SurveyRenderer draws a top-down view of a survey session: range rings
// around the antenna, the planned orbit and every located reading colored by
// magnitude.
type SurveyRenderer struct {
	colorMap *ColorMapper
	config   RenderConfig
}

func NewSurveyRenderer(config RenderConfig) *SurveyRenderer {
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Size == 0 {
		config.Size = defaultImageSize
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.ColorTheme == "" {
		config.ColorTheme = ClassicTheme
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	return &SurveyRenderer{config: config}
}

// Render creates an image of the survey data with annotations
func (r *SurveyRenderer) Render(data *PlotData) (*image.RGBA, error) {
	b := r.config.BorderConfig
	img := image.NewRGBA(image.Rect(0, 0, r.config.Size+b.Left+b.Right, r.config.Size+b.Top+b.Bottom))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: backgroundColor}, image.Point{}, draw.Src)

	if r.colorMap == nil {
		r.colorMap = NewColorMapperWithSize(r.config.ColorTheme, data.Bounds, r.config.ColorMapSize)
	} else {
		r.colorMap.UpdateBounds(data.Bounds)
	}

	area := image.Rect(b.Left, b.Top, b.Left+r.config.Size, b.Top+r.config.Size)
	p := newProjection(area, data.Extent)

	r.renderGrid(img, p, data)
	r.renderRing(img, p, data)
	r.renderSamples(img, p, data)
	fillCircle(img, p.center, antennaRadius, antennaColor)

	legend := image.Rect(area.Max.X+20, area.Min.Y, area.Max.X+20+legendWidth, area.Max.Y)
	r.renderLegend(img, legend)

	if r.config.NoAnnotations {
		return img, nil
	}

	ann, err := newAnnotator(annotatorConfig{
		DatetimeFormat: r.config.DatetimeFormat,
		Location:       r.config.Location,
		FontSize:       r.config.FontSize,
		Borders:        r.config.BorderConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.annotate(img, p, legend, data); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	return img, nil
}

// projection maps meters east and north of the antenna to image pixels
type projection struct {
	center image.Point
	scale  float64 // Pixels per meter
}

func newProjection(area image.Rectangle, extent float64) projection {
	return projection{
		center: image.Pt((area.Min.X+area.Max.X)/2, (area.Min.Y+area.Max.Y)/2),
		scale:  float64(area.Dx()) / 2 / extent,
	}
}

func (p projection) point(lp LocalPoint) image.Point {
	return image.Pt(
		p.center.X+int(math.Round(lp.East*p.scale)),
		p.center.Y-int(math.Round(lp.North*p.scale)),
	)
}

func (p projection) pixels(meters float64) int {
	return int(math.Round(meters * p.scale))
}

func (r *SurveyRenderer) renderGrid(img *image.RGBA, p projection, data *PlotData) {
	step := data.ScaleStep()
	for d := step; d <= data.Extent; d += step {
		drawCircle(img, p.center, p.pixels(d), gridColor)
	}

	reach := p.pixels(data.Extent)
	drawLine(img, image.Pt(p.center.X-reach, p.center.Y), image.Pt(p.center.X+reach, p.center.Y), gridColor)
	drawLine(img, image.Pt(p.center.X, p.center.Y-reach), image.Pt(p.center.X, p.center.Y+reach), gridColor)
}

func (r *SurveyRenderer) renderRing(img *image.RGBA, p projection, data *PlotData) {
	for i := 1; i < len(data.Ring); i++ {
		drawLine(img, p.point(data.Ring[i-1]), p.point(data.Ring[i]), ringColor)
	}
}

func (r *SurveyRenderer) renderSamples(img *image.RGBA, p projection, data *PlotData) {
	// Failed readings first so valid ones stay on top
	for _, s := range data.Samples {
		if s.Magnitude == nil {
			drawCircle(img, p.point(s.LocalPoint), dotRadius-1, noDataColor)
		}
	}
	for _, s := range data.Samples {
		if s.Magnitude != nil {
			fillCircle(img, p.point(s.LocalPoint), dotRadius, r.colorMap.GetColor(s.Magnitude))
		}
	}
}

// renderLegend draws the color ramp with the maximum magnitude on top
func (r *SurveyRenderer) renderLegend(img *image.RGBA, area image.Rectangle) {
	h := area.Dy() - 1
	for y := area.Min.Y; y < area.Max.Y; y++ {
		c := r.colorMap.Normalized(1 - float64(y-area.Min.Y)/float64(h))
		for x := area.Min.X; x < area.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func fillCircle(img *image.RGBA, c image.Point, radius int, col color.RGBA) {
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				img.SetRGBA(c.X+dx, c.Y+dy, col)
			}
		}
	}
}

// drawCircle draws a one pixel wide circle outline
func drawCircle(img *image.RGBA, c image.Point, radius int, col color.RGBA) {
	if radius <= 0 {
		return
	}
	steps := int(2 * math.Pi * float64(radius))
	for i := range steps {
		a := 2 * math.Pi * float64(i) / float64(steps)
		img.SetRGBA(
			c.X+int(math.Round(float64(radius)*math.Cos(a))),
			c.Y+int(math.Round(float64(radius)*math.Sin(a))),
			col,
		)
	}
}

// drawLine draws a one pixel wide line with Bresenham's algorithm
func drawLine(img *image.RGBA, from, to image.Point, col color.RGBA) {
	dx := abs(to.X - from.X)
	dy := -abs(to.Y - from.Y)
	sx, sy := 1, 1
	if from.X > to.X {
		sx = -1
	}
	if from.Y > to.Y {
		sy = -1
	}

	x, y, e := from.X, from.Y, dx+dy
	for {
		img.SetRGBA(x, y, col)
		if x == to.X && y == to.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
