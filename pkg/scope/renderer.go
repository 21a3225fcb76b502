package scope

import (
	"image/color"
	"math"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/sscd/pkg/sample"
)

var (
	gridColor   = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor  = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	signalColor = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	noiseColor  = color.RGBA{R: 100, G: 200, B: 255, A: 255}
	zeroColor   = color.RGBA{R: 90, G: 90, B: 90, A: 255}
	statusColor = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	background *canvas.Rectangle
	objects    []fyne.CanvasObject

	lastSize fyne.Size
}

// plotArea maps data coordinates into the widget.
type plotArea struct {
	x, y, w, h float32
	xMin, xMax float64
	yMin, yMax float64
}

func (a plotArea) pos(wl, v float64) fyne.Position {
	x := a.x + float32((wl-a.xMin)/(a.xMax-a.xMin))*a.w
	y := a.y + a.h - float32((v-a.yMin)/(a.yMax-a.yMin))*a.h
	return fyne.NewPos(x, y)
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the plot from the widget's display buffer.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	results := append([]sample.Result(nil), r.scope.display...)
	status := r.scope.status
	area := plotArea{
		xMin: r.scope.xMin, xMax: r.scope.xMax,
		yMin: r.scope.yMin, yMax: r.scope.yMax,
	}
	r.scope.mu.RUnlock()

	r.objects = []fyne.CanvasObject{r.background}

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	const (
		marginLeft   = 70
		marginRight  = 20
		marginTop    = 20
		marginBottom = 40
	)
	area.x, area.y = marginLeft, marginTop
	area.w = size.Width - marginLeft - marginRight
	area.h = size.Height - marginTop - marginBottom

	r.drawGrid(area)
	r.drawZero(area)
	r.drawNoise(area, results)
	r.drawSignal(area, results)
	if status != "" {
		r.drawStatus(area, status)
	}
}

// drawGrid draws the grid with signal and wavelength labels.
func (r *scopeRenderer) drawGrid(a plotArea) {
	const rows = 8
	for i := range rows + 1 {
		y := a.y + float32(i)*a.h/rows
		r.line(gridColor, 1, fyne.NewPos(a.x, y), fyne.NewPos(a.x+a.w, y))

		value := a.yMax - float64(i)*(a.yMax-a.yMin)/rows
		r.text(formatSignal(value), labelColor, 10, fyne.TextAlignTrailing, fyne.NewPos(a.x-5, y-6))
	}

	const cols = 10
	for i := range cols + 1 {
		x := a.x + float32(i)*a.w/cols
		r.line(gridColor, 1, fyne.NewPos(x, a.y), fyne.NewPos(x, a.y+a.h))

		wl := a.xMin + float64(i)*(a.xMax-a.xMin)/cols
		r.text(formatWavelength(wl), labelColor, 10, fyne.TextAlignCenter, fyne.NewPos(x-20, a.y+a.h+5))
	}
}

// drawZero marks the zero signal level when it is in view.
func (r *scopeRenderer) drawZero(a plotArea) {
	if a.yMin >= 0 || a.yMax <= 0 {
		return
	}
	left, right := a.pos(a.xMin, 0), a.pos(a.xMax, 0)
	r.line(zeroColor, 1, left, right)
}

// drawSignal draws the signal curve (orange).
func (r *scopeRenderer) drawSignal(a plotArea, results []sample.Result) {
	for i := 1; i < len(results); i++ {
		p, q := results[i-1], results[i]
		r.line(signalColor, 1.5, a.pos(float64(p.Wavelength), p.Signal), a.pos(float64(q.Wavelength), q.Signal))
	}
}

// drawNoise draws a vertical bar of signal +- noise at every wavelength
// (light blue).
func (r *scopeRenderer) drawNoise(a plotArea, results []sample.Result) {
	for _, res := range results {
		if res.Noise == 0 {
			continue
		}
		wl := float64(res.Wavelength)
		r.line(noiseColor, 1, a.pos(wl, res.Signal-res.Noise), a.pos(wl, res.Signal+res.Noise))
	}
}

// drawStatus shows the scan status in the top left corner.
func (r *scopeRenderer) drawStatus(a plotArea, status string) {
	r.text(status, statusColor, 11, fyne.TextAlignLeading, fyne.NewPos(a.x+10, a.y+10))
}

func (r *scopeRenderer) line(c color.Color, width float32, from, to fyne.Position) {
	l := canvas.NewLine(c)
	l.Position1 = from
	l.Position2 = to
	l.StrokeWidth = width
	r.objects = append(r.objects, l)
}

func (r *scopeRenderer) text(s string, c color.Color, size float32, align fyne.TextAlign, at fyne.Position) {
	t := canvas.NewText(s, c)
	t.TextSize = size
	t.Alignment = align
	t.Move(at)
	r.objects = append(r.objects, t)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

func formatSignal(v float64) string {
	if math.Abs(v) < 1e-12 {
		return "0"
	}
	return strconv.FormatFloat(v, 'e', 2, 64)
}

func formatWavelength(wl float64) string {
	return strconv.FormatFloat(wl, 'f', 1, 64) + "nm"
}
