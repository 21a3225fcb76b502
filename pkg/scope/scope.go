// Package scope provides a live spectrum widget for running scans.
package scope

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/sscd/pkg/sample"
)

const defaultDisplayPoints = 1000

// ScopeWidget is a custom Fyne widget plotting scan results against
// wavelength as they arrive.
type ScopeWidget struct {
	widget.BaseWidget

	// Data (protected by mu)
	mu      sync.RWMutex
	results []sample.Result
	status  string

	// Display buffer (reused for downsampling)
	display []sample.Result

	// Axes
	yMin, yMax float64
	xMin, xMax float64
	fixedX     bool

	maxDisplayPoints int
}

// New creates a new ScopeWidget instance.
func New() *ScopeWidget {
	s := &ScopeWidget{
		display:          make([]sample.Result, 0, defaultDisplayPoints),
		maxDisplayPoints: defaultDisplayPoints,
	}
	s.updateAutoScale()
	s.ExtendBaseWidget(s)
	s.Refresh()
	return s
}

// SetRange fixes the wavelength axis to [start, stop]. A zero range returns
// to auto-scaling.
func (s *ScopeWidget) SetRange(start, stop int) {
	s.mu.Lock()
	s.fixedX = stop > start
	s.xMin, s.xMax = float64(start), float64(stop)
	s.updateAutoScale()
	s.mu.Unlock()

	s.Refresh()
}

// Reset clears the plot for a new scan and shows status in the corner.
func (s *ScopeWidget) Reset(status string) {
	s.mu.Lock()
	s.results = s.results[:0]
	s.display = s.display[:0]
	s.status = status
	s.updateAutoScale()
	s.mu.Unlock()

	s.Refresh()
}

// Add appends one result. Call it on the Fyne thread via fyne.Do.
func (s *ScopeWidget) Add(r sample.Result) {
	s.mu.Lock()
	s.results = append(s.results, r)
	s.display = sample.Downsample(s.display, s.results, s.maxDisplayPoints)
	s.updateAutoScale()
	s.mu.Unlock()

	s.Refresh()
}

// UpdateData replaces the plotted results.
func (s *ScopeWidget) UpdateData(results []sample.Result) {
	s.mu.Lock()
	s.results = append(s.results[:0], results...)
	s.display = sample.Downsample(s.display, s.results, s.maxDisplayPoints)
	s.updateAutoScale()
	s.mu.Unlock()

	s.Refresh()
}

// Results returns a copy of the plotted results.
func (s *ScopeWidget) Results() []sample.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]sample.Result(nil), s.results...)
}

// updateAutoScale calculates the axis ranges from the displayed data.
// Callers hold mu.
func (s *ScopeWidget) updateAutoScale() {
	if len(s.display) == 0 {
		s.yMin, s.yMax = -1, 1
		if !s.fixedX {
			s.xMin, s.xMax = 0, 1
		}
		return
	}

	first := s.display[0]
	s.yMin = first.Signal - first.Noise
	s.yMax = first.Signal + first.Noise
	lo, hi := first.Wavelength, first.Wavelength
	for _, r := range s.display {
		s.yMin = min(s.yMin, r.Signal-r.Noise)
		s.yMax = max(s.yMax, r.Signal+r.Noise)
		lo = min(lo, r.Wavelength)
		hi = max(hi, r.Wavelength)
	}

	// Add 10% margin
	span := s.yMax - s.yMin
	if span == 0 {
		span = max(abs(s.yMax), 1e-6)
	}
	s.yMin -= span * 0.1
	s.yMax += span * 0.1

	if !s.fixedX {
		s.xMin, s.xMax = float64(lo), float64(hi)
		if hi == lo {
			s.xMax = s.xMin + 1
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	background := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &scopeRenderer{
		scope:      s,
		background: background,
		objects:    []fyne.CanvasObject{background},
	}
}
